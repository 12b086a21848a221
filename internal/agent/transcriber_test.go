package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/bus"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/transport"
)

func runTranscriber(t *testing.T, tt *trackTranscriber) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- tt.run(context.Background()) }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("transcriber did not finish")
		return nil
	}
}

func TestTranscriber_PublishesOnlyNonEmptyFinals(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("r1")
	defer b.Unsubscribe(sub)

	stream := newFakeStream(true,
		interim("hel"),
		interim("hello eve"),
		final(""),
		final("hello"),
	)
	track := newFakeTrack("TR_1")
	close(track.frames) // track already over; drain still sees all events

	tt := &trackTranscriber{
		roomID:      "r1",
		track:       track,
		participant: transport.Participant{Identity: "u1", Metadata: `{"displayName":"Ann"}`},
		sttClient:   &fakeSTTClient{streams: []*fakeStream{stream}},
		bus:         b,
	}

	if err := runTranscriber(t, tt); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Text != "hello" {
			t.Errorf("expected text 'hello', got %q", ev.Text)
		}
		if ev.ParticipantName != "Ann" {
			t.Errorf("expected resolved name 'Ann', got %q", ev.ParticipantName)
		}
		if ev.ParticipantIdentity != "u1" {
			t.Errorf("expected identity 'u1', got %q", ev.ParticipantIdentity)
		}
		if ev.Timestamp.IsZero() {
			t.Error("expected a wall-clock timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected second event: %q", ev.Text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTranscriber_EndsInputExactlyOnce(t *testing.T) {
	b := bus.New()
	stream := newFakeStream(true)
	track := newFakeTrack("TR_1")

	tt := &trackTranscriber{
		roomID:      "r1",
		track:       track,
		participant: transport.Participant{Identity: "u1"},
		sttClient:   &fakeSTTClient{streams: []*fakeStream{stream}},
		bus:         b,
	}

	done := make(chan error, 1)
	go func() { done <- tt.run(context.Background()) }()

	track.frames <- make([]int16, 320)
	track.frames <- make([]int16, 320)
	close(track.frames)

	if err := <-done; err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if n := stream.endInputCalls(); n != 1 {
		t.Errorf("expected EndInput once, got %d", n)
	}
}

func TestTranscriber_SessionErrorIsReturned(t *testing.T) {
	b := bus.New()
	stream := newFakeStream(true)
	stream.err = errors.New("connection reset")
	track := newFakeTrack("TR_1")
	close(track.frames)

	tt := &trackTranscriber{
		roomID:      "r1",
		track:       track,
		participant: transport.Participant{Identity: "u1"},
		sttClient:   &fakeSTTClient{streams: []*fakeStream{stream}},
		bus:         b,
	}

	if err := runTranscriber(t, tt); err == nil {
		t.Fatal("expected error from failed session")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []bus.Event
}

func (s *recordingSink) PublishFinal(ctx context.Context, ev bus.Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func TestTranscriber_MirrorsFinalsToSink(t *testing.T) {
	b := bus.New()
	sink := &recordingSink{}

	stream := newFakeStream(true, final("hello"))
	track := newFakeTrack("TR_1")
	close(track.frames)

	tt := &trackTranscriber{
		roomID:      "r1",
		track:       track,
		participant: transport.Participant{Identity: "u1"},
		sttClient:   &fakeSTTClient{streams: []*fakeStream{stream}},
		bus:         b,
		sink:        sink,
	}

	if err := runTranscriber(t, tt); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 || sink.events[0].Text != "hello" {
		t.Errorf("expected one mirrored event 'hello', got %v", sink.events)
	}
}
