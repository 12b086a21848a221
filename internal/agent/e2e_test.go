package agent

import (
	"testing"
	"time"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/bus"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/transport"
)

// Exercises the whole path: attach starts an agent, one audio track produces
// two finals ("hello" and an empty one), an early subscriber sees exactly one
// event and a late subscriber sees nothing.
func TestEndToEnd_AttachTranscribeBroadcast(t *testing.T) {
	b := bus.New()
	room := newFakeRoom(1)
	connector := &fakeConnector{rooms: []*fakeRoom{room}}
	stream := newFakeStream(true, final("hello"), final(""))
	registry := NewRegistry(connector, &fakeSTTClient{streams: []*fakeStream{stream}}, b, nil, time.Second)
	defer registry.Shutdown(time.Second)

	early := b.Subscribe("r1")
	defer b.Unsubscribe(early)

	if status := registry.Attach("r1"); status != StatusStarted {
		t.Fatalf("expected started, got %s", status)
	}

	track := newFakeTrack("TR_1")
	close(track.frames)
	room.emitTrack(track, transport.Participant{Identity: "u1", Metadata: `{"displayName":"Ann"}`})

	select {
	case ev := <-early.Events():
		if ev.Text != "hello" {
			t.Errorf("expected 'hello', got %q", ev.Text)
		}
		if ev.ParticipantName != "Ann" {
			t.Errorf("expected 'Ann', got %q", ev.ParticipantName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("early subscriber received nothing")
	}

	// The empty final must not appear.
	select {
	case ev := <-early.Events():
		t.Fatalf("unexpected extra event: %q", ev.Text)
	case <-time.After(50 * time.Millisecond):
	}

	// No replay for a subscriber registered after publication.
	late := b.Subscribe("r1")
	defer b.Unsubscribe(late)
	select {
	case ev := <-late.Events():
		t.Fatalf("late subscriber unexpectedly received %q", ev.Text)
	case <-time.After(50 * time.Millisecond):
	}

	// Room empties, agent reaps itself.
	room.emitLeave(transport.Participant{Identity: "u1"})
	waitFor(t, 2*time.Second, func() bool { return !registry.Running("r1") })
}
