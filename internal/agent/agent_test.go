package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/bus"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/transport"
)

func TestAgent_TranscribesTrackAndDrainsOnEmptyRoom(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("r1")
	defer b.Unsubscribe(sub)

	room := newFakeRoom(1)
	connector := &fakeConnector{rooms: []*fakeRoom{room}}
	stream := newFakeStream(true, final("hello"))
	sttClient := &fakeSTTClient{streams: []*fakeStream{stream}}

	a := NewAgent("r1", connector, sttClient, b, nil, time.Second)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	track := newFakeTrack("TR_1")
	close(track.frames)
	room.emitTrack(track, transport.Participant{Identity: "u1", Name: "Ann"})

	select {
	case ev := <-sub.Events():
		if ev.Text != "hello" || ev.ParticipantName != "Ann" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transcript published")
	}

	room.emitLeave(transport.Participant{Identity: "u1"})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not drain after room emptied")
	}

	if a.State() != StateTerminated {
		t.Errorf("expected terminated state, got %s", a.State())
	}
	if room.disconnectCalls() == 0 {
		t.Error("expected room disconnect on drain")
	}
}

func TestAgent_ParticipantLeftWithOthersRemainingStaysActive(t *testing.T) {
	b := bus.New()
	room := newFakeRoom(2)
	connector := &fakeConnector{rooms: []*fakeRoom{room}}
	sttClient := &fakeSTTClient{streams: []*fakeStream{newFakeStream(true)}}

	a := NewAgent("r1", connector, sttClient, b, nil, time.Second)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	room.emitLeave(transport.Participant{Identity: "u1"})

	select {
	case <-done:
		t.Fatal("agent drained while a participant remained")
	case <-time.After(100 * time.Millisecond):
	}
	if a.State() != StateActive {
		t.Errorf("expected active state, got %s", a.State())
	}

	room.emitLeave(transport.Participant{Identity: "u2"})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not drain after last participant left")
	}
}

func TestAgent_ConnectionLostDrains(t *testing.T) {
	b := bus.New()
	room := newFakeRoom(1)
	connector := &fakeConnector{rooms: []*fakeRoom{room}}
	sttClient := &fakeSTTClient{streams: []*fakeStream{newFakeStream(true)}}

	a := NewAgent("r1", connector, sttClient, b, nil, time.Second)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	// Simulate the transport dropping the connection.
	room.Disconnect()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not drain after connection loss")
	}
	if a.State() != StateTerminated {
		t.Errorf("expected terminated state, got %s", a.State())
	}
}

func TestAgent_ConnectFailureTerminates(t *testing.T) {
	b := bus.New()
	connector := &fakeConnector{err: errors.New("unreachable")}
	sttClient := &fakeSTTClient{streams: []*fakeStream{newFakeStream(true)}}

	a := NewAgent("r1", connector, sttClient, b, nil, time.Second)

	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if a.State() != StateTerminated {
		t.Errorf("expected terminated state, got %s", a.State())
	}
}

func TestAgent_FailedTrackDoesNotAffectSiblings(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("r1")
	defer b.Unsubscribe(sub)

	room := newFakeRoom(2)
	connector := &fakeConnector{rooms: []*fakeRoom{room}}

	broken := newFakeStream(true)
	broken.err = errors.New("stt backend gone")
	healthy := newFakeStream(true, final("still here"))
	sttClient := &fakeSTTClient{streams: []*fakeStream{broken, healthy}}

	a := NewAgent("r1", connector, sttClient, b, nil, time.Second)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	badTrack := newFakeTrack("TR_bad")
	close(badTrack.frames)
	room.emitTrack(badTrack, transport.Participant{Identity: "u1"})

	goodTrack := newFakeTrack("TR_good")
	close(goodTrack.frames)
	room.emitTrack(goodTrack, transport.Participant{Identity: "u2", Name: "Bob"})

	select {
	case ev := <-sub.Events():
		if ev.Text != "still here" {
			t.Errorf("expected transcript from healthy track, got %q", ev.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("healthy track produced no transcript")
	}

	if a.State() != StateActive {
		t.Errorf("expected agent to remain active, got %s", a.State())
	}

	room.emitLeave(transport.Participant{Identity: "u1"})
	room.emitLeave(transport.Participant{Identity: "u2"})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not drain")
	}
}
