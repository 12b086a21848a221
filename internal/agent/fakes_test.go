package agent

import (
	"context"
	"sync"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/transport"
)

// fakeTrack is an AudioTrack whose frames the test feeds by hand.
type fakeTrack struct {
	id     string
	frames chan []int16
}

func newFakeTrack(id string) *fakeTrack {
	return &fakeTrack{id: id, frames: make(chan []int16, 16)}
}

func (t *fakeTrack) ID() string { return t.id }

func (t *fakeTrack) Frames(ctx context.Context) <-chan []int16 { return t.frames }

// fakeStream is an stt.Stream driven by the test.
type fakeStream struct {
	events chan stt.Event
	err    error

	mu         sync.Mutex
	framesFed  int
	endCalls   int
	closeOnEnd bool
}

func newFakeStream(closeOnEnd bool, events ...stt.Event) *fakeStream {
	s := &fakeStream{
		events:     make(chan stt.Event, 16),
		closeOnEnd: closeOnEnd,
	}
	for _, ev := range events {
		s.events <- ev
	}
	return s
}

func (s *fakeStream) PushFrame(frame []int16) error {
	s.mu.Lock()
	s.framesFed++
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) EndInput() {
	s.mu.Lock()
	s.endCalls++
	calls := s.endCalls
	s.mu.Unlock()
	if s.closeOnEnd && calls == 1 {
		close(s.events)
	}
}

func (s *fakeStream) Events() <-chan stt.Event { return s.events }

func (s *fakeStream) Err() error { return s.err }

func (s *fakeStream) endInputCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endCalls
}

// fakeSTTClient hands out prepared streams in order.
type fakeSTTClient struct {
	mu      sync.Mutex
	streams []*fakeStream
	next    int
}

func (c *fakeSTTClient) Stream(ctx context.Context) (stt.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.streams[c.next%len(c.streams)]
	c.next++
	return s, nil
}

func interim(text string) stt.Event {
	return stt.Event{Kind: stt.KindInterim, Alternatives: []stt.Alternative{{Text: text}}}
}

func final(text string) stt.Event {
	return stt.Event{Kind: stt.KindFinal, Alternatives: []stt.Alternative{{Text: text}}}
}

// fakeRoom is a transport.Room the test scripts through its event channel.
type fakeRoom struct {
	events chan transport.RoomEvent

	mu           sync.Mutex
	participants int
	disconnects  int
	closed       bool
}

func newFakeRoom(participants int) *fakeRoom {
	return &fakeRoom{
		events:       make(chan transport.RoomEvent, 16),
		participants: participants,
	}
}

func (r *fakeRoom) Events() <-chan transport.RoomEvent { return r.events }

func (r *fakeRoom) RemoteParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participants
}

func (r *fakeRoom) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects++
	if !r.closed {
		r.closed = true
		close(r.events)
	}
}

func (r *fakeRoom) disconnectCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnects
}

// emitTrack announces a new audio track for a participant.
func (r *fakeRoom) emitTrack(track *fakeTrack, p transport.Participant) {
	r.events <- transport.RoomEvent{
		Kind:        transport.TrackSubscribed,
		Participant: p,
		Track:       track,
	}
}

// emitLeave drops the participant count and announces the departure.
func (r *fakeRoom) emitLeave(p transport.Participant) {
	r.mu.Lock()
	if r.participants > 0 {
		r.participants--
	}
	r.mu.Unlock()
	r.events <- transport.RoomEvent{Kind: transport.ParticipantLeft, Participant: p}
}

// fakeConnector returns a scripted room or error.
type fakeConnector struct {
	mu       sync.Mutex
	rooms    []*fakeRoom
	err      error
	connects int
}

func (c *fakeConnector) Connect(ctx context.Context, roomID string) (transport.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.err != nil {
		return nil, c.err
	}
	room := c.rooms[(c.connects-1)%len(c.rooms)]
	return room, nil
}

func (c *fakeConnector) connectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}
