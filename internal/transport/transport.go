// Package transport defines the boundary to the real-time room platform.
//
// Instead of registering ambient callbacks on the SDK, room-level
// notifications are exposed as a typed event stream that the agent consumes
// with explicit state transitions.
package transport

import "context"

// Participant identifies a remote participant and the raw material for
// display-name resolution.
type Participant struct {
	Identity string
	Name     string
	Metadata string
}

// AudioTrack is one remote audio track. Frames lazily produces mono PCM16
// frames at the transport's output sample rate; the channel closes when the
// track ends or ctx is canceled.
type AudioTrack interface {
	ID() string
	Frames(ctx context.Context) <-chan []int16
}

// RoomEventKind classifies room-level notifications.
type RoomEventKind int

const (
	// TrackSubscribed reports a newly available audio track, including
	// tracks that already existed when the room was joined.
	TrackSubscribed RoomEventKind = iota
	// ParticipantLeft reports a remote participant disconnecting.
	ParticipantLeft
)

// RoomEvent is one room-level notification.
type RoomEvent struct {
	Kind        RoomEventKind
	Participant Participant
	Track       AudioTrack // set for TrackSubscribed
}

// Room is a joined room. Events closes when the connection to the room is
// lost.
type Room interface {
	// Events returns the room's notification stream.
	Events() <-chan RoomEvent

	// RemoteParticipantCount reports how many remote participants are
	// currently present.
	RemoteParticipantCount() int

	// Disconnect leaves the room. Idempotent.
	Disconnect()
}

// Connector joins rooms on behalf of the transcription agent.
type Connector interface {
	Connect(ctx context.Context, roomID string) (Room, error)
}
