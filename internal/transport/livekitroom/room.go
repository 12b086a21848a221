// Package livekitroom implements the transport boundary against LiveKit.
package livekitroom

import (
	"context"
	"fmt"
	"sync"

	"github.com/livekit/protocol/auth"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/logging"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/transport"
)

// roomEventBuffer sizes the per-room notification channel. Events are control
// plane only (tracks appearing, participants leaving), so a modest buffer is
// plenty.
const roomEventBuffer = 64

// Connector joins LiveKit rooms as a hidden, subscribe-only participant.
type Connector struct {
	url          string
	apiKey       string
	apiSecret    string
	sampleRateHz int
}

// NewConnector creates a LiveKit connector. Audio frames are delivered as
// mono PCM16 at sampleRateHz.
func NewConnector(url, apiKey, apiSecret string, sampleRateHz int) *Connector {
	return &Connector{
		url:          url,
		apiKey:       apiKey,
		apiSecret:    apiSecret,
		sampleRateHz: sampleRateHz,
	}
}

// Connect joins the room and surfaces its notifications as an event stream.
// Audio tracks that already exist at join time are emitted as TrackSubscribed
// events along with tracks subscribed later.
func (c *Connector) Connect(ctx context.Context, roomID string) (transport.Room, error) {
	token, err := c.buildToken(roomID)
	if err != nil {
		return nil, fmt.Errorf("build room token: %w", err)
	}

	r := &room{
		roomID:       roomID,
		sampleRateHz: c.sampleRateHz,
		events:       make(chan transport.RoomEvent, roomEventBuffer),
	}

	callbacks := &lksdk.RoomCallback{
		OnDisconnected: func() {
			logging.Info(logging.CategoryRoom, "disconnected from room room=%s", roomID)
			r.closeEvents()
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			r.emit(transport.RoomEvent{
				Kind:        transport.ParticipantLeft,
				Participant: participantInfo(rp),
			})
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				if track.Kind() != webrtc.RTPCodecTypeAudio {
					return
				}
				r.emit(transport.RoomEvent{
					Kind:        transport.TrackSubscribed,
					Participant: participantInfo(rp),
					Track:       newAudioTrack(track, c.sampleRateHz),
				})
			},
		},
	}

	lkRoom, err := lksdk.ConnectToRoomWithToken(c.url, token, callbacks)
	if err != nil {
		return nil, fmt.Errorf("connect to room: %w", err)
	}
	r.setRoom(lkRoom)

	logging.Info(logging.CategoryRoom, "connected to room room=%s identity=%s", roomID, lkRoom.LocalParticipant.Identity())

	// Sweep tracks that were already published before we joined. Tracks not
	// yet subscribed arrive later through OnTrackSubscribed.
	for _, p := range lkRoom.GetRemoteParticipants() {
		for _, pub := range p.TrackPublications() {
			if pub.Kind() != lksdk.TrackKindAudio {
				continue
			}
			remotePub, ok := pub.(*lksdk.RemoteTrackPublication)
			if !ok {
				continue
			}
			if !remotePub.IsSubscribed() {
				remotePub.SetSubscribed(true)
				continue
			}
			if track, ok := remotePub.Track().(*webrtc.TrackRemote); ok && track != nil {
				r.emit(transport.RoomEvent{
					Kind:        transport.TrackSubscribed,
					Participant: participantInfo(p),
					Track:       newAudioTrack(track, c.sampleRateHz),
				})
			}
		}
	}

	return r, nil
}

// buildToken issues a hidden, subscribe-only join token for the agent.
func (c *Connector) buildToken(roomID string) (string, error) {
	canPublish := false
	canSubscribe := true

	at := auth.NewAccessToken(c.apiKey, c.apiSecret)
	at.SetIdentity("transcriber-bot-" + roomID).
		SetName("Transcriber").
		AddGrant(&auth.VideoGrant{
			RoomJoin:     true,
			Room:         roomID,
			CanPublish:   &canPublish,
			CanSubscribe: &canSubscribe,
			Hidden:       true,
		})
	return at.ToJWT()
}

func participantInfo(rp *lksdk.RemoteParticipant) transport.Participant {
	return transport.Participant{
		Identity: rp.Identity(),
		Name:     rp.Name(),
		Metadata: rp.Metadata(),
	}
}

type room struct {
	roomID       string
	sampleRateHz int

	mu     sync.Mutex
	lk     *lksdk.Room
	closed bool

	events   chan transport.RoomEvent
	discOnce sync.Once
}

func (r *room) setRoom(lk *lksdk.Room) {
	r.mu.Lock()
	r.lk = lk
	r.mu.Unlock()
}

func (r *room) Events() <-chan transport.RoomEvent {
	return r.events
}

func (r *room) RemoteParticipantCount() int {
	r.mu.Lock()
	lk := r.lk
	r.mu.Unlock()
	if lk == nil {
		return 0
	}
	return len(lk.GetRemoteParticipants())
}

// Disconnect leaves the room. The SDK's OnDisconnected callback closes the
// event stream, but closeEvents is called here as well so a failed connect
// cannot leave the stream open.
func (r *room) Disconnect() {
	r.discOnce.Do(func() {
		r.mu.Lock()
		lk := r.lk
		r.mu.Unlock()
		if lk != nil {
			lk.Disconnect()
		}
		r.closeEvents()
	})
}

// emit delivers a room event without blocking the SDK callback goroutine.
func (r *room) emit(ev transport.RoomEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		logging.Warning(logging.CategoryRoom, "room event buffer full, dropping event room=%s kind=%d", r.roomID, ev.Kind)
	}
}

func (r *room) closeEvents() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
}
