// Package agent owns the per-room transcription lifecycle: the registry
// guarantees at most one agent per room, each agent supervises one room's
// track transcribers.
package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/bus"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/logging"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/metrics"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/transport"
)

// State is the agent lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Agent runs one room's transcription session. It connects to the room,
// spawns a track transcriber per audio track, and drains when the room
// empties or the connection is lost.
type Agent struct {
	roomID       string
	connector    transport.Connector
	sttClient    stt.Client
	bus          *bus.Bus
	sink         FinalSink
	drainTimeout time.Duration

	state   atomic.Int32
	trackWG sync.WaitGroup
}

// NewAgent creates an agent for one room. sink may be nil.
func NewAgent(roomID string, connector transport.Connector, sttClient stt.Client, b *bus.Bus, sink FinalSink, drainTimeout time.Duration) *Agent {
	return &Agent{
		roomID:       roomID,
		connector:    connector,
		sttClient:    sttClient,
		bus:          b,
		sink:         sink,
		drainTimeout: drainTimeout,
	}
}

// State returns the agent's current lifecycle state.
func (a *Agent) State() State {
	return State(a.state.Load())
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
	logging.Debug(logging.CategoryAgent, "agent state room=%s state=%s", a.roomID, s)
}

// Run executes the agent until the room empties, the connection drops, or
// ctx is canceled. The room is disconnected on every exit path.
func (a *Agent) Run(ctx context.Context) error {
	m := metrics.DefaultMetrics
	m.AgentsStarted.Inc()
	m.AgentsActive.Inc()
	defer m.AgentsActive.Dec()

	a.setState(StateConnecting)

	// Track transcribers are children of this context; draining cancels
	// them all.
	trackCtx, cancelTracks := context.WithCancel(ctx)
	defer cancelTracks()

	room, err := a.connector.Connect(ctx, a.roomID)
	if err != nil {
		a.setState(StateTerminated)
		return fmt.Errorf("connect to room %s: %w", a.roomID, err)
	}
	defer room.Disconnect()

	a.setState(StateActive)
	logging.Info(logging.CategoryAgent, "agent active room=%s participants=%d", a.roomID, room.RemoteParticipantCount())

	a.watch(ctx, trackCtx, room)

	a.setState(StateDraining)
	cancelTracks()

	// Transcribers observe the canceled track/session and exit within
	// bounded time; the timeout guards against a provider that does not.
	done := make(chan struct{})
	go func() {
		a.trackWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.drainTimeout):
		logging.Warning(logging.CategoryAgent, "drain timeout exceeded room=%s", a.roomID)
	}

	room.Disconnect()
	a.setState(StateTerminated)
	logging.Info(logging.CategoryAgent, "agent terminated room=%s", a.roomID)
	return nil
}

// watch consumes room events until a drain trigger: room empty, connection
// lost, or ctx canceled.
func (a *Agent) watch(ctx, trackCtx context.Context, room transport.Room) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-room.Events():
			if !ok {
				logging.Warning(logging.CategoryAgent, "room connection lost room=%s", a.roomID)
				return
			}
			switch ev.Kind {
			case transport.TrackSubscribed:
				a.spawnTranscriber(trackCtx, ev)
			case transport.ParticipantLeft:
				if room.RemoteParticipantCount() == 0 {
					logging.Info(logging.CategoryAgent, "room empty room=%s", a.roomID)
					return
				}
			}
		}
	}
}

// spawnTranscriber starts an independent transcriber for one track. A failed
// track is logged and does not affect its siblings or the agent.
func (a *Agent) spawnTranscriber(ctx context.Context, ev transport.RoomEvent) {
	tt := &trackTranscriber{
		roomID:      a.roomID,
		track:       ev.Track,
		participant: ev.Participant,
		sttClient:   a.sttClient,
		bus:         a.bus,
		sink:        a.sink,
	}

	a.trackWG.Add(1)
	go func() {
		defer a.trackWG.Done()
		if err := tt.run(ctx); err != nil {
			logging.Error(logging.CategoryTrack, "track transcription failed room=%s track=%s: %v",
				a.roomID, ev.Track.ID(), err)
		}
	}()
}
