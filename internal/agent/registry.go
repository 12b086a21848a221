package agent

import (
	"context"
	"sync"
	"time"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/bus"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/logging"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/transport"
)

// AttachStatus is the result of an attach request.
type AttachStatus string

const (
	StatusStarted        AttachStatus = "started"
	StatusAlreadyRunning AttachStatus = "already_running"
)

// Registry owns the roomID -> running agent map and guarantees at most one
// agent per room. Agents reap their own entry on termination; attach and reap
// are serialized on the registry lock, so a concurrent attach either sees the
// live agent or starts a fresh one after the old entry is gone.
type Registry struct {
	connector    transport.Connector
	sttClient    stt.Client
	bus          *bus.Bus
	sink         FinalSink
	drainTimeout time.Duration

	mu     sync.Mutex
	agents map[string]*Agent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates an empty registry. sink may be nil.
func NewRegistry(connector transport.Connector, sttClient stt.Client, b *bus.Bus, sink FinalSink, drainTimeout time.Duration) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		connector:    connector,
		sttClient:    sttClient,
		bus:          b,
		sink:         sink,
		drainTimeout: drainTimeout,
		agents:       make(map[string]*Agent),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Attach ensures an agent is running for the room. Returns
// StatusAlreadyRunning without side effects when a live entry exists,
// otherwise registers and starts a new agent.
func (r *Registry) Attach(roomID string) AttachStatus {
	r.mu.Lock()
	if _, ok := r.agents[roomID]; ok {
		r.mu.Unlock()
		return StatusAlreadyRunning
	}

	a := NewAgent(roomID, r.connector, r.sttClient, r.bus, r.sink, r.drainTimeout)
	r.agents[roomID] = a
	r.mu.Unlock()

	logging.Info(logging.CategoryAgent, "starting agent room=%s", roomID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.remove(roomID, a)
		if err := a.Run(r.ctx); err != nil {
			logging.Error(logging.CategoryAgent, "agent exited with error room=%s: %v", roomID, err)
		}
	}()

	return StatusStarted
}

// Running reports whether a live agent exists for the room.
func (r *Registry) Running(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.agents[roomID]
	return ok
}

// remove deletes the entry only if it still belongs to the terminating
// agent; an entry replaced by a newer attach is left alone.
func (r *Registry) remove(roomID string, a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.agents[roomID] == a {
		delete(r.agents, roomID)
	}
}

// Shutdown cancels all agents and waits for them to terminate, up to the
// given timeout.
func (r *Registry) Shutdown(timeout time.Duration) {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info(logging.CategoryAgent, "all agents terminated")
	case <-time.After(timeout):
		logging.Warning(logging.CategoryAgent, "timeout waiting for agents to terminate")
	}
}
