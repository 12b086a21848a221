// Package bus implements the per-room transcript broadcast bus.
//
// Subscribers register a buffered channel against a room; publishing fans the
// event out to every channel registered for that room. Delivery is
// best-effort: a subscriber whose buffer is full has the event dropped for it
// alone, so one stalled viewer never delays the others.
package bus

import (
	"sync"
	"time"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/metrics"
)

// subscriberBuffer is the per-subscriber delivery queue capacity.
const subscriberBuffer = 256

// Event is a finalized transcript broadcast to room subscribers.
type Event struct {
	RoomID              string    `json:"roomId"`
	Timestamp           time.Time `json:"timestamp"`
	ParticipantIdentity string    `json:"participantIdentity"`
	ParticipantName     string    `json:"participantName"`
	Text                string    `json:"text"`
}

// Subscriber is one viewer's registration on a room. Events are received
// from Events until Unsubscribe closes it.
type Subscriber struct {
	roomID string
	ch     chan Event
}

// Events returns the subscriber's delivery channel. It is closed on
// unsubscribe.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// RoomID returns the room this subscriber is registered on.
func (s *Subscriber) RoomID() string {
	return s.roomID
}

// Bus owns the roomID -> subscriber-set map. All access goes through its
// methods.
type Bus struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Subscriber]struct{}
	metrics *metrics.Metrics
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		rooms:   make(map[string]map[*Subscriber]struct{}),
		metrics: metrics.DefaultMetrics,
	}
}

// Subscribe registers a new subscriber for a room, creating the room's set if
// absent. It never blocks.
func (b *Bus) Subscribe(roomID string) *Subscriber {
	sub := &Subscriber{
		roomID: roomID,
		ch:     make(chan Event, subscriberBuffer),
	}

	b.mu.Lock()
	set, ok := b.rooms[roomID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.rooms[roomID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	b.metrics.SubscribersActive.Inc()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Removing the last
// subscriber deletes the room's entry. Unsubscribing twice is a no-op.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.rooms[sub.roomID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.rooms, sub.roomID)
	}
	close(sub.ch)
	b.metrics.SubscribersActive.Dec()
}

// Publish delivers an event to every subscriber currently registered for the
// room. With no subscribers the event is dropped; there is no replay. A full
// subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(roomID string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set, ok := b.rooms[roomID]
	if !ok {
		b.metrics.EventsDropped.WithLabelValues("no_subscribers").Inc()
		return
	}

	b.metrics.EventsPublished.Inc()
	for sub := range set {
		select {
		case sub.ch <- ev:
		default:
			b.metrics.EventsDropped.WithLabelValues("slow_subscriber").Inc()
		}
	}
}

// SubscriberCount reports how many subscribers a room currently has.
func (b *Bus) SubscriberCount(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[roomID])
}
