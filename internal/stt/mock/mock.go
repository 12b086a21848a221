// Package mock provides a scripted STT provider for development and tests
// without cloud credentials. Each session cycles through sample utterances,
// emitting progressive interim transcripts and exactly one final per
// utterance.
package mock

import (
	"context"
	"sync"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt"
)

// Utterance is one scripted utterance with progressive interim transcripts.
type Utterance struct {
	Interims   []string
	Final      string
	Confidence float64
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []Utterance{
	{
		Interims:   []string{"hello", "hello every"},
		Final:      "hello everyone",
		Confidence: 0.95,
	},
	{
		Interims:   []string{"can you", "can you hear"},
		Final:      "can you hear me",
		Confidence: 0.92,
	},
	{
		Interims:   []string{"let's get", "let's get started"},
		Final:      "let's get started then",
		Confidence: 0.97,
	},
}

// framesPerInterim controls how much audio advances the script by one step.
const framesPerInterim = 10

// Client implements stt.Client with scripted responses.
type Client struct {
	mu         sync.Mutex
	utterances []Utterance
	next       int
}

// NewClient creates a mock STT client cycling through the default utterances.
func NewClient() *Client {
	return &Client{utterances: DefaultUtterances}
}

// NewClientWithScript creates a mock client with a fixed script.
func NewClientWithScript(utterances []Utterance) *Client {
	return &Client{utterances: utterances}
}

// Stream starts a scripted session using the next utterance in the cycle.
func (c *Client) Stream(ctx context.Context) (stt.Stream, error) {
	c.mu.Lock()
	utt := c.utterances[c.next%len(c.utterances)]
	c.next++
	c.mu.Unlock()

	return &session{
		utterance: utt,
		events:    make(chan stt.Event, 16),
	}, nil
}

type session struct {
	utterance Utterance

	mu        sync.Mutex
	frames    int
	step      int
	finalSent bool
	ended     bool

	events chan stt.Event
}

// PushFrame advances the script: every framesPerInterim frames the next
// interim is emitted, then the final once the interims are exhausted.
func (s *session) PushFrame(frame []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil
	}

	s.frames++
	if s.frames%framesPerInterim != 0 {
		return nil
	}

	if s.step < len(s.utterance.Interims) {
		text := s.utterance.Interims[s.step]
		s.step++
		s.emit(stt.Event{
			Kind:         stt.KindInterim,
			Alternatives: []stt.Alternative{{Text: text}},
		})
		return nil
	}

	if !s.finalSent {
		s.finalSent = true
		s.emit(stt.Event{
			Kind: stt.KindFinal,
			Alternatives: []stt.Alternative{
				{Text: s.utterance.Final, Confidence: s.utterance.Confidence},
			},
		})
	}
	return nil
}

// EndInput flushes the final transcript if it was not reached naturally and
// closes the session.
func (s *session) EndInput() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.ended = true

	if !s.finalSent && s.frames > 0 {
		s.finalSent = true
		s.emit(stt.Event{
			Kind: stt.KindFinal,
			Alternatives: []stt.Alternative{
				{Text: s.utterance.Final, Confidence: s.utterance.Confidence},
			},
		})
	}
	close(s.events)
}

func (s *session) Events() <-chan stt.Event {
	return s.events
}

func (s *session) Err() error {
	return nil
}

// emit delivers without blocking; a consumer that cannot keep up with a
// scripted session loses the event.
func (s *session) emit(ev stt.Event) {
	select {
	case s.events <- ev:
	default:
	}
}
