// Package stt defines the interface for streaming speech-to-text providers.
package stt

import "context"

// EventKind classifies a transcript event.
type EventKind int

const (
	// KindInterim is a partial transcript, still subject to revision.
	KindInterim EventKind = iota
	// KindFinal marks an utterance as complete.
	KindFinal
)

// Alternative is one candidate transcription of an utterance.
type Alternative struct {
	Text       string
	Confidence float64
}

// Event is a single transcript result from a streaming session.
type Event struct {
	Kind         EventKind
	Alternatives []Alternative
}

// Text returns the best alternative's text, or "" if there is none.
func (e Event) Text() string {
	if len(e.Alternatives) == 0 {
		return ""
	}
	return e.Alternatives[0].Text
}

// Stream is one streaming transcription session. PushFrame feeds 16-bit PCM
// audio in; Events yields transcript results until the session closes.
// EndInput signals that no more audio will arrive; the provider flushes any
// pending results and then closes the events channel.
type Stream interface {
	// PushFrame sends one frame of mono PCM16 audio at the session's sample
	// rate.
	PushFrame(frame []int16) error

	// EndInput signals end of audio. Safe to call at most once.
	EndInput()

	// Events returns the transcript event channel. It is closed when the
	// session ends, normally or on error.
	Events() <-chan Event

	// Err reports the session error after Events is closed, if any.
	Err() error
}

// Client opens streaming sessions against a provider.
type Client interface {
	// Stream starts a new transcription session. The session is torn down
	// when ctx is canceled or EndInput has propagated through the provider.
	Stream(ctx context.Context) (Stream, error)
}
