package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/bus"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/identity"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/logging"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/metrics"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/transport"
)

// FinalSink receives every published final transcript, in addition to the
// bus. Used to mirror transcripts to external systems; delivery is
// best-effort and must not affect the broadcast path.
type FinalSink interface {
	PublishFinal(ctx context.Context, ev bus.Event) error
}

// trackTranscriber binds one audio track to one STT session for the track's
// lifetime: a feed loop pushes audio frames into the session, a drain loop
// publishes finalized transcripts to the bus.
type trackTranscriber struct {
	roomID      string
	track       transport.AudioTrack
	participant transport.Participant
	sttClient   stt.Client
	bus         *bus.Bus
	sink        FinalSink // optional
}

// run blocks until the track ends and the STT session has flushed all
// remaining events. Errors are confined to this track.
func (t *trackTranscriber) run(ctx context.Context) error {
	m := metrics.DefaultMetrics
	m.TracksActive.Inc()
	defer m.TracksActive.Dec()

	sessionID := uuid.NewString()
	logging.Info(logging.CategoryTrack, "transcribing track room=%s track=%s participant=%s session=%s",
		t.roomID, t.track.ID(), t.participant.Identity, sessionID)

	stream, err := t.sttClient.Stream(ctx)
	if err != nil {
		m.TrackErrors.Inc()
		return fmt.Errorf("open stt session: %w", err)
	}

	// Feed loop: audio frames in, end-of-input exactly once when the track's
	// frame sequence is exhausted. Runs independently of the drain loop
	// below; the drain loop completes naturally once end-of-input propagates
	// through the provider.
	frames := t.track.Frames(ctx)
	go func() {
		defer stream.EndInput()
		for frame := range frames {
			if err := stream.PushFrame(frame); err != nil {
				logging.Warning(logging.CategoryTrack, "push frame failed track=%s session=%s: %v",
					t.track.ID(), sessionID, err)
				return
			}
		}
	}()

	// Drain loop: interim transcripts are ignored, empty finals skipped,
	// everything else published.
	for ev := range stream.Events() {
		switch ev.Kind {
		case stt.KindInterim:
			m.TranscriptsInterim.Inc()
		case stt.KindFinal:
			text := ev.Text()
			if text == "" {
				continue
			}
			t.publish(ctx, text)
		}
	}

	if err := stream.Err(); err != nil {
		m.TrackErrors.Inc()
		return fmt.Errorf("stt session: %w", err)
	}

	logging.Info(logging.CategoryTrack, "track finished room=%s track=%s session=%s", t.roomID, t.track.ID(), sessionID)
	return nil
}

func (t *trackTranscriber) publish(ctx context.Context, text string) {
	name := identity.Resolve(t.participant.Identity, t.participant.Name, t.participant.Metadata)
	ev := bus.Event{
		RoomID:              t.roomID,
		Timestamp:           time.Now().UTC(),
		ParticipantIdentity: t.participant.Identity,
		ParticipantName:     name,
		Text:                text,
	}

	logging.Info(logging.CategoryTrack, "transcript room=%s participant=%s: %s", t.roomID, name, text)
	t.bus.Publish(t.roomID, ev)
	metrics.DefaultMetrics.TranscriptsFinal.Inc()

	if t.sink != nil {
		if err := t.sink.PublishFinal(ctx, ev); err != nil {
			logging.Warning(logging.CategoryTrack, "mirror publish failed room=%s: %v", t.roomID, err)
		}
	}
}
