package livekitroom

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	soxr "github.com/zaf/resample"
	opus "gopkg.in/hraban/opus.v2"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/logging"
)

// sourceRateHz is the Opus decode rate for LiveKit audio tracks.
const sourceRateHz = 48000

// audioTrack adapts a remote webrtc track into a lazy PCM frame sequence:
// RTP packets are unmarshaled, the Opus payload decoded at 48kHz mono, the
// samples resampled to the target rate and re-chunked into 20ms frames.
type audioTrack struct {
	sid          string
	track        *webrtc.TrackRemote
	sampleRateHz int
}

func newAudioTrack(track *webrtc.TrackRemote, sampleRateHz int) *audioTrack {
	return &audioTrack{
		sid:          track.ID(),
		track:        track,
		sampleRateHz: sampleRateHz,
	}
}

func (t *audioTrack) ID() string {
	return t.sid
}

// Frames starts the decode pipeline. The returned channel closes when the
// track ends, the room disconnects, or ctx is canceled.
func (t *audioTrack) Frames(ctx context.Context) <-chan []int16 {
	out := make(chan []int16, 32)
	go t.pump(ctx, out)
	return out
}

func (t *audioTrack) pump(ctx context.Context, out chan<- []int16) {
	defer close(out)

	decoder, err := opus.NewDecoder(sourceRateHz, 1)
	if err != nil {
		logging.Error(logging.CategoryRoom, "create opus decoder track=%s: %v", t.sid, err)
		return
	}

	resamplerBuf := &bytes.Buffer{}
	resampler, err := soxr.New(resamplerBuf, float64(sourceRateHz), float64(t.sampleRateHz), 1, soxr.I16, soxr.HighQ)
	if err != nil {
		logging.Error(logging.CategoryRoom, "create resampler track=%s: %v", t.sid, err)
		return
	}
	defer resampler.Close()

	// 20ms frames at the target rate.
	frameSize := t.sampleRateHz / 50

	buf := make([]byte, 1500)
	rtpPacket := &rtp.Packet{}
	pcm48k := make([]int16, 960) // 20ms @ 48kHz
	var pending []int16

	for {
		if ctx.Err() != nil {
			return
		}

		n, _, err := t.track.Read(buf)
		if err != nil {
			// Track ended or room disconnected.
			if ctx.Err() == nil {
				logging.Debug(logging.CategoryRoom, "track read ended track=%s: %v", t.sid, err)
			}
			return
		}

		if err := rtpPacket.Unmarshal(buf[:n]); err != nil {
			logging.Warning(logging.CategoryRoom, "unmarshal RTP packet track=%s: %v", t.sid, err)
			continue
		}
		if len(rtpPacket.Payload) == 0 {
			continue // DTX packet
		}

		sampleCount, err := decoder.Decode(rtpPacket.Payload, pcm48k)
		if err != nil {
			logging.Warning(logging.CategoryRoom, "decode opus track=%s: %v", t.sid, err)
			continue
		}
		if sampleCount == 0 {
			continue
		}

		resampled, err := resampleChunk(resampler, resamplerBuf, pcm48k[:sampleCount])
		if err != nil {
			logging.Warning(logging.CategoryRoom, "resample track=%s: %v", t.sid, err)
			continue
		}
		if len(resampled) == 0 {
			// Resampler is buffering.
			continue
		}

		pending = append(pending, resampled...)
		for len(pending) >= frameSize {
			frame := make([]int16, frameSize)
			copy(frame, pending[:frameSize])
			pending = pending[frameSize:]

			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}

// resampleChunk pushes one decoded chunk through the resampler and returns
// the converted samples.
func resampleChunk(resampler *soxr.Resampler, resamplerBuf *bytes.Buffer, samples []int16) ([]int16, error) {
	input := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(sample))
	}

	resamplerBuf.Reset()
	if _, err := resampler.Write(input); err != nil {
		return nil, fmt.Errorf("resampler write: %w", err)
	}

	outputBytes := resamplerBuf.Bytes()
	if len(outputBytes) == 0 {
		return nil, nil
	}

	output := make([]int16, len(outputBytes)/2)
	for i := range output {
		output[i] = int16(binary.LittleEndian.Uint16(outputBytes[i*2:]))
	}
	return output, nil
}
