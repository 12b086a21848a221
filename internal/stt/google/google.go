// Package google implements stt.Client using Google Cloud Speech-to-Text
// streaming recognition.
//
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
package google

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt"
)

// Client opens streaming recognition sessions.
type Client struct {
	client       *speech.Client
	sampleRateHz int
	languageCode string
}

// NewClient creates a Google STT client.
func NewClient(ctx context.Context, sampleRateHz int, languageCode string) (*Client, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Client{
		client:       c,
		sampleRateHz: sampleRateHz,
		languageCode: languageCode,
	}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Stream starts a streaming recognition session and sends the initial config.
func (c *Client) Stream(ctx context.Context) (stt.Stream, error) {
	grpcStream, err := c.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("open streaming recognize: %w", err)
	}

	err = grpcStream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(c.sampleRateHz),
					LanguageCode:    c.languageCode,
				},
				InterimResults: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	s := &session{
		stream: grpcStream,
		events: make(chan stt.Event, 16),
	}
	go s.recvLoop()
	return s, nil
}

type session struct {
	stream  speechpb.Speech_StreamingRecognizeClient
	endOnce sync.Once

	events chan stt.Event

	errMu sync.Mutex
	err   error
}

func (s *session) PushFrame(frame []int16) error {
	buf := make([]byte, len(frame)*2)
	for i, sample := range frame {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: buf,
		},
	})
	if err != nil {
		return fmt.Errorf("send audio content: %w", err)
	}
	return nil
}

func (s *session) EndInput() {
	s.endOnce.Do(func() {
		if err := s.stream.CloseSend(); err != nil {
			s.setErr(fmt.Errorf("close send: %w", err))
		}
	})
}

func (s *session) Events() <-chan stt.Event {
	return s.events
}

func (s *session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *session) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// recvLoop receives recognition responses until the stream closes.
func (s *session) recvLoop() {
	defer close(s.events)

	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.setErr(fmt.Errorf("recv recognition response: %w", err))
			}
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}

			kind := stt.KindInterim
			if result.IsFinal {
				kind = stt.KindFinal
			}

			alternatives := make([]stt.Alternative, 0, len(result.Alternatives))
			for _, alt := range result.Alternatives {
				alternatives = append(alternatives, stt.Alternative{
					Text:       alt.Transcript,
					Confidence: float64(alt.Confidence),
				})
			}

			s.events <- stt.Event{Kind: kind, Alternatives: alternatives}
		}
	}
}
