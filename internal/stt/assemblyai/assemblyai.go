// Package assemblyai implements stt.Client against the AssemblyAI realtime
// streaming API (v3) over websocket.
package assemblyai

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/logging"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt"
)

const defaultEndpoint = "wss://streaming.assemblyai.com/v3/ws"

// Message types on the realtime websocket.
type beginMessage struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type            string  `json:"type"`
	Transcript      string  `json:"transcript"`
	EndOfTurn       bool    `json:"end_of_turn"`
	TurnIsFormatted bool    `json:"turn_is_formatted"`
	EndOfTurnConf   float64 `json:"end_of_turn_confidence"`
}

type terminateMessage struct {
	Type string `json:"type"`
}

// Client opens realtime transcription sessions.
type Client struct {
	apiKey       string
	sampleRateHz int
	endpoint     string
}

// NewClient creates an AssemblyAI realtime client.
func NewClient(apiKey string, sampleRateHz int) *Client {
	return &Client{
		apiKey:       apiKey,
		sampleRateHz: sampleRateHz,
		endpoint:     defaultEndpoint,
	}
}

// Stream dials a new realtime session.
func (c *Client) Stream(ctx context.Context) (stt.Stream, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(c.sampleRateHz))
	q.Set("format_turns", "true")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", c.apiKey)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("dial realtime endpoint: %w", err)
	}
	resp.Body.Close()

	s := &session{
		conn:   conn,
		events: make(chan stt.Event, 16),
	}

	// Tear the socket down when the caller cancels; the read loop then
	// unblocks and closes the event channel.
	sessionCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		<-sessionCtx.Done()
		conn.Close()
	}()
	go s.readLoop()

	return s, nil
}

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	endOnce sync.Once
	cancel  context.CancelFunc

	events chan stt.Event

	errMu sync.Mutex
	err   error
}

func (s *session) PushFrame(frame []int16) error {
	buf := make([]byte, len(frame)*2)
	for i, sample := range frame {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return fmt.Errorf("write audio frame: %w", err)
	}
	return nil
}

func (s *session) EndInput() {
	s.endOnce.Do(func() {
		msg, _ := json.Marshal(terminateMessage{Type: "Terminate"})
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logging.Warning(logging.CategorySTT, "failed to send terminate message: %v", err)
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

// readLoop drains websocket messages until the server terminates the session
// or the connection drops.
func (s *session) readLoop() {
	defer close(s.events)
	defer s.cancel()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(fmt.Errorf("read realtime message: %w", err))
			}
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			logging.Warning(logging.CategorySTT, "unparseable realtime message: %v", err)
			continue
		}

		switch envelope.Type {
		case "Begin":
			var begin beginMessage
			if err := json.Unmarshal(data, &begin); err == nil {
				logging.Debug(logging.CategorySTT, "realtime session started sessionID=%s", begin.ID)
			}
		case "Turn":
			var turn turnMessage
			if err := json.Unmarshal(data, &turn); err != nil {
				logging.Warning(logging.CategorySTT, "unparseable turn message: %v", err)
				continue
			}
			kind := stt.KindInterim
			// With format_turns enabled the formatted end-of-turn message is
			// the authoritative final.
			if turn.EndOfTurn && turn.TurnIsFormatted {
				kind = stt.KindFinal
			}
			s.events <- stt.Event{
				Kind: kind,
				Alternatives: []stt.Alternative{
					{Text: turn.Transcript, Confidence: turn.EndOfTurnConf},
				},
			}
		case "Termination":
			return
		}
	}
}
