package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const deepgramWSURL = "wss://api.deepgram.com/v1/listen"

// DeepgramSession implements LiveSession using Deepgram's streaming API.
type DeepgramSession struct {
	conn      *websocket.Conn
	sink      EventSink
	logger    *log.Logger
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	wg        sync.WaitGroup // Wait for readLoop to finish
}

// DeepgramConfig holds configuration for a Deepgram live session.
type DeepgramConfig struct {
	APIKey         string
	Language       string // e.g., "en-US"
	Model          string // e.g., "nova-3"
	SampleRate     int    // e.g., 16000; 0 to let Deepgram sniff the container
	Encoding       string // e.g., "linear16"; empty to let Deepgram sniff
	Channels       int    // e.g., 1 for mono
	Punctuate      bool
	InterimResults bool
	Diarize        bool // passed through to the provider, results are unchanged
	SmartFormat    bool
	VADEvents      bool
	Endpointing    int // milliseconds of silence for endpointing, 0 for default
	UtteranceEndMs int // hard timeout after last speech, regardless of noise (0 for default)
}

// deepgramResponse represents a Deepgram WebSocket response.
type deepgramResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool `json:"is_final"`
}

// DialDeepgram opens a new Deepgram live-transcription session. Every
// recognition result is delivered to sink from the session's read loop.
func DialDeepgram(ctx context.Context, cfg DeepgramConfig, sink EventSink, logger *log.Logger) (*DeepgramSession, error) {
	url := fmt.Sprintf("%s?model=%s&language=%s&punctuate=%t&interim_results=%t&diarize=%t&smart_format=%t&vad_events=%t",
		deepgramWSURL,
		cfg.Model,
		cfg.Language,
		cfg.Punctuate,
		cfg.InterimResults,
		cfg.Diarize,
		cfg.SmartFormat,
		cfg.VADEvents,
	)

	// Encoding parameters are optional: without them Deepgram sniffs the
	// container format, which is what browser-encoded audio needs.
	if cfg.Encoding != "" {
		url += fmt.Sprintf("&encoding=%s&sample_rate=%d&channels=%d", cfg.Encoding, cfg.SampleRate, cfg.Channels)
	}

	if cfg.Endpointing > 0 {
		url += fmt.Sprintf("&endpointing=%d", cfg.Endpointing)
	}

	if cfg.UtteranceEndMs > 0 {
		url += fmt.Sprintf("&utterance_end_ms=%d", cfg.UtteranceEndMs)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	s := &DeepgramSession{
		conn:   conn,
		sink:   sink,
		logger: logger,
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

// Send forwards one audio frame to Deepgram.
func (s *DeepgramSession) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return fmt.Errorf("session is closed")
	default:
	}

	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// IsConnected reports whether the session is still live.
func (s *DeepgramSession) IsConnected() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Finish closes the Deepgram session.
func (s *DeepgramSession) Finish() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		// Tell Deepgram to flush any pending results before the socket drops.
		s.mu.Lock()
		closeMsg := []byte(`{"type": "CloseStream"}`)
		_ = s.conn.WriteMessage(websocket.TextMessage, closeMsg)
		s.mu.Unlock()

		err = s.conn.Close()

		s.wg.Wait()
	})
	return err
}

// readLoop reads responses from Deepgram and delivers them to the sink.
func (s *DeepgramSession) readLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Printf("deepgram: read error: %v", err)
			}
			// The session is unusable once the read side fails.
			go s.Finish()
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			s.logger.Printf("deepgram: failed to parse response: %v", err)
			continue
		}

		// Skip non-results messages (metadata, speech-started, utterance-end).
		if resp.Type != "Results" {
			continue
		}

		var transcript string
		if len(resp.Channel.Alternatives) > 0 {
			transcript = resp.Channel.Alternatives[0].Transcript
		}

		s.sink(TranscriptEvent{
			Text:       transcript,
			IsFinal:    resp.IsFinal,
			ReceivedAt: time.Now(),
		})
	}
}
