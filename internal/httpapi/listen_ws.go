package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mstrnad/voxbridge/internal/convo"
	"github.com/mstrnad/voxbridge/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	// keepaliveInterval is how often the ticker checks whether the upstream
	// session needs a silence frame to stay alive.
	keepaliveInterval = 8 * time.Second

	// keepaliveFrameLen is the length of the silence frame sent upstream.
	keepaliveFrameLen = 320
)

// clientCommand is an inbound text message: either a control command or
// JSON-wrapped base64 audio.
type clientCommand struct {
	Action string `json:"action,omitempty"` // "start_listening" | "stop_listening"
	Type   string `json:"type,omitempty"`   // "audio"
	Data   string `json:"data,omitempty"`   // base64 audio payload
}

// statusMessage reports session lifecycle changes to the client.
type statusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// conversationDeps are the collaborators one conversation needs. Tests
// substitute fakes for all of them.
type conversationDeps struct {
	dial      stt.Dialer
	synth     convo.Synthesizer
	responder convo.Responder
	logger    *log.Logger
}

// conversation owns all state for one /listen WebSocket connection.
type conversation struct {
	id     string
	conn   *websocket.Conn
	connMu sync.Mutex

	state    *convo.TurnState
	sessions *stt.SessionManager
	router   *convo.TranscriptRouter
	logger   *log.Logger

	keepaliveMu     sync.Mutex
	keepaliveCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

func (r *Router) handleListenWS(w http.ResponseWriter, req *http.Request) {
	if r.cfg.DeepgramAPIKey == "" || r.cfg.OpenAIAPIKey == "" {
		r.logger.Printf("listen_ws: missing API keys")
		captureError(req, fmt.Errorf("voice pipeline not configured: missing API keys"), "listen_ws: configuration error")
		http.Error(w, "voice pipeline not configured", http.StatusServiceUnavailable)
		return
	}

	if !r.conversations.Add() {
		http.Error(w, "server is draining", http.StatusServiceUnavailable)
		return
	}
	defer r.conversations.Done()

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("listen_ws: upgrade failed: %v", err)
		return
	}

	deps := conversationDeps{
		dial:      r.sttDialer(req.Context()),
		synth:     r.newSynthesizer(),
		responder: r.newResponder(),
		logger:    r.logger,
	}

	runConversation(req.Context(), conn, deps)
}

// runConversation wires up one conversation and blocks until the client
// disconnects.
func runConversation(parent context.Context, conn *websocket.Conn, deps conversationDeps) {
	ctx, cancel := context.WithCancel(parent)

	c := &conversation{
		id:     uuid.NewString(),
		conn:   conn,
		state:  convo.NewTurnState(),
		logger: deps.logger,
		ctx:    ctx,
		cancel: cancel,
	}
	c.sessions = stt.NewSessionManager(deps.dial, deps.logger)

	player := convo.NewResponsePlayer(c.state, deps.synth, c, deps.logger)
	c.router = convo.NewTranscriptRouter(c.state, deps.responder, player, c, deps.logger)

	deps.logger.Printf("listen_ws: conversation %s connected", c.id)
	c.run()
}

// Emit sends a JSON message to the client. All outbound writes go through the
// connection mutex; the inbound loop, the transcript consumer, and the player
// all write concurrently.
func (c *conversation) Emit(v any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *conversation) run() {
	defer c.cleanup()

	go c.router.Run(c.ctx)

	if err := c.Emit(statusMessage{Status: "ready", Message: "Server ready to accept commands"}); err != nil {
		c.logger.Printf("listen_ws: failed to send ready status: %v", err)
		return
	}

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Printf("listen_ws: conversation %s disconnected", c.id)
			} else {
				c.logger.Printf("listen_ws: read error for conversation %s: %v", c.id, err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			c.handleText(data)
		case websocket.BinaryMessage:
			c.handleAudioFrame(data)
		}
	}
}

func (c *conversation) handleText(data []byte) {
	var msg clientCommand
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Printf("listen_ws: invalid JSON message: %v", err)
		return
	}

	switch {
	case msg.Action == "start_listening":
		c.handleStartListening()

	case msg.Action == "stop_listening":
		c.handleStopListening()

	case msg.Type == "audio" && msg.Data != "":
		audio, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			c.logger.Printf("listen_ws: invalid base64 audio payload: %v", err)
			return
		}
		c.handleAudioFrame(audio)
	}
}

func (c *conversation) handleStartListening() {
	if err := c.sessions.Open(c.onTranscript); err != nil {
		c.send(statusMessage{Status: "error", Message: "Failed to start listening"})
		return
	}
	c.startKeepalive()
	c.send(statusMessage{Status: "listening", Message: "Ready for audio"})
}

func (c *conversation) handleStopListening() {
	// A stop command also cancels an in-flight response.
	if c.state.IsSpeaking() {
		c.logger.Printf("listen_ws: stop command while assistant speaking, cancelling response")
		c.state.ResetSpeaking()
	}
	c.stopKeepalive()
	c.sessions.Close()
	c.send(statusMessage{Status: "stopped", Message: "Connection closed"})
}

// handleAudioFrame forwards one inbound audio frame upstream. Half-duplex
// policy: frames arriving while the assistant speaks are dropped, since the
// microphone is not being listened to.
func (c *conversation) handleAudioFrame(frame []byte) {
	if c.state.IsSpeaking() {
		c.logger.Printf("listen_ws: assistant speaking, dropping inbound audio frame")
		return
	}

	c.state.TouchInboundAudio()

	if c.sessions.SendAudio(frame) {
		return
	}

	// Session is gone; reopen transparently and retry the frame once.
	if err := c.sessions.Open(c.onTranscript); err != nil {
		c.logger.Printf("listen_ws: auto-reopen failed: %v", err)
		return
	}
	c.startKeepalive()
	if c.sessions.SendAudio(frame) {
		c.send(statusMessage{Status: "listening", Message: "Auto-started listening"})
	}
}

// onTranscript is the upstream event callback. It only filters and enqueues;
// every turn-taking decision belongs to the consumer loop.
func (c *conversation) onTranscript(ev stt.TranscriptEvent) {
	if !ev.IsFinal || ev.Text == "" {
		return
	}
	c.logger.Printf("listen_ws: final transcript: %s", ev.Text)
	c.state.Enqueue(convo.Utterance{Text: ev.Text, ReceivedAt: ev.ReceivedAt})
}

func (c *conversation) startKeepalive() {
	c.keepaliveMu.Lock()
	defer c.keepaliveMu.Unlock()
	if c.keepaliveCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.keepaliveCancel = cancel
	go c.keepaliveLoop(ctx)
}

// stopKeepalive cancels the ticker. Stopping an already-stopped ticker is a
// no-op.
func (c *conversation) stopKeepalive() {
	c.keepaliveMu.Lock()
	defer c.keepaliveMu.Unlock()
	if c.keepaliveCancel == nil {
		return
	}
	c.keepaliveCancel()
	c.keepaliveCancel = nil
}

// keepaliveLoop sends short runs of silence upstream while the assistant
// speaks, so the idle transcription session does not time out.
func (c *conversation) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.state.NeedsKeepalive() && c.sessions.IsHealthy() {
				silence := make([]byte, keepaliveFrameLen)
				if c.sessions.SendAudio(silence) {
					c.logger.Printf("listen_ws: sent keepalive during assistant speech")
				}
			}
		}
	}
}

// send emits a status message, logging instead of failing the caller.
func (c *conversation) send(msg statusMessage) {
	if err := c.Emit(msg); err != nil {
		c.logger.Printf("listen_ws: failed to send status %q: %v", msg.Status, err)
	}
}

// cleanup tears down every per-conversation resource. Each step is
// independently best-effort; none may prevent the others from running.
func (c *conversation) cleanup() {
	c.cancel()
	c.stopKeepalive()
	c.sessions.Close()
	c.state.Reset()

	c.connMu.Lock()
	c.conn.Close()
	c.connMu.Unlock()

	c.logger.Printf("listen_ws: conversation %s cleaned up", c.id)
}
