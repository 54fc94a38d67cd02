package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/mstrnad/voxbridge/internal/convo"
	"github.com/mstrnad/voxbridge/internal/llm"
	"github.com/mstrnad/voxbridge/internal/stt"
	"github.com/mstrnad/voxbridge/internal/tts"
)

type RouterConfig struct {
	// Voice AI providers
	DeepgramAPIKey   string
	OpenAIAPIKey     string
	ElevenLabsAPIKey string

	// STT settings
	STTLanguage       string // e.g., "en-US"
	STTModel          string // e.g., "nova-3"
	STTEncoding       string // empty to let Deepgram sniff the container
	STTSampleRate     int
	STTEndpointingMs  int // Deepgram endpointing in ms (silence threshold)
	STTUtteranceEndMs int // Hard timeout after last speech, regardless of noise

	// TTS settings
	TTSProvider   string // "deepgram" (default) or "elevenlabs"
	TTSModel      string // Deepgram Speak model
	TTSVoiceID    string // ElevenLabs voice ID
	TTSStability  float64
	TTSSimilarity float64

	// LLM settings
	LLMModel     string
	SystemPrompt string

	// Shared HTTP client with connection pooling for REST collaborators
	ProviderHTTPClient *http.Client
}

type Router struct {
	cfg           RouterConfig
	logger        *log.Logger
	conversations *ConversationRegistry
	mux           *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, conversations *ConversationRegistry) http.Handler {
	r := &Router{
		cfg:           cfg,
		logger:        logger,
		conversations: conversations,
		mux:           http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /listen", r.handleListenWS)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"active_conversations": r.conversations.ActiveCount(),
	})
}

// sttDialer builds the Dialer that opens Deepgram live sessions for one
// conversation.
func (r *Router) sttDialer(ctx context.Context) stt.Dialer {
	cfg := stt.DeepgramConfig{
		APIKey:         r.cfg.DeepgramAPIKey,
		Language:       r.cfg.STTLanguage,
		Model:          r.cfg.STTModel,
		Encoding:       r.cfg.STTEncoding,
		SampleRate:     r.cfg.STTSampleRate,
		Channels:       1,
		Punctuate:      true,
		InterimResults: true,
		Diarize:        true,
		SmartFormat:    true,
		VADEvents:      true,
		Endpointing:    r.cfg.STTEndpointingMs,
		UtteranceEndMs: r.cfg.STTUtteranceEndMs,
	}
	return func(sink stt.EventSink) (stt.LiveSession, error) {
		return stt.DialDeepgram(ctx, cfg, sink, r.logger)
	}
}

func (r *Router) newSynthesizer() convo.Synthesizer {
	if r.cfg.TTSProvider == "elevenlabs" {
		return tts.NewElevenLabsClient(tts.ElevenLabsConfig{
			APIKey:     r.cfg.ElevenLabsAPIKey,
			VoiceID:    r.cfg.TTSVoiceID,
			Stability:  r.cfg.TTSStability,
			Similarity: r.cfg.TTSSimilarity,
			HTTPClient: r.cfg.ProviderHTTPClient,
		})
	}
	return tts.NewDeepgramClient(tts.DeepgramConfig{
		APIKey:     r.cfg.DeepgramAPIKey,
		Model:      r.cfg.TTSModel,
		HTTPClient: r.cfg.ProviderHTTPClient,
	})
}

func (r *Router) newResponder() convo.Responder {
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:       r.cfg.OpenAIAPIKey,
		Model:        r.cfg.LLMModel,
		SystemPrompt: r.cfg.SystemPrompt,
		HTTPClient:   r.cfg.ProviderHTTPClient,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
