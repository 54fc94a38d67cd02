package app

import (
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/mstrnad/voxbridge/internal/httpapi"
)

type App struct {
	cfg           Config
	logger        *log.Logger
	httpClient    *http.Client // Shared HTTP client with connection pooling for TTS/LLM
	conversations *httpapi.ConversationRegistry
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DeepgramAPIKey == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	if cfg.TTSProvider == "elevenlabs" && cfg.ElevenLabsAPIKey == "" {
		return nil, errors.New("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
	}

	// Shared HTTP client with connection pooling for the REST collaborators.
	// Keeps TCP connections alive to reduce per-sentence latency for repeated
	// TTS and LLM calls.
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return &App{
		cfg:           cfg,
		logger:        logger,
		httpClient:    httpClient,
		conversations: httpapi.NewConversationRegistry(),
	}, nil
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		DeepgramAPIKey:   a.cfg.DeepgramAPIKey,
		OpenAIAPIKey:     a.cfg.OpenAIAPIKey,
		ElevenLabsAPIKey: a.cfg.ElevenLabsAPIKey,

		STTLanguage:       a.cfg.STTLanguage,
		STTModel:          a.cfg.STTModel,
		STTEncoding:       a.cfg.STTEncoding,
		STTSampleRate:     a.cfg.STTSampleRate,
		STTEndpointingMs:  a.cfg.STTEndpointingMs,
		STTUtteranceEndMs: a.cfg.STTUtteranceEndMs,

		TTSProvider:   a.cfg.TTSProvider,
		TTSModel:      a.cfg.TTSModel,
		TTSVoiceID:    a.cfg.TTSVoiceID,
		TTSStability:  a.cfg.TTSStability,
		TTSSimilarity: a.cfg.TTSSimilarity,

		LLMModel:     a.cfg.LLMModel,
		SystemPrompt: a.cfg.SystemPrompt,

		ProviderHTTPClient: a.httpClient,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.conversations)
}

// Conversations exposes the registry so main can drain on shutdown.
func (a *App) Conversations() *httpapi.ConversationRegistry {
	return a.conversations
}
