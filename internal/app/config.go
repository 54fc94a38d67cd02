package app

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	SentryDSN string

	// Voice AI providers
	DeepgramAPIKey   string
	OpenAIAPIKey     string
	ElevenLabsAPIKey string

	// STT settings
	STTLanguage       string
	STTModel          string
	STTEncoding       string // empty lets Deepgram sniff browser container formats
	STTSampleRate     int
	STTEndpointingMs  int
	STTUtteranceEndMs int

	// TTS settings
	TTSProvider   string // "deepgram" or "elevenlabs"
	TTSModel      string // Deepgram Speak model
	TTSVoiceID    string // ElevenLabs voice ID
	TTSStability  float64
	TTSSimilarity float64

	// LLM settings
	LLMModel     string
	SystemPrompt string
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		SentryDSN: os.Getenv("SENTRY_DSN"),

		// Voice AI providers
		DeepgramAPIKey:   getenv("DEEPGRAM_API_KEY", ""),
		OpenAIAPIKey:     getenv("OPENAI_API_KEY", ""),
		ElevenLabsAPIKey: getenv("ELEVENLABS_API_KEY", ""),

		// STT settings
		STTLanguage:       getenv("STT_LANGUAGE", "en-US"),
		STTModel:          getenv("STT_MODEL", "nova-3"),
		STTEncoding:       getenv("STT_ENCODING", ""),
		STTSampleRate:     getenvInt("STT_SAMPLE_RATE", 0),
		STTEndpointingMs:  getenvInt("STT_ENDPOINTING_MS", 300),
		STTUtteranceEndMs: getenvInt("STT_UTTERANCE_END_MS", 1000),

		// TTS settings
		TTSProvider:   getenv("TTS_PROVIDER", "deepgram"),
		TTSModel:      getenv("TTS_MODEL", "aura-2-thalia-en"),
		TTSVoiceID:    getenv("TTS_VOICE_ID", ""),
		TTSStability:  getenvFloat("TTS_STABILITY", -1),
		TTSSimilarity: getenvFloat("TTS_SIMILARITY", -1),

		// LLM settings
		LLMModel:     getenv("LLM_MODEL", "gpt-4o-mini"),
		SystemPrompt: getenv("SYSTEM_PROMPT", ""),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
