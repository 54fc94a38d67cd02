package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const elevenLabsAPIURL = "https://api.elevenlabs.io/v1/text-to-speech"

// ElevenLabsClient implements the Client interface using ElevenLabs' API.
type ElevenLabsClient struct {
	apiKey     string
	voiceID    string
	modelID    string
	stability  float64
	similarity float64
	baseURL    string
	httpClient *http.Client
}

// ElevenLabsConfig holds configuration for the ElevenLabs client.
type ElevenLabsConfig struct {
	APIKey     string
	VoiceID    string       // ElevenLabs voice ID
	ModelID    string       // e.g., "eleven_flash_v2_5" for low latency
	Stability  float64      // 0.0-1.0, -1 for default
	Similarity float64      // 0.0-1.0, -1 for default
	BaseURL    string       // override for tests, empty for production
	HTTPClient *http.Client // shared pooled client, nil for a default
}

// NewElevenLabsClient creates a new ElevenLabs client.
func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = "eleven_flash_v2_5" // Low latency model
	}
	voiceID := cfg.VoiceID
	if voiceID == "" {
		voiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel - default voice
	}
	stability := cfg.Stability
	if stability < 0 {
		stability = 0.5
	}
	similarity := cfg.Similarity
	if similarity < 0 {
		similarity = 0.75
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ElevenLabsClient{
		apiKey:     cfg.APIKey,
		voiceID:    voiceID,
		modelID:    modelID,
		stability:  stability,
		similarity: similarity,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// ttsRequest represents an ElevenLabs TTS request.
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to speech and returns MP3 audio bytes.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s?output_format=mp3_44100_128", c.baseURL, c.voiceID)

	req := ttsRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.similarity,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ElevenLabs API error: %s - %s", resp.Status, string(respBody))
	}

	return io.ReadAll(resp.Body)
}

// ContentType returns the MIME type of the synthesized audio.
func (c *ElevenLabsClient) ContentType() string {
	return "audio/mpeg"
}
