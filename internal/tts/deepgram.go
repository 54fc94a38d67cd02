package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const deepgramSpeakURL = "https://api.deepgram.com/v1/speak"

// DeepgramClient implements the Client interface using Deepgram's Speak API.
type DeepgramClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// DeepgramConfig holds configuration for the Deepgram TTS client.
type DeepgramConfig struct {
	APIKey     string
	Model      string       // e.g., "aura-2-thalia-en"
	BaseURL    string       // override for tests, empty for production
	HTTPClient *http.Client // shared pooled client, nil for a default
}

// NewDeepgramClient creates a new Deepgram Speak client.
func NewDeepgramClient(cfg DeepgramConfig) *DeepgramClient {
	model := cfg.Model
	if model == "" {
		model = "aura-2-thalia-en"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = deepgramSpeakURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &DeepgramClient{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// speakRequest represents a Deepgram Speak request body.
type speakRequest struct {
	Text string `json:"text"`
}

// Synthesize converts text to speech and returns MP3 audio bytes.
func (c *DeepgramClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	url := fmt.Sprintf("%s?model=%s", c.baseURL, c.model)

	body, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Deepgram Speak API error: %s - %s", resp.Status, string(respBody))
	}

	return io.ReadAll(resp.Body)
}

// ContentType returns the MIME type of the synthesized audio.
func (c *DeepgramClient) ContentType() string {
	return "audio/mp3"
}
