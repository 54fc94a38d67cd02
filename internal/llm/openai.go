package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient implements the Client interface using OpenAI's API. One client
// serves one conversation: it keeps the running message history so follow-up
// utterances have context. History lives in memory only and dies with the
// conversation.
type OpenAIClient struct {
	apiKey       string
	model        string
	systemPrompt string
	baseURL      string
	httpClient   *http.Client

	mu       sync.Mutex
	messages []chatMessage
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey       string
	Model        string       // e.g., "gpt-4o-mini"
	SystemPrompt string       // Optional custom system prompt
	BaseURL      string       // override for tests, empty for production
	HTTPClient   *http.Client // shared pooled client, nil for a default
}

// NewOpenAIClient creates a new OpenAI client for one conversation.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPromptVoice
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openaiAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIClient{
		apiKey:       cfg.APIKey,
		model:        model,
		systemPrompt: systemPrompt,
		baseURL:      baseURL,
		httpClient:   httpClient,
	}
}

// SetSystemPrompt sets a custom system prompt for this client.
func (c *OpenAIClient) SetSystemPrompt(prompt string) {
	if prompt != "" {
		c.systemPrompt = prompt
	}
}

// chatRequest represents an OpenAI chat completion request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents an OpenAI chat completion response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate produces a reply to utterance and records both sides in the
// conversation history.
func (c *OpenAIClient) Generate(ctx context.Context, utterance string) (string, error) {
	c.mu.Lock()
	c.messages = append(c.messages, chatMessage{Role: "user", Content: utterance})
	chatMsgs := make([]chatMessage, 0, len(c.messages)+1)
	chatMsgs = append(chatMsgs, chatMessage{Role: "system", Content: c.systemPrompt})
	chatMsgs = append(chatMsgs, c.messages...)
	c.mu.Unlock()

	req := chatRequest{
		Model:       c.model,
		Messages:    chatMsgs,
		Temperature: 0.7,
		MaxTokens:   300,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenAI API error: %s - %s", resp.Status, string(respBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	content := chatResp.Choices[0].Message.Content

	c.mu.Lock()
	c.messages = append(c.messages, chatMessage{Role: "assistant", Content: content})
	c.mu.Unlock()

	return content, nil
}

// HistoryLen returns the number of messages recorded so far.
func (c *OpenAIClient) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
