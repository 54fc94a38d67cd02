package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		client := NewOpenAIClient(OpenAIConfig{
			APIKey: "test-key",
		})

		if client.model != "gpt-4o-mini" {
			t.Errorf("model = %q, want %q", client.model, "gpt-4o-mini")
		}

		if client.systemPrompt != SystemPromptVoice {
			t.Error("systemPrompt should default to SystemPromptVoice")
		}

		if client.apiKey != "test-key" {
			t.Errorf("apiKey = %q, want %q", client.apiKey, "test-key")
		}
	})

	t.Run("custom model", func(t *testing.T) {
		client := NewOpenAIClient(OpenAIConfig{
			APIKey: "test-key",
			Model:  "gpt-4o",
		})

		if client.model != "gpt-4o" {
			t.Errorf("model = %q, want %q", client.model, "gpt-4o")
		}
	})

	t.Run("custom system prompt", func(t *testing.T) {
		customPrompt := "Custom system prompt for testing"
		client := NewOpenAIClient(OpenAIConfig{
			APIKey:       "test-key",
			SystemPrompt: customPrompt,
		})

		if client.systemPrompt != customPrompt {
			t.Errorf("systemPrompt = %q, want %q", client.systemPrompt, customPrompt)
		}
	})
}

func TestSetSystemPrompt(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key"})

	newPrompt := "New custom prompt"
	client.SetSystemPrompt(newPrompt)
	if client.systemPrompt != newPrompt {
		t.Errorf("systemPrompt = %q, want %q", client.systemPrompt, newPrompt)
	}

	// Empty prompt does not clobber the current one.
	client.SetSystemPrompt("")
	if client.systemPrompt != newPrompt {
		t.Error("empty prompt should not change current prompt")
	}
}

func TestGenerate_KeepsConversationHistory(t *testing.T) {
	var requests []chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer test-key")
		}
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		requests = append(requests, req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Sure."}},
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})

	reply, err := client.Generate(context.Background(), "Hello.")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if reply != "Sure." {
		t.Errorf("reply = %q, want %q", reply, "Sure.")
	}
	if client.HistoryLen() != 2 {
		t.Errorf("HistoryLen() = %d, want 2 (user + assistant)", client.HistoryLen())
	}

	if _, err := client.Generate(context.Background(), "And then?"); err != nil {
		t.Fatalf("second Generate() error: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(requests))
	}

	// Second request carries system prompt plus the full history.
	second := requests[1].Messages
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(second) != len(wantRoles) {
		t.Fatalf("second request messages = %d, want %d", len(second), len(wantRoles))
	}
	for i, role := range wantRoles {
		if second[i].Role != role {
			t.Errorf("messages[%d].Role = %q, want %q", i, second[i].Role, role)
		}
	}
	if second[3].Content != "And then?" {
		t.Errorf("latest utterance = %q, want %q", second[3].Content, "And then?")
	}
}

func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})

	if _, err := client.Generate(context.Background(), "Hello."); err == nil {
		t.Fatal("Generate() should return an error on non-200 response")
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})

	if _, err := client.Generate(context.Background(), "Hello."); err == nil {
		t.Fatal("Generate() should return an error when no choices come back")
	}
}
