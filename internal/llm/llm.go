package llm

import "context"

// Client defines the interface for response generators.
type Client interface {
	// Generate produces a conversational reply to a completed user utterance.
	// Implementations carry the running conversation history themselves.
	Generate(ctx context.Context, utterance string) (string, error)
}
