package tts

import "context"

// Client defines the interface for text-to-speech providers.
type Client interface {
	// Synthesize converts text to speech and returns the audio bytes.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// ContentType is the MIME type of audio produced by Synthesize.
	ContentType() string
}
