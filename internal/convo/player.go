package convo

import (
	"context"
	"encoding/base64"
	"log"
	"time"
)

// Emitter sends a JSON message to the client.
type Emitter interface {
	Emit(v any) error
}

// Synthesizer renders one sentence of text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	// ContentType is the MIME type of audio produced by Synthesize.
	ContentType() string
}

// interSentencePause is a short yield between sentence messages so a burst of
// audio does not flood the client transport.
const interSentencePause = 100 * time.Millisecond

// audioMessage carries one sentence's synthesized audio to the client.
type audioMessage struct {
	Audio       string `json:"audio"` // base64
	ContentType string `json:"content_type"`
	Sentence    string `json:"sentence"`
}

// ResponsePlayer streams a generated response to the client one sentence at a
// time, watching TurnState for interruption between every step.
type ResponsePlayer struct {
	state  *TurnState
	synth  Synthesizer
	emit   Emitter
	logger *log.Logger
}

// NewResponsePlayer creates a player bound to one conversation's state and sink.
func NewResponsePlayer(state *TurnState, synth Synthesizer, emit Emitter, logger *log.Logger) *ResponsePlayer {
	return &ResponsePlayer{state: state, synth: synth, emit: emit, logger: logger}
}

// Play synthesizes and streams text sentence by sentence. The full transcript
// goes out first so the client can render it while audio arrives. If the
// speaking state is cleared partway through (interruption or stop command),
// no further sentence is synthesized or streamed, and whoever cleared the
// state owns it: Play only bails out.
func (p *ResponsePlayer) Play(ctx context.Context, text string) {
	if err := p.emit.Emit(map[string]any{"transcript": text}); err != nil {
		p.logger.Printf("convo: failed to send transcript: %v", err)
		return
	}

	sentences := SplitSentences(text)
	for i, sentence := range sentences {
		if !p.state.IsSpeaking() {
			p.logger.Printf("convo: response interrupted, stopping at sentence %d/%d", i+1, len(sentences))
			return
		}

		audio, err := p.synth.Synthesize(ctx, sentence)
		if err != nil {
			p.logger.Printf("convo: synthesis failed for sentence %d/%d: %v", i+1, len(sentences), err)
			continue
		}

		// Synthesis takes real wall time; an interruption may have landed
		// while we waited. Discard the audio rather than speak over the user.
		if !p.state.IsSpeaking() {
			p.logger.Printf("convo: response interrupted during synthesis of sentence %d/%d", i+1, len(sentences))
			return
		}

		if len(audio) == 0 {
			continue
		}

		msg := audioMessage{
			Audio:       base64.StdEncoding.EncodeToString(audio),
			ContentType: p.synth.ContentType(),
			Sentence:    sentence,
		}
		if err := p.emit.Emit(msg); err != nil {
			p.logger.Printf("convo: failed to send audio: %v", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interSentencePause):
		}
	}

	// Only an uninterrupted run clears its own speaking state.
	if p.state.IsSpeaking() {
		p.state.ResetSpeaking()
		if err := p.emit.Emit(map[string]any{"ai_finished_speaking": true}); err != nil {
			p.logger.Printf("convo: failed to send finished signal: %v", err)
		}
	}
}
