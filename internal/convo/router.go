package convo

import (
	"context"
	"log"
	"time"
)

// Responder generates a conversational reply to a completed user utterance.
type Responder interface {
	Generate(ctx context.Context, utterance string) (string, error)
}

// pollInterval bounds the latency between a transcript arriving on the queue
// and the consumer picking it up.
const pollInterval = 100 * time.Millisecond

// TranscriptRouter is the single consumer of the pending-utterance queue. It
// applies the interruption policy, reassembles fragments into sentences, and
// drives the responder and player for completed user input. All turn-taking
// decisions happen here, never in the upstream event callback.
type TranscriptRouter struct {
	state     *TurnState
	responder Responder
	player    *ResponsePlayer
	emit      Emitter
	logger    *log.Logger
}

// NewTranscriptRouter wires a router to one conversation's collaborators.
func NewTranscriptRouter(state *TurnState, responder Responder, player *ResponsePlayer, emit Emitter, logger *log.Logger) *TranscriptRouter {
	return &TranscriptRouter{
		state:     state,
		responder: responder,
		player:    player,
		emit:      emit,
		logger:    logger,
	}
}

// Run drains the utterance queue until ctx is cancelled.
func (r *TranscriptRouter) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				u, ok := r.state.TryDequeue()
				if !ok {
					break
				}
				r.process(ctx, u)
			}
		}
	}
}

func (r *TranscriptRouter) process(ctx context.Context, u Utterance) {
	if r.state.ShouldIgnoreInput(u.ReceivedAt) {
		r.logger.Printf("convo: ignoring input inside grace window: %s", u.Text)
		return
	}

	if r.state.IsInterrupting(u.ReceivedAt) {
		// The interrupting speech only stops the assistant; it is not
		// treated as new input.
		r.logger.Printf("convo: user interruption detected: %s", u.Text)
		r.state.ResetSpeaking()
		if err := r.emit.Emit(map[string]any{"interrupt": true}); err != nil {
			r.logger.Printf("convo: failed to send interrupt signal: %v", err)
		}
		return
	}

	stale := r.state.PendingFragmentStale(u.ReceivedAt)
	text := r.state.ConsumePendingFragment(u.Text)

	if !IsCompleteSentence(text) && !stale {
		r.logger.Printf("convo: incomplete sentence, holding: %s", text)
		r.state.HoldFragment(text)
		return
	}

	r.logger.Printf("convo: user said: %s", text)
	r.state.StartSpeaking()

	reply, err := r.responder.Generate(ctx, text)
	if err != nil {
		r.logger.Printf("convo: response generation failed: %v", err)
		r.state.ResetSpeaking()
		if emitErr := r.emit.Emit(map[string]any{"error": "Failed to generate AI response"}); emitErr != nil {
			r.logger.Printf("convo: failed to send error message: %v", emitErr)
		}
		return
	}

	r.logger.Printf("convo: assistant reply: %s", reply)
	r.player.Play(ctx, reply)
}
