package convo

import (
	"sync"
	"time"
)

const (
	// ignoreWindow is the grace period after the assistant starts speaking.
	// Recognition results inside the window are almost always the assistant's
	// own audio bleeding into the microphone, so they never count as
	// interruptions.
	ignoreWindow = 2 * time.Second

	// keepaliveIdle is how long the inbound audio stream may sit idle while
	// the assistant speaks before the upstream session needs a keepalive.
	keepaliveIdle = 8 * time.Second

	// fragmentFlushAge bounds how long a held fragment stays in the buffer.
	// When the next transcript arrives after this much time, the combined
	// text is dispatched even without terminal punctuation.
	fragmentFlushAge = 5 * time.Second
)

// Utterance is one finalized transcript waiting to be processed.
type Utterance struct {
	Text       string
	ReceivedAt time.Time
}

// TurnState tracks who currently holds the floor in one conversation. It is
// shared by the inbound loop, the transcript consumer, and the keepalive
// ticker, so all access goes through its mutex.
type TurnState struct {
	mu sync.Mutex

	speaking         bool
	speakingSince    time.Time
	lastInboundAudio time.Time

	pendingFragment string
	pendingSince    time.Time

	// queue is the sole hand-off point between the upstream event callback
	// and the consumer loop. Unbounded so no finalized speech is ever lost.
	queue []Utterance
}

// NewTurnState returns a TurnState in its initial idle state.
func NewTurnState() *TurnState {
	return &TurnState{lastInboundAudio: time.Now()}
}

// StartSpeaking marks the assistant as speaking as of now.
func (s *TurnState) StartSpeaking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = true
	s.speakingSince = time.Now()
}

// ResetSpeaking clears the speaking state and its timestamp.
func (s *TurnState) ResetSpeaking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = false
	s.speakingSince = time.Time{}
}

// IsSpeaking reports whether the assistant currently holds the floor.
func (s *TurnState) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// TouchInboundAudio records that a user audio frame was just forwarded upstream.
func (s *TurnState) TouchInboundAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastInboundAudio = time.Now()
}

// ShouldIgnoreInput reports whether speech recognized at eventTime falls
// inside the grace window after the assistant started speaking.
func (s *TurnState) ShouldIgnoreInput(eventTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.speaking || s.speakingSince.IsZero() {
		return false
	}
	return eventTime.Sub(s.speakingSince) <= ignoreWindow
}

// IsInterrupting reports whether speech recognized at eventTime counts as a
// user interruption: the assistant is speaking and the grace window has
// passed. Mutually exclusive with ShouldIgnoreInput by the shared boundary.
func (s *TurnState) IsInterrupting(eventTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.speaking || s.speakingSince.IsZero() {
		return false
	}
	return eventTime.Sub(s.speakingSince) > ignoreWindow
}

// NeedsKeepalive reports whether the upstream session is at risk of idling
// out: the assistant is speaking, so no real user audio is flowing.
func (s *TurnState) NeedsKeepalive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking && time.Since(s.lastInboundAudio) > keepaliveIdle
}

// HoldFragment buffers an incomplete transcript for concatenation with the
// next one.
func (s *TurnState) HoldFragment(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingFragment = text
	s.pendingSince = time.Now()
}

// PendingFragmentStale reports whether a held fragment has been waiting
// longer than the flush age as of now.
func (s *TurnState) PendingFragmentStale(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingFragment != "" && now.Sub(s.pendingSince) > fragmentFlushAge
}

// ConsumePendingFragment combines a held fragment with newText and clears the
// hold. If nothing is held, newText is returned unchanged.
func (s *TurnState) ConsumePendingFragment(newText string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingFragment == "" {
		return newText
	}
	combined := s.pendingFragment + " " + newText
	s.pendingFragment = ""
	s.pendingSince = time.Time{}
	return combined
}

// Enqueue appends a finalized utterance to the processing queue. Called from
// the upstream event callback; decision logic stays with the consumer.
func (s *TurnState) Enqueue(u Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, u)
}

// TryDequeue pops the oldest queued utterance, if any.
func (s *TurnState) TryDequeue() (Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Utterance{}, false
	}
	u := s.queue[0]
	s.queue = s.queue[1:]
	return u, true
}

// QueueLen returns the number of utterances waiting to be processed.
func (s *TurnState) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Reset returns all fields to their initial state and drains the queue.
func (s *TurnState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = false
	s.speakingSince = time.Time{}
	s.lastInboundAudio = time.Now()
	s.pendingFragment = ""
	s.pendingSince = time.Time{}
	s.queue = nil
}
