package httpapi

import (
	"sync"
	"sync/atomic"
)

// ConversationRegistry tracks active voice conversations and supports
// graceful draining. When draining is enabled, new conversations are rejected
// while in-flight ones finish naturally.
//
// The mu mutex makes the draining check and wg.Add atomic in Add(), preventing
// a TOCTOU race where StartDraining+Wait could be called between the draining
// check and wg.Add.
type ConversationRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewConversationRegistry creates a new ConversationRegistry.
func NewConversationRegistry() *ConversationRegistry {
	return &ConversationRegistry{}
}

// Add registers a new active conversation. Returns false if the registry is
// draining, meaning no new conversations should be accepted. The draining
// check and WaitGroup increment are performed atomically under a mutex.
func (cr *ConversationRegistry) Add() bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if cr.draining {
		return false
	}
	cr.wg.Add(1)
	cr.count.Add(1)
	return true
}

// Done marks a conversation as finished. Must be called exactly once per
// successful Add.
func (cr *ConversationRegistry) Done() {
	cr.count.Add(-1)
	cr.wg.Done()
}

// StartDraining sets the draining flag so that future Add calls return false.
// Safe to call concurrently with Add; the mutex ensures no Add can slip
// through after StartDraining returns.
func (cr *ConversationRegistry) StartDraining() {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (cr *ConversationRegistry) IsDraining() bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.draining
}

// ActiveCount returns the number of currently active conversations.
func (cr *ConversationRegistry) ActiveCount() int64 {
	return cr.count.Load()
}

// Wait blocks until all active conversations have finished (all Done calls
// matched Add calls).
func (cr *ConversationRegistry) Wait() {
	cr.wg.Wait()
}
