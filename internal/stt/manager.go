package stt

import (
	"fmt"
	"log"
	"sync"
)

// SessionManager owns the lifecycle of at most one live transcription session
// per conversation. Opening a new session always tears down the previous one,
// so two provider connections can never be live at the same time.
//
// The manager is touched by both the inbound message loop and the keepalive
// ticker, so every method takes the mutex.
type SessionManager struct {
	dial   Dialer
	logger *log.Logger

	mu      sync.Mutex
	session LiveSession
	healthy bool
}

// NewSessionManager creates a manager that opens sessions through dial.
func NewSessionManager(dial Dialer, logger *log.Logger) *SessionManager {
	return &SessionManager{dial: dial, logger: logger}
}

// Open replaces any existing session with a fresh one wired to sink. It is
// deliberate that calling Open on a healthy manager still replaces the
// session: a start_listening command always gets a fresh connection.
func (m *SessionManager) Open(sink EventSink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked()

	session, err := m.dial(sink)
	if err != nil {
		m.logger.Printf("stt: failed to open session: %v", err)
		return fmt.Errorf("open transcription session: %w", err)
	}

	m.session = session
	m.healthy = true
	m.logger.Printf("stt: opened new transcription session")
	return nil
}

// Close tears down the active session if there is one and reports whether a
// session was actually closed. Provider close errors are logged and swallowed;
// the local handle is always cleared.
func (m *SessionManager) Close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *SessionManager) closeLocked() bool {
	if m.session == nil {
		return false
	}
	if err := m.session.Finish(); err != nil {
		m.logger.Printf("stt: error closing session: %v", err)
	} else {
		m.logger.Printf("stt: closed transcription session")
	}
	m.session = nil
	m.healthy = false
	return true
}

// IsHealthy reports whether a session exists and the provider considers it live.
func (m *SessionManager) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.healthy && m.session.IsConnected()
}

// SendAudio forwards one frame to the active session. It returns false if no
// healthy session exists or the send fails; a failed send marks the session
// unhealthy so the caller can decide to reopen.
func (m *SessionManager) SendAudio(frame []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || !m.healthy || !m.session.IsConnected() {
		return false
	}

	if err := m.session.Send(frame); err != nil {
		m.logger.Printf("stt: error sending audio: %v", err)
		m.healthy = false
		return false
	}
	return true
}
