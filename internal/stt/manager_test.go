package stt

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

var discard = log.New(io.Discard, "", 0)

// fakeSession is a scriptable LiveSession.
type fakeSession struct {
	mu        sync.Mutex
	connected bool
	finished  bool
	sendErr   error
	sent      [][]byte
}

func (f *fakeSession) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeSession) Finish() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
	f.connected = false
	return nil
}

func (f *fakeSession) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSession) isFinished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

func (f *fakeSession) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeProvider hands out fakeSessions and remembers every one it created.
type fakeProvider struct {
	mu       sync.Mutex
	dialErr  error
	sessions []*fakeSession
	sinks    []EventSink
}

func (p *fakeProvider) dial(sink EventSink) (LiveSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dialErr != nil {
		return nil, p.dialErr
	}
	s := &fakeSession{connected: true}
	p.sessions = append(p.sessions, s)
	p.sinks = append(p.sinks, sink)
	return s, nil
}

func (p *fakeProvider) sessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *fakeProvider) session(i int) *fakeSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[i]
}

func nopSink(TranscriptEvent) {}

func TestSessionManager_OpenReplacesExistingSession(t *testing.T) {
	provider := &fakeProvider{}
	m := NewSessionManager(provider.dial, discard)

	if err := m.Open(nopSink); err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	if !m.IsHealthy() {
		t.Fatal("IsHealthy() = false after successful Open()")
	}

	// A second Open on a healthy manager still replaces the session.
	if err := m.Open(nopSink); err != nil {
		t.Fatalf("second Open() error: %v", err)
	}

	if provider.sessionCount() != 2 {
		t.Fatalf("sessions created = %d, want 2", provider.sessionCount())
	}
	if !provider.session(0).isFinished() {
		t.Error("first session was not closed before opening the second")
	}
	if provider.session(1).isFinished() {
		t.Error("second session should be the live one")
	}
	if !m.IsHealthy() {
		t.Error("IsHealthy() = false after replacement")
	}
}

func TestSessionManager_OpenFailure(t *testing.T) {
	provider := &fakeProvider{dialErr: errors.New("connect refused")}
	m := NewSessionManager(provider.dial, discard)

	if err := m.Open(nopSink); err == nil {
		t.Fatal("Open() should propagate a dial failure")
	}
	if m.IsHealthy() {
		t.Error("IsHealthy() = true after failed Open()")
	}
	if m.SendAudio([]byte{0x01}) {
		t.Error("SendAudio() should fail with no session")
	}
}

func TestSessionManager_CloseIsIdempotent(t *testing.T) {
	provider := &fakeProvider{}
	m := NewSessionManager(provider.dial, discard)

	if m.Close() {
		t.Error("Close() with no session should return false")
	}

	if err := m.Open(nopSink); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if !m.Close() {
		t.Error("Close() with a live session should return true")
	}
	if !provider.session(0).isFinished() {
		t.Error("session was not finished")
	}
	if m.IsHealthy() {
		t.Error("IsHealthy() = true after Close()")
	}

	// Second close is a no-op, not an error.
	if m.Close() {
		t.Error("second Close() should return false")
	}
}

func TestSessionManager_SendFailureMarksUnhealthy(t *testing.T) {
	provider := &fakeProvider{}
	m := NewSessionManager(provider.dial, discard)

	if err := m.Open(nopSink); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if !m.SendAudio([]byte{0x01}) {
		t.Fatal("SendAudio() = false on a healthy session")
	}
	if provider.session(0).sentCount() != 1 {
		t.Errorf("frames forwarded = %d, want 1", provider.session(0).sentCount())
	}

	provider.session(0).sendErr = errors.New("broken pipe")
	if m.SendAudio([]byte{0x02}) {
		t.Error("SendAudio() = true on a failing session")
	}
	if m.IsHealthy() {
		t.Error("failed send must mark the manager unhealthy")
	}

	// Caller decides to reopen; the manager recovers.
	if err := m.Open(nopSink); err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if !m.SendAudio([]byte{0x03}) {
		t.Error("SendAudio() = false after reopen")
	}
}

func TestSessionManager_SinkReceivesEvents(t *testing.T) {
	provider := &fakeProvider{}
	m := NewSessionManager(provider.dial, discard)

	var got []TranscriptEvent
	sink := func(ev TranscriptEvent) { got = append(got, ev) }

	if err := m.Open(sink); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	// The provider delivers through whatever sink Open wired up.
	provider.sinks[0](TranscriptEvent{Text: "hello", IsFinal: true, ReceivedAt: time.Now()})

	if len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("sink received %#v, want the delivered event", got)
	}
}
