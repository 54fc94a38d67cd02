package stt

import "time"

// TranscriptEvent is a single recognition result from the upstream provider.
type TranscriptEvent struct {
	Text       string    // The transcribed text
	IsFinal    bool      // Whether this is a final or interim result
	ReceivedAt time.Time // When the result arrived from the provider
}

// EventSink receives transcript events from a live session. The session's
// read loop invokes it inline, so implementations must only hand the event
// off (typically by enqueueing it) and return quickly.
type EventSink func(TranscriptEvent)

// LiveSession is a handle to one streaming transcription connection.
type LiveSession interface {
	// Send forwards one audio frame to the provider.
	Send(frame []byte) error

	// Finish closes the session. Safe to call more than once.
	Finish() error

	// IsConnected reports whether the provider connection is still live.
	IsConnected() bool
}

// Dialer opens a new live session wired to sink. SessionManager takes a Dialer
// so tests can substitute a fake provider.
type Dialer func(sink EventSink) (LiveSession, error)
