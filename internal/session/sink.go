// Package session implements the per-conversation scripting session
// lifecycle: the output capture sink, the execution session, the concurrent
// registry keyed by conversation, and the idle sweeper that warns and evicts
// stale sessions.
package session

import (
	"bytes"
	"errors"
	"sync"
)

// ErrSinkClosed indicates a write to a sink whose session was evicted.
var ErrSinkClosed = errors.New("output sink closed")

// Sink captures a session's script output. Replies are built from the suffix
// written since a recorded offset, so each reply carries only the output of
// the command that produced it.
type Sink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Write implements io.Writer, appending p to the captured output.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSinkClosed
	}
	return s.buf.Write(p)
}

// Len returns the number of bytes written so far.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.Len()
}

// SuffixFrom returns everything written at or after offset. An offset at or
// past the end yields the empty string.
func (s *Sink) SuffixFrom(offset int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= s.buf.Len() {
		return ""
	}
	return string(s.buf.Bytes()[offset:])
}

// Close releases the sink. Idempotent; a writer still holding a reference
// gets ErrSinkClosed instead of appending to a dead session's buffer.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
