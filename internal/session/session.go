package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsbotio/jabberops/internal/script"
)

// EvalErrorPreamble prefixes every reply produced by a failed evaluation, so
// the remote user sees the error instead of silence.
const EvalErrorPreamble = "script error:\n"

// Session bundles one interpreter with its output sink and idle clock.
//
// All mutable state is guarded by mu. The same lock serializes evaluations
// for the conversation and orders them against the sweeper's eviction
// decision: an eviction can never tear the session down mid-evaluation, and
// an evaluation can never start on a session being torn down.
type Session struct {
	id     string
	engine script.Engine
	sink   *Sink

	mu         sync.Mutex
	lastAccess time.Time
	warned     bool
}

func newSession(engine script.Engine, sink *Sink, now time.Time) *Session {
	return &Session{
		id:         uuid.NewString(),
		engine:     engine,
		sink:       sink,
		lastAccess: now,
	}
}

// ID returns the session's log-correlation identifier.
func (s *Session) ID() string {
	return s.id
}

// Evaluate runs src on the session's interpreter and returns the output it
// produced, including the rendered result value if the script yielded one.
// Failures inside the script become a diagnostic reply and leave the session
// usable. Concurrent calls for the same session serialize on the session
// lock, so the output offset each call records stays meaningful.
func (s *Session) Evaluate(src string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	startOffset := s.sink.Len()

	result, err := s.engine.Evaluate(src)
	if err != nil {
		return EvalErrorPreamble + err.Error()
	}
	if result != nil {
		if err := script.Render(s.sink, result); err != nil {
			return EvalErrorPreamble + err.Error()
		}
	}

	// Refresh again on completion: a long-running script should not leave
	// its session due for eviction the moment it finishes.
	s.lastAccess = time.Now()
	s.warned = false

	return s.sink.SuffixFrom(startOffset)
}

// touch refreshes the idle clock and re-arms the expiry warning.
// Caller must hold s.mu.
func (s *Session) touch(now time.Time) {
	s.lastAccess = now
	s.warned = false
}

// idleSnapshot returns the last access time and whether an expiry warning
// was already issued, read consistently under the session lock.
func (s *Session) idleSnapshot() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastAccess, s.warned
}

// markWarned arms the one-time expiry warning. It reports whether the caller
// should deliver it: false when a warning was already sent for this idle
// period, when activity refreshed the session after the scan, or when the
// session is already past the eviction cutoff and warning would be pointless.
func (s *Session) markWarned(warnCutoff, evictCutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.warned {
		return false
	}
	if s.lastAccess.After(warnCutoff) {
		return false
	}
	if !s.lastAccess.After(evictCutoff) {
		return false
	}
	s.warned = true
	return true
}
