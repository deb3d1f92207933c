package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/opsbotio/jabberops/internal/script"
)

// Registry maps a conversation's bare JID to its live scripting session.
//
// The registry-level lock guards only the map itself and is never held
// across anything that can block. Evaluation, warning delivery, and sink
// teardown all happen under the per-session lock instead, so unrelated
// conversations never wait on each other while a script runs.
//
// Lock order is always session lock first, registry lock second; the
// registry lock is the innermost and is released before any session work.
type Registry struct {
	factory script.Factory

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry that builds interpreters through
// factory.
func NewRegistry(factory script.Factory) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

// AccessOrCreate returns the live session for conversation with its idle
// clock refreshed, creating one if none exists. A session that loses its
// registration between lookup and lock acquisition was concurrently evicted;
// the lookup restarts so the caller never gets a session mid-teardown.
func (r *Registry) AccessOrCreate(conversation string) (*Session, error) {
	for {
		r.mu.RLock()
		sess := r.sessions[conversation]
		r.mu.RUnlock()

		if sess == nil {
			created, registered, err := r.create(conversation)
			if err != nil {
				return nil, err
			}
			if registered {
				return created, nil
			}
			// Lost the insert race; loop to pick up the winner.
			continue
		}

		sess.mu.Lock()
		r.mu.RLock()
		live := r.sessions[conversation] == sess
		r.mu.RUnlock()
		if !live {
			// Evicted between lookup and lock; start over.
			sess.mu.Unlock()
			continue
		}
		sess.touch(time.Now())
		sess.mu.Unlock()
		return sess, nil
	}
}

// create builds a session and tries to register it. registered is false when
// a concurrent caller won the insert race, in which case the fresh session
// is discarded.
func (r *Registry) create(conversation string) (created *Session, registered bool, err error) {
	sink := NewSink()
	engine, err := r.factory.New(sink)
	if err != nil {
		_ = sink.Close()
		return nil, false, fmt.Errorf("failed to create interpreter for %s: %w", conversation, err)
	}
	sess := newSession(engine, sink, time.Now())

	r.mu.Lock()
	if _, exists := r.sessions[conversation]; exists {
		r.mu.Unlock()
		_ = sink.Close()
		return nil, false, nil
	}
	r.sessions[conversation] = sess
	r.mu.Unlock()

	return sess, true, nil
}

// ForEach visits a snapshot of the registered sessions taken at call time.
// Insertions and removals during the visit affect neither the snapshot nor
// the map's consistency.
func (r *Registry) ForEach(visit func(conversation string, sess *Session)) {
	type entry struct {
		conversation string
		sess         *Session
	}

	r.mu.RLock()
	snapshot := make([]entry, 0, len(r.sessions))
	for conversation, sess := range r.sessions {
		snapshot = append(snapshot, entry{conversation, sess})
	}
	r.mu.RUnlock()

	for _, e := range snapshot {
		visit(e.conversation, e.sess)
	}
}

// Evict removes conversation's session and closes its sink, unless the
// session saw fresh activity after cutoff. The deadline re-check under the
// session lock is the second phase of the sweeper's scan/evict protocol: a
// message that slipped in between scan and eviction keeps the session alive.
func (r *Registry) Evict(conversation string, cutoff time.Time) bool {
	r.mu.RLock()
	sess := r.sessions[conversation]
	r.mu.RUnlock()
	if sess == nil {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.lastAccess.After(cutoff) {
		return false
	}

	r.mu.Lock()
	if r.sessions[conversation] != sess {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, conversation)
	r.mu.Unlock()

	_ = sess.sink.Close()
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
