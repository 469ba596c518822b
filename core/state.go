package core

import (
	"sync"

	"github.com/openlearn/sessionkit/metrics"
)

// Phase identifies where session resolution currently stands.
type Phase string

const (
	PhaseLoading         Phase = "loading"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseFailed          Phase = "failed"
)

// State is the observable session state. Profile is set iff Phase is
// PhaseAuthenticated; Message is set iff Phase is PhaseFailed.
type State struct {
	Phase   Phase
	Profile *Profile
	Message string
}

func Loading() State         { return State{Phase: PhaseLoading} }
func Unauthenticated() State { return State{Phase: PhaseUnauthenticated} }
func Failed(msg string) State {
	return State{Phase: PhaseFailed, Message: msg}
}
func Authenticated(p Profile) State {
	return State{Phase: PhaseAuthenticated, Profile: &p}
}

// Store holds the current session state and fans publishes out to
// subscribers. It is a passive container: only the session flows
// (listener, redirect resolver, OAuth bridge) write to it; everything else
// is a read-only subscriber.
//
// The state starts at Loading and leaves Loading exactly once; later
// publishes can never reintroduce Loading.
type Store struct {
	mu       sync.Mutex
	cur      State
	subs     map[int]func(State)
	nextSub  int
	resolved bool
}

func NewStore() *Store {
	return &Store{cur: Loading(), subs: make(map[int]func(State))}
}

// Snapshot returns the current session state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Resolved reports whether any flow has produced a non-Loading state yet.
func (s *Store) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Subscribe registers fn for synchronous notification on every accepted
// publish and returns a cancel func releasing the subscription.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// publish installs st as the current state and notifies subscribers.
// A Loading publish after the store has resolved is dropped.
func (s *Store) publish(st State) {
	s.mu.Lock()
	if st.Phase == PhaseLoading && s.resolved {
		s.mu.Unlock()
		return
	}
	s.cur = st
	if st.Phase != PhaseLoading {
		s.resolved = true
	}
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	metrics.PhaseTransitions.WithLabelValues(string(st.Phase)).Inc()
	for _, fn := range subs {
		fn(st)
	}
}
