package scheduler

import "sync"

// runState tracks whether a definition is already in-flight. A tick that
// finds the guard held skips the definition; the guard is released on every
// exit path of a run, so the worst case is one missed window.
type runState struct {
	mu       sync.Mutex
	inflight bool
}

func (s *runState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *runState) release() {
	s.mu.Lock()
	s.inflight = false
	s.mu.Unlock()
}

// guardSet is the per-definition in-flight registry shared by overlapping
// ticks.
type guardSet struct {
	mu     sync.Mutex
	states map[int64]*runState
}

func newGuardSet() *guardSet {
	return &guardSet{states: map[int64]*runState{}}
}

func (g *guardSet) acquire(id int64) bool {
	g.mu.Lock()
	st, ok := g.states[id]
	if !ok {
		st = &runState{}
		g.states[id] = st
	}
	g.mu.Unlock()
	return st.tryAcquire()
}

func (g *guardSet) release(id int64) {
	g.mu.Lock()
	st := g.states[id]
	g.mu.Unlock()
	if st != nil {
		st.release()
	}
}

// forget drops the guard entry for a deleted definition.
func (g *guardSet) forget(id int64) {
	g.mu.Lock()
	delete(g.states, id)
	g.mu.Unlock()
}
