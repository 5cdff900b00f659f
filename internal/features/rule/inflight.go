package rule

import (
	"errors"
	"sync"
)

// ErrRuleInFlight is returned when a run is requested for a rule whose
// previous run has not finished. Manual and scheduled runs share the guard.
var ErrRuleInFlight = errors.New("rule execution already in progress")

// InFlightSet tracks which rules are currently executing
type InFlightSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewInFlightSet() *InFlightSet {
	return &InFlightSet{ids: make(map[string]struct{})}
}

// TryAcquire marks the rule as in flight. It returns false if the rule
// already was, in which case the caller must not run it.
func (s *InFlightSet) TryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *InFlightSet) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *InFlightSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}
