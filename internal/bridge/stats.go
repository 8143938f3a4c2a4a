package bridge

import (
	"sort"
	"sync"
	"time"
)

// Operation bucket names.
const (
	OpGet        = "get"
	OpSet        = "set"
	OpExists     = "exists"
	OpTypeOf     = "typeof"
	OpInstanceOf = "instanceof"
	OpTypeFlags  = "typeflags"
	OpEval       = "eval"
	OpDispatch   = "dispatch"
	OpRunGC      = "run_gc"
	OpCall       = "call"
)

// Stat aggregates the runs of one operation.
type Stat struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
}

// Mean returns the average duration, zero when nothing ran.
func (s Stat) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Statistics accumulates operation timings for one context.
type Statistics struct {
	mu      sync.RWMutex
	entries map[string]Stat
}

func newStatistics() *Statistics {
	return &Statistics{entries: make(map[string]Stat)}
}

func (s *Statistics) add(op string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entries[op]
	st.Count++
	st.Total += d
	s.entries[op] = st
}

// Get returns the aggregate for op.
func (s *Statistics) Get(op string) (Stat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.entries[op]
	return st, ok
}

// Len returns the number of operations recorded.
func (s *Statistics) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Operations lists recorded operation names in sorted order.
func (s *Statistics) Operations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := make([]string, 0, len(s.entries))
	for op := range s.entries {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Snapshot copies the current aggregates.
func (s *Statistics) Snapshot() map[string]Stat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Stat, len(s.entries))
	for op, st := range s.entries {
		out[op] = st
	}
	return out
}
