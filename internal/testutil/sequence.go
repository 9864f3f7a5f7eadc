// Package testutil holds deterministic stand-ins used by scenario runs and
// tests.
package testutil

import "sync"

// Sequence numbers trace events of one scenario run. The zero value is
// ready to use and the first call to Next returns 1.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sequence struct {
	mu sync.Mutex
	n  int
}

// Next increments and returns the next sequence number.
func (s *Sequence) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

// Current returns the last number handed out without incrementing.
func (s *Sequence) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset starts the sequence over. After Reset, Next returns 1.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
