// Package clock supplies the seconds-resolution time source used for harvest timing.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time in seconds.
type Clock interface {
	Now() int64
}

// System reads wall time and never moves backwards.
type System struct {
	mu   sync.Mutex
	last int64
}

// NewSystem returns a wall-clock source.
func NewSystem() *System {
	return &System{}
}

func (s *System) Now() int64 {
	now := time.Now().Unix()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now < s.last {
		return s.last
	}
	s.last = now
	return now
}

// Manual is a clock advanced explicitly, used by tests and dry runs.
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual starts a manual clock at start seconds.
func NewManual(start int64) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward. Negative values are ignored.
func (m *Manual) Advance(seconds int64) {
	if seconds <= 0 {
		return
	}
	m.mu.Lock()
	m.now += seconds
	m.mu.Unlock()
}
