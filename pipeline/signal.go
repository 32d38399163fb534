package pipeline

import (
	"sync"
	"sync/atomic"
)

// StopSignal is a set-once flag shared by the consumer and every producer.
// Once set it is never cleared.
type StopSignal struct {
	set  atomic.Bool
	once sync.Once
	ch   chan struct{}
}

// NewStopSignal returns an unset signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{ch: make(chan struct{})}
}

// Set raises the signal. It returns true only for the call that raised it.
func (s *StopSignal) Set() bool {
	raised := false
	s.once.Do(func() {
		s.set.Store(true)
		close(s.ch)
		raised = true
	})
	return raised
}

// IsSet reports whether the signal has been raised.
func (s *StopSignal) IsSet() bool { return s.set.Load() }

// Done returns a channel closed when the signal is raised.
func (s *StopSignal) Done() <-chan struct{} { return s.ch }
