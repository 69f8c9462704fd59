// Package mock provides a scripted [capture.Source] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sketchmentor/internal/capture"
)

// Compile-time interface assertion.
var _ capture.Source = (*Source)(nil)

// Source is a capture source driven manually from test code.
type Source struct {
	mu       sync.Mutex
	out      chan []float32
	startErr error
	started  bool
	closed   bool
}

// New creates an idle mock source.
func New() *Source {
	return &Source{out: make(chan []float32, 16)}
}

// FailStart makes the next Start call return err.
func (s *Source) FailStart(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErr = err
}

// Start returns the scripted sample channel.
func (s *Source) Start(context.Context) (<-chan []float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.started = true
	return s.out, nil
}

// Emit pushes one sample slice to the consumer.
func (s *Source) Emit(samples []float32) {
	s.out <- samples
}

// End closes the sample channel, signalling end of stream.
func (s *Source) End() {
	close(s.out)
}

// Close records the close call.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
