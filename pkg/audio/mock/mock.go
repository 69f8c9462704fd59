// Package mock provides a manually clocked [audio.Output] for tests.
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/sketchmentor/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Output = (*Output)(nil)

// Call records one PlayAt invocation.
type Call struct {
	PCM   []byte
	Start time.Duration

	seg *Segment
}

// Segment is the mock segment handle returned by [Output.PlayAt].
type Segment struct {
	mu      sync.Mutex
	stopped bool
	onDone  func()
}

// Stop marks the segment as stopped.
func (s *Segment) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Stopped reports whether Stop was called.
func (s *Segment) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Output is an [audio.Output] with a manually advanced clock. It records
// every scheduled segment; tests drive completion explicitly via [Complete].
type Output struct {
	mu    sync.Mutex
	now   time.Duration
	calls []Call
}

// New creates a mock Output with the clock at zero.
func New() *Output {
	return &Output{}
}

// Now returns the mock clock position.
func (o *Output) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

// Advance moves the mock clock forward by d.
func (o *Output) Advance(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now += d
}

// PlayAt records the scheduled segment and returns its handle.
func (o *Output) PlayAt(pcm []byte, start time.Duration, onDone func()) audio.Segment {
	seg := &Segment{onDone: onDone}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, Call{PCM: pcm, Start: start, seg: seg})
	return seg
}

// Calls returns a copy of all recorded PlayAt invocations.
func (o *Output) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Call, len(o.calls))
	copy(out, o.calls)
	return out
}

// Segment returns the handle of the i-th recorded call.
func (o *Output) Segment(i int) *Segment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[i].seg
}

// Complete simulates natural completion of the i-th scheduled segment by
// invoking its onDone callback (unless the segment was stopped).
func (o *Output) Complete(i int) {
	o.mu.Lock()
	seg := o.calls[i].seg
	o.mu.Unlock()

	seg.mu.Lock()
	stopped := seg.stopped
	done := seg.onDone
	seg.mu.Unlock()

	if !stopped && done != nil {
		done()
	}
}
