// Package audio provides the output-side audio primitives for sketchmentor:
// the [Output] device abstraction (a monotonic playback clock plus scheduled
// segment playback) and the [Scheduler] that chains model audio chunks
// back-to-back on that clock.
package audio

import (
	"sync"
	"time"

	"github.com/MrWong99/sketchmentor/pkg/pcm"
)

// Segment is a handle to one scheduled playback segment. Stop cancels the
// segment; stopping a segment that already finished is a no-op.
type Segment interface {
	Stop()
}

// Output is the playback device abstraction. It owns a monotonic clock that
// advances while the output stream runs, and it plays PCM buffers at
// requested positions on that clock.
//
// Implementations must be safe for concurrent use.
type Output interface {
	// Now returns the current position of the output clock.
	Now() time.Duration

	// PlayAt schedules pcm to begin playing at the given clock position and
	// returns a handle for cancellation. onDone is invoked exactly once when
	// the segment finishes naturally; it is not invoked after Stop.
	PlayAt(pcm []byte, start time.Duration, onDone func()) Segment
}

// TimerOutput is a wall-clock [Output] backed by [time.AfterFunc]. Scheduled
// chunks are delivered to a sink callback at their start position; the sink
// typically writes raw PCM to an audio device or pipe.
type TimerOutput struct {
	sink       func([]byte)
	sampleRate int
	channels   int
	epoch      time.Time
}

var _ Output = (*TimerOutput)(nil)

// NewTimerOutput creates a TimerOutput delivering chunks to sink. The sample
// rate and channel count are used to derive each segment's duration. sink is
// called from timer goroutines and must not block for extended periods.
func NewTimerOutput(sink func([]byte), sampleRate, channels int) *TimerOutput {
	return &TimerOutput{
		sink:       sink,
		sampleRate: sampleRate,
		channels:   channels,
		epoch:      time.Now(),
	}
}

// Now returns the time elapsed since the output was created.
func (o *TimerOutput) Now() time.Duration {
	return time.Since(o.epoch)
}

// PlayAt schedules data for delivery to the sink at the start position and
// arranges for onDone to fire when the segment's duration has elapsed.
func (o *TimerOutput) PlayAt(data []byte, start time.Duration, onDone func()) Segment {
	delay := start - o.Now()
	if delay < 0 {
		delay = 0
	}
	dur := pcm.Duration(len(data), o.sampleRate, o.channels)

	seg := &timerSegment{}
	seg.play = time.AfterFunc(delay, func() {
		seg.mu.Lock()
		if seg.stopped {
			seg.mu.Unlock()
			return
		}
		seg.mu.Unlock()
		o.sink(data)
	})
	seg.done = time.AfterFunc(delay+dur, func() {
		seg.mu.Lock()
		if seg.stopped {
			seg.mu.Unlock()
			return
		}
		seg.mu.Unlock()
		if onDone != nil {
			onDone()
		}
	})
	return seg
}

type timerSegment struct {
	mu      sync.Mutex
	stopped bool
	play    *time.Timer
	done    *time.Timer
}

// Stop cancels delivery and suppresses the completion callback.
func (s *timerSegment) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.play.Stop()
	s.done.Stop()
}
