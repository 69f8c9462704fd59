package audio

import (
	"sync"
	"time"

	"github.com/MrWong99/sketchmentor/pkg/pcm"
)

// Scheduler chains incoming PCM chunks into gapless back-to-back playback on
// an [Output]. Each chunk is scheduled to begin at the later of "now" and the
// end of the previously scheduled chunk, so audio that arrives faster or
// slower than real time never overlaps and never leaves avoidable gaps.
//
// All exported methods are safe for concurrent use.
type Scheduler struct {
	out        Output
	sampleRate int
	channels   int

	mu      sync.Mutex
	cursor  time.Duration
	pending map[uint64]Segment
	seq     uint64
	stopped bool
}

// NewScheduler creates a Scheduler playing through out. The sample rate and
// channel count describe the PCM format of enqueued chunks (the model's
// output format, 24 kHz mono for Gemini Live).
func NewScheduler(out Output, sampleRate, channels int) *Scheduler {
	return &Scheduler{
		out:        out,
		sampleRate: sampleRate,
		channels:   channels,
		cursor:     out.Now(),
		pending:    make(map[uint64]Segment),
	}
}

// Enqueue schedules data for playback immediately after the last enqueued
// chunk (or right away if the queue has drained). Empty chunks and chunks
// enqueued after Stop are ignored.
func (s *Scheduler) Enqueue(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || len(data) == 0 {
		return
	}

	start := s.out.Now()
	if s.cursor > start {
		start = s.cursor
	}
	dur := pcm.Duration(len(data), s.sampleRate, s.channels)

	id := s.seq
	s.seq++
	seg := s.out.PlayAt(data, start, func() { s.complete(id) })
	s.pending[id] = seg
	s.cursor = start + dur
}

// Interrupt stops every pending segment immediately, clears the pending set,
// and resets the playback cursor to the clock's current position. Used when
// the remote model is interrupted by new user speech so no stale audio plays
// over the new response.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptLocked()
}

// interruptLocked must be called with s.mu held.
func (s *Scheduler) interruptLocked() {
	for id, seg := range s.pending {
		seg.Stop()
		delete(s.pending, id)
	}
	s.cursor = s.out.Now()
}

// Stop interrupts all playback and refuses further enqueues. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptLocked()
	s.stopped = true
}

// Pending returns the number of scheduled-but-unfinished segments.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Cursor returns the clock position at which the next enqueued chunk would
// start if it arrived while playback is still draining.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// complete removes a naturally finished segment from the pending set.
func (s *Scheduler) complete(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}
