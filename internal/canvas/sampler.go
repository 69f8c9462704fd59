package canvas

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// DefaultSampleInterval matches roughly one visual frame per second,
	// enough for the model to track sketch progress without flooding the
	// uplink.
	DefaultSampleInterval = time.Second

	// DefaultJPEGQuality trades detail for frame size; line drawings survive
	// heavy compression well.
	DefaultJPEGQuality = 60
)

// FrameSender delivers one encoded JPEG frame upstream.
type FrameSender func(jpeg []byte) error

// Sampler periodically snapshots the board as JPEG and pushes the frames
// through a [FrameSender]. Ticks while the board is unsized are skipped;
// encode and send failures are logged and the next tick proceeds normally.
type Sampler struct {
	board    *Board
	send     FrameSender
	interval time.Duration
	quality  int
	logger   *slog.Logger
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithSampleInterval overrides the tick interval.
func WithSampleInterval(d time.Duration) SamplerOption {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithJPEGQuality overrides the encode quality (1-100).
func WithJPEGQuality(q int) SamplerOption {
	return func(s *Sampler) {
		if q >= 1 && q <= 100 {
			s.quality = q
		}
	}
}

// WithSamplerLogger sets the logger used for skipped frames.
func WithSamplerLogger(logger *slog.Logger) SamplerOption {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSampler creates a frame sampler over board delivering through send.
func NewSampler(board *Board, send FrameSender, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		board:    board,
		send:     send,
		interval: DefaultSampleInterval,
		quality:  DefaultJPEGQuality,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is cancelled. The first frame goes out after one full
// interval, not immediately.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	frame, err := s.board.EncodeJPEG(s.quality)
	if err != nil {
		if !errors.Is(err, ErrNotReady) {
			s.logger.Warn("skipping visual frame", "error", err)
		}
		return
	}
	if err := s.send(frame); err != nil {
		s.logger.Warn("dropping visual frame", "error", err)
	}
}
