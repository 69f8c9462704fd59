// Package capture frames microphone samples into fixed-size PCM chunks for
// the live session uplink.
package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/sketchmentor/pkg/pcm"
)

// DefaultFrameSize is the number of samples per uplink chunk. At 16 kHz this
// is 256 ms of audio.
const DefaultFrameSize = 4096

// Source produces mono float32 samples, e.g. from a microphone device. Start
// may be called once; the returned channel is closed when the source ends.
type Source interface {
	Start(ctx context.Context) (<-chan []float32, error)
	Close() error
}

// Sender delivers one encoded PCM frame upstream.
type Sender func(frame []byte) error

// Pipeline re-frames arbitrarily sized sample slices from a [Source] into
// exact [DefaultFrameSize]-sample frames, encodes them as s16le and hands
// them to a [Sender]. Send failures are logged and skipped; a failed frame is
// never retried and never stops the pipeline.
type Pipeline struct {
	src       Source
	send      Sender
	frameSize int
	logger    *slog.Logger

	samples <-chan []float32
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFrameSize overrides the per-frame sample count.
func WithFrameSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.frameSize = n
		}
	}
}

// WithLogger sets the logger used for send failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a capture pipeline reading from src and delivering
// frames through send.
func NewPipeline(src Source, send Sender, opts ...Option) *Pipeline {
	p := &Pipeline{
		src:       src,
		send:      send,
		frameSize: DefaultFrameSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start acquires the source without pumping. Callers that need the device
// opened before other setup (so a missing microphone fails fast) call Start
// first; otherwise Run starts the source itself.
func (p *Pipeline) Start(ctx context.Context) error {
	samples, err := p.src.Start(ctx)
	if err != nil {
		return fmt.Errorf("capture: start source: %w", err)
	}
	p.samples = samples
	return nil
}

// Run pumps frames until ctx is cancelled or the source's sample channel
// closes. A trailing partial frame is discarded. The source is closed before
// Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.samples == nil {
		if err := p.Start(ctx); err != nil {
			return err
		}
	}
	samples := p.samples
	defer p.src.Close()

	var buf []float32
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-samples:
			if !ok {
				return nil
			}
			buf = append(buf, chunk...)
			for len(buf) >= p.frameSize {
				frame := pcm.Encode(buf[:p.frameSize])
				buf = buf[p.frameSize:]
				if err := p.send(frame); err != nil {
					p.logger.Warn("dropping capture frame", "error", err)
				}
			}
		}
	}
}
