package capture

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/sketchmentor/pkg/pcm"
)

// Compile-time interface assertion.
var _ Source = (*ReaderSource)(nil)

// ReaderSource adapts a raw s16le mono byte stream (e.g. stdin fed by an
// external recorder) into a [Source]. A byte left over from an odd-length
// read is carried into the next one.
type ReaderSource struct {
	r io.Reader

	closeOnce sync.Once
	done      chan struct{}
}

// NewReaderSource wraps r as a sample source.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{
		r:    r,
		done: make(chan struct{}),
	}
}

// Start begins reading from the underlying stream. The returned channel is
// closed on EOF, read error, ctx cancellation or [ReaderSource.Close].
func (s *ReaderSource) Start(ctx context.Context) (<-chan []float32, error) {
	out := make(chan []float32)
	go func() {
		defer close(out)
		buf := make([]byte, 8192)
		var carry []byte
		for {
			n, err := s.r.Read(buf)
			if n > 0 {
				data := append(carry, buf[:n]...)
				whole := len(data) / pcm.BytesPerSample * pcm.BytesPerSample
				carry = append([]byte(nil), data[whole:]...)
				if whole > 0 {
					samples := pcm.Samples(data[:whole], 1)[0]
					select {
					case out <- samples:
					case <-ctx.Done():
						return
					case <-s.done:
						return
					}
				}
			}
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			default:
			}
		}
	}()
	return out, nil
}

// Close stops the read loop. Idempotent. The underlying reader is not closed;
// the caller owns it.
func (s *ReaderSource) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
