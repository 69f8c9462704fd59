package capture_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/sketchmentor/internal/capture"
	"github.com/MrWong99/sketchmentor/internal/capture/mock"
	"github.com/MrWong99/sketchmentor/pkg/pcm"
)

// collectSender records every delivered frame.
type collectSender struct {
	mu     sync.Mutex
	frames [][]byte
	errs   []error // popped per call; nil entries mean success
}

func (c *collectSender) send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return err
	}
	return nil
}

func (c *collectSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *collectSender) frame(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[i]
}

func runPipeline(t *testing.T, p *capture.Pipeline) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for pipeline to stop")
		return nil
	}
}

func TestPipeline_FramesExactMultiple(t *testing.T) {
	t.Parallel()

	src := mock.New()
	var sender collectSender
	p := capture.NewPipeline(src, sender.send, capture.WithFrameSize(4))

	done := runPipeline(t, p)
	src.Emit([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8})
	src.End()

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sender.count() != 2 {
		t.Fatalf("frames sent = %d; want 2", sender.count())
	}
	if got := len(sender.frame(0)); got != 4*pcm.BytesPerSample {
		t.Errorf("frame size = %d bytes; want %d", got, 4*pcm.BytesPerSample)
	}
}

func TestPipeline_ReframesAcrossChunks(t *testing.T) {
	t.Parallel()

	src := mock.New()
	var sender collectSender
	p := capture.NewPipeline(src, sender.send, capture.WithFrameSize(10))

	done := runPipeline(t, p)
	// 7 + 7 = 14 samples: one full frame of 10, remainder 4 carried.
	src.Emit(make([]float32, 7))
	src.Emit(make([]float32, 7))
	// +6 completes the second frame exactly.
	src.Emit(make([]float32, 6))
	src.End()

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sender.count() != 2 {
		t.Errorf("frames sent = %d; want 2", sender.count())
	}
}

func TestPipeline_DiscardsTrailingPartialFrame(t *testing.T) {
	t.Parallel()

	src := mock.New()
	var sender collectSender
	p := capture.NewPipeline(src, sender.send, capture.WithFrameSize(100))

	done := runPipeline(t, p)
	src.Emit(make([]float32, 99))
	src.End()

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sender.count() != 0 {
		t.Errorf("frames sent = %d; want 0 (partial frame discarded)", sender.count())
	}
}

func TestPipeline_SendErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	src := mock.New()
	sender := collectSender{errs: []error{errors.New("uplink down")}}
	p := capture.NewPipeline(src, sender.send,
		capture.WithFrameSize(2),
		capture.WithLogger(slog.New(slog.DiscardHandler)),
	)

	done := runPipeline(t, p)
	src.Emit(make([]float32, 2)) // fails
	src.Emit(make([]float32, 2)) // still delivered
	src.End()

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sender.count() != 2 {
		t.Errorf("send attempts = %d; want 2 (pipeline survives send errors)", sender.count())
	}
}

func TestPipeline_StartFailurePropagates(t *testing.T) {
	t.Parallel()

	src := mock.New()
	src.FailStart(errors.New("no microphone"))
	p := capture.NewPipeline(src, func([]byte) error { return nil })

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("Run should fail when the source cannot start")
	}
}

func TestPipeline_ContextCancelStopsAndClosesSource(t *testing.T) {
	t.Parallel()

	src := mock.New()
	p := capture.NewPipeline(src, func([]byte) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	if err := waitDone(t, done); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v; want context.Canceled", err)
	}
	if !src.Closed() {
		t.Error("source was not closed on shutdown")
	}
}

func TestReaderSource_ConvertsAndCarriesOddBytes(t *testing.T) {
	t.Parallel()

	// 3 samples plus one dangling byte: the dangling byte pairs with the
	// first byte of a later read in a real stream; at EOF it is dropped.
	data := append(pcm.Encode([]float32{0.5, -0.5, 0}), 0x7F)
	src := capture.NewReaderSource(bytes.NewReader(data))
	defer src.Close()

	ch, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []float32
	for chunk := range ch {
		got = append(got, chunk...)
	}
	if len(got) != 3 {
		t.Fatalf("samples = %d; want 3 (dangling byte dropped)", len(got))
	}
	if got[0] < 0.49 || got[0] > 0.51 {
		t.Errorf("first sample = %v; want ~0.5", got[0])
	}
}

func TestReaderSource_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	src := capture.NewReaderSource(bytes.NewReader(nil))
	if _, err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestReaderSource_StopsOnReadError(t *testing.T) {
	t.Parallel()

	src := capture.NewReaderSource(io.MultiReader(
		bytes.NewReader(pcm.Encode([]float32{0.1})),
		&failingReader{},
	))
	defer src.Close()

	ch, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return // channel closed after the read error
			}
		case <-deadline:
			t.Fatal("channel not closed after read error")
		}
	}
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) {
	return 0, errors.New("device unplugged")
}
