package canvas_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/sketchmentor/internal/canvas"
)

func TestBoard_NotReadyBeforeResize(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if b.Ready() {
		t.Error("new board should not be ready")
	}
	if _, err := b.EncodeJPEG(60); !errors.Is(err, canvas.ErrNotReady) {
		t.Errorf("EncodeJPEG = %v; want ErrNotReady", err)
	}
	if _, err := b.Snapshot(); !errors.Is(err, canvas.ErrNotReady) {
		t.Errorf("Snapshot = %v; want ErrNotReady", err)
	}
	if err := b.Highlight(500, 500, 100); !errors.Is(err, canvas.ErrNotReady) {
		t.Errorf("Highlight = %v; want ErrNotReady", err)
	}
}

func TestBoard_ResizeValidation(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if err := b.Resize(0, 100); err == nil {
		t.Error("Resize(0, 100) should fail")
	}
	if err := b.Resize(100, -1); err == nil {
		t.Error("Resize(100, -1) should fail")
	}
	if err := b.Resize(640, 480); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if !b.Ready() {
		t.Error("board should be ready after Resize")
	}
	if w, h := b.Size(); w != 640 || h != 480 {
		t.Errorf("Size = %dx%d; want 640x480", w, h)
	}
}

func TestBoard_EncodeJPEG_ProducesDecodableImage(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if err := b.Resize(320, 240); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	data, err := b.EncodeJPEG(60)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r := img.Bounds(); r.Dx() != 320 || r.Dy() != 240 {
		t.Errorf("decoded size = %dx%d; want 320x240", r.Dx(), r.Dy())
	}
}

// isWhiteish allows for minor rounding in the blend path.
func isWhiteish(img *image.RGBA, x, y int) bool {
	c := img.RGBAAt(x, y)
	return c.R > 240 && c.G > 240 && c.B > 240
}

func TestBoard_StrokeMarksSurface(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if err := b.Resize(100, 100); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := b.Stroke([]canvas.Point{{X: 0, Y: 0}, {X: 1000, Y: 1000}}); err != nil {
		t.Fatalf("Stroke: %v", err)
	}

	img, err := b.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if isWhiteish(img, 50, 50) {
		t.Error("diagonal stroke left the center pixel white")
	}
	if !isWhiteish(img, 90, 10) {
		t.Error("stroke painted a pixel far from the line")
	}
}

func TestBoard_HighlightDrawsOutlineNotFill(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if err := b.Resize(100, 100); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	// Center of the board, side 400 units = 40 px: edges at x,y = 30 and 70.
	if err := b.Highlight(500, 500, 400); err != nil {
		t.Fatalf("Highlight: %v", err)
	}

	img, err := b.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if isWhiteish(img, 30, 50) {
		t.Error("left edge of the highlight box is unpainted")
	}
	if isWhiteish(img, 50, 70) {
		t.Error("bottom edge of the highlight box is unpainted")
	}
	if !isWhiteish(img, 50, 50) {
		t.Error("box interior should stay white (outline, not fill)")
	}
}

func TestBoard_HighlightClampsOutOfRangeInput(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if err := b.Resize(100, 100); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	// Wildly out-of-range coordinates must clamp, not error or panic.
	if err := b.Highlight(-500, 99999, 5000); err != nil {
		t.Fatalf("Highlight with out-of-range input: %v", err)
	}
}

func TestBoard_ClearResetsToWhite(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if err := b.Resize(50, 50); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := b.Stroke([]canvas.Point{{X: 500, Y: 500}}); err != nil {
		t.Fatalf("Stroke: %v", err)
	}
	if err := b.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	img, _ := b.Snapshot()
	if !isWhiteish(img, 25, 25) {
		t.Error("Clear did not repaint the stroked pixel")
	}
}

func TestBoard_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if err := b.Resize(50, 50); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	snap, _ := b.Snapshot()
	if err := b.Stroke([]canvas.Point{{X: 500, Y: 500}}); err != nil {
		t.Fatalf("Stroke: %v", err)
	}
	if !isWhiteish(snap, 25, 25) {
		t.Error("stroke after Snapshot mutated the snapshot")
	}
}

// ── Sampler ───────────────────────────────────────────────────────────────────

type frameCollector struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (f *frameCollector) send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return f.err
}

func (f *frameCollector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestSampler_SendsFramesAtInterval(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if err := b.Resize(32, 32); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	var sink frameCollector
	s := canvas.NewSampler(b, sink.send, canvas.WithSampleInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for sink.count() < 3 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for 3 frames")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v; want context.Canceled", err)
	}

	if _, err := jpeg.Decode(bytes.NewReader(sink.frames[0])); err != nil {
		t.Errorf("first frame is not valid JPEG: %v", err)
	}
}

func TestSampler_SkipsWhileBoardNotReady(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard() // never resized
	var sink frameCollector
	s := canvas.NewSampler(b, sink.send, canvas.WithSampleInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	if sink.count() != 0 {
		t.Errorf("%d frames sent from an unsized board; want 0", sink.count())
	}
}

func TestSampler_SendErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	b := canvas.NewBoard()
	if err := b.Resize(32, 32); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	sink := frameCollector{err: errors.New("uplink down")}
	s := canvas.NewSampler(b, sink.send,
		canvas.WithSampleInterval(5*time.Millisecond),
		canvas.WithSamplerLogger(slog.New(slog.DiscardHandler)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for sink.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("sampler stopped after a send error")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
