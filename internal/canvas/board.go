// Package canvas holds the shared drawing surface the student sketches on
// and the mentor annotates via the highlight tool. Callers address the board
// in a fixed 1000x1000 coordinate space regardless of pixel dimensions.
package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"sync"
)

// CoordSpace is the logical coordinate range on both axes. Inputs outside
// [0, CoordSpace] are clamped, never rejected.
const CoordSpace = 1000

// ErrNotReady is returned for board operations before Resize established
// pixel dimensions.
var ErrNotReady = errors.New("canvas: board not ready")

var (
	white     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	ink       = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	amber     = color.RGBA{R: 255, G: 191, B: 0, A: 255}
	amberGlow = color.RGBA{R: 255, G: 191, B: 0, A: 80}
)

// Point is a position in board coordinates.
type Point struct {
	X float64
	Y float64
}

// Board is a mutex-guarded raster surface. All methods are safe for
// concurrent use; the frame sampler reads it while strokes and highlights
// land from other goroutines.
type Board struct {
	mu  sync.Mutex
	img *image.RGBA
}

// NewBoard creates an unsized board. It stays not ready until [Board.Resize].
func NewBoard() *Board {
	return &Board{}
}

// Resize sets the pixel dimensions and clears the surface to white. Any
// previous content is discarded.
func (b *Board) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("canvas: invalid dimensions %dx%d", width, height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.img = image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(b.img, b.img.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)
	return nil
}

// Ready reports whether the board has pixel dimensions.
func (b *Board) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.img != nil
}

// Size returns the pixel dimensions, or zeros when not ready.
func (b *Board) Size() (width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return 0, 0
	}
	r := b.img.Bounds()
	return r.Dx(), r.Dy()
}

// Clear repaints the surface white.
func (b *Board) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return ErrNotReady
	}
	draw.Draw(b.img, b.img.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)
	return nil
}

// Stroke draws a connected polyline through the given points. A single point
// produces a dot.
func (b *Board) Stroke(points []Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return ErrNotReady
	}
	if len(points) == 0 {
		return nil
	}
	const width = 3
	prev := b.toPixel(points[0])
	b.stampDisc(prev, width, ink)
	for _, p := range points[1:] {
		cur := b.toPixel(p)
		b.line(prev, cur, width, ink)
		prev = cur
	}
	return nil
}

// Highlight draws a square outline centered at (cx, cy) with side length
// size, all in board coordinates. A soft glow pass sits behind the outline so
// the box reads over dense sketches. Out-of-range inputs are clamped.
func (b *Board) Highlight(cx, cy, size float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return ErrNotReady
	}

	cx = clamp(cx, 0, CoordSpace)
	cy = clamp(cy, 0, CoordSpace)
	size = clamp(size, 0, CoordSpace)

	c := b.toPixel(Point{X: cx, Y: cy})
	half := b.scale(size) / 2

	b.rectOutline(c, half+3, 7, amberGlow)
	b.rectOutline(c, half, 4, amber)
	return nil
}

// Snapshot returns a copy of the current surface.
func (b *Board) Snapshot() (*image.RGBA, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return nil, ErrNotReady
	}
	dup := image.NewRGBA(b.img.Bounds())
	copy(dup.Pix, b.img.Pix)
	return dup, nil
}

// EncodeJPEG renders the surface as a JPEG with the given quality (1-100).
func (b *Board) EncodeJPEG(quality int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return nil, ErrNotReady
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, b.img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("canvas: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ── Rasterization (lock held) ─────────────────────────────────────────────────

func (b *Board) toPixel(p Point) image.Point {
	r := b.img.Bounds()
	return image.Point{
		X: int(math.Round(p.X / CoordSpace * float64(r.Dx()-1))),
		Y: int(math.Round(p.Y / CoordSpace * float64(r.Dy()-1))),
	}
}

// scale converts a board-space length to pixels on the horizontal axis.
func (b *Board) scale(v float64) int {
	return int(math.Round(v / CoordSpace * float64(b.img.Bounds().Dx())))
}

func (b *Board) stampDisc(c image.Point, width int, col color.RGBA) {
	r := width / 2
	if r < 1 {
		r = 1
	}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				b.blend(c.X+dx, c.Y+dy, col)
			}
		}
	}
}

func (b *Board) line(from, to image.Point, width int, col color.RGBA) {
	dx, dy := to.X-from.X, to.Y-from.Y
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		b.stampDisc(from, width, col)
		return
	}
	for i := 0; i <= steps; i++ {
		x := from.X + dx*i/steps
		y := from.Y + dy*i/steps
		b.stampDisc(image.Point{X: x, Y: y}, width, col)
	}
}

// rectOutline draws a square outline of the given half-side and stroke width
// centered at c.
func (b *Board) rectOutline(c image.Point, half, width int, col color.RGBA) {
	if half < 1 {
		half = 1
	}
	corners := [4]image.Point{
		{X: c.X - half, Y: c.Y - half},
		{X: c.X + half, Y: c.Y - half},
		{X: c.X + half, Y: c.Y + half},
		{X: c.X - half, Y: c.Y + half},
	}
	for i := range corners {
		b.line(corners[i], corners[(i+1)%4], width, col)
	}
}

// blend paints one pixel with source-over alpha compositing, skipping
// out-of-bounds coordinates.
func (b *Board) blend(x, y int, col color.RGBA) {
	if !(image.Point{X: x, Y: y}).In(b.img.Bounds()) {
		return
	}
	if col.A == 255 {
		b.img.SetRGBA(x, y, col)
		return
	}
	bg := b.img.RGBAAt(x, y)
	a := uint32(col.A)
	inv := 255 - a
	b.img.SetRGBA(x, y, color.RGBA{
		R: uint8((uint32(col.R)*a + uint32(bg.R)*inv) / 255),
		G: uint8((uint32(col.G)*a + uint32(bg.G)*inv) / 255),
		B: uint8((uint32(col.B)*a + uint32(bg.B)*inv) / 255),
		A: 255,
	})
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
