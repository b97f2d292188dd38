package io

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"iter"
	"sync"

	"golang.org/x/image/draw"

	"github.com/ezrec/chip8/internal"
)

// Display geometry.
const (
	WIDTH         = 64          // Pixels per row.
	HEIGHT        = 32          // Rows.
	ROW_BYTES     = WIDTH / 8   // Packed bytes per row.
	DEFAULT_SCALE = 10          // Host pixels per display pixel.
)

var _display_defines = map[string]string{
	"WIDTH":  fmt.Sprintf("%d", WIDTH),
	"HEIGHT": fmt.Sprintf("%d", HEIGHT),
}

// Grid is the packed pixel store, most significant bit leftmost.
type Grid [HEIGHT][ROW_BYTES]byte

// Display is the monochrome framebuffer.
//
// The execution loop draws; the presentation layer reads pixels and
// consumes the repaint flag from its own goroutine.
type Display struct {
	Scale      int         // Host pixels per display pixel. Zero means DEFAULT_SCALE.
	Foreground color.Color // Lit pixel color. Nil means white.
	Background color.Color // Unlit pixel color. Nil means black.

	mutex     sync.Mutex
	grid      Grid
	collision bool
	repaint   bool
}

// Defines for the display.
func (d *Display) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Sorted(_display_defines)
}

// Clear zeros all pixels and the collision and repaint flags.
func (d *Display) Clear() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.grid = Grid{}
	d.collision = false
	d.repaint = false
}

// Erase zeros all pixels and requests a repaint.
func (d *Display) Erase() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.grid = Grid{}
	d.repaint = true
}

// drawByte must be called with the mutex held.
func (d *Display) drawByte(x, y int, row byte) {
	y %= HEIGHT
	for bit := range 8 {
		if row&(0x80>>bit) == 0 {
			continue
		}
		px := (x + bit) % WIDTH
		mask := byte(0x80 >> (px % 8))
		cell := &d.grid[y][px/8]
		if *cell&mask != 0 {
			d.collision = true
		}
		*cell ^= mask
	}
	d.repaint = true
}

// DrawByte XORs one 8 pixel row at (x, y), wrapping at the edges.
// A collision is added to the collision flag, never removed.
func (d *Display) DrawByte(x, y uint8, row byte) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.drawByte(int(x), int(y), row)
}

// Draw XORs a sprite, one byte per row, and reports whether any lit pixel
// was turned off.
func (d *Display) Draw(x, y uint8, sprite []byte) (collision bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.collision = false
	for n, row := range sprite {
		d.drawByte(int(x), int(y)+n, row)
	}

	return d.collision
}

// Collision returns the collision flag of the last draw.
func (d *Display) Collision() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.collision
}

// RepaintPending returns the repaint flag without clearing it.
func (d *Display) RepaintPending() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.repaint
}

// ConsumeRepaintPending returns and clears the repaint flag.
func (d *Display) ConsumeRepaintPending() (pending bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	pending = d.repaint
	d.repaint = false
	return
}

// Pixel returns the state of one pixel. Coordinates wrap.
func (d *Display) Pixel(x, y int) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	x = ((x % WIDTH) + WIDTH) % WIDTH
	y = ((y % HEIGHT) + HEIGHT) % HEIGHT
	return d.grid[y][x/8]&(0x80>>(x%8)) != 0
}

// Pixels returns a copy of the packed pixel grid and the collision flag.
func (d *Display) Pixels() (grid Grid, collision bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.grid, d.collision
}

// SetPixels replaces the grid and collision flag, and requests a repaint.
func (d *Display) SetPixels(grid Grid, collision bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.grid = grid
	d.collision = collision
	d.repaint = true
}

// PixelScale returns the effective scale factor.
func (d *Display) PixelScale() int {
	if d.Scale <= 0 {
		return DEFAULT_SCALE
	}
	return d.Scale
}

func (d *Display) palette() color.Palette {
	fg, bg := d.Foreground, d.Background
	if fg == nil {
		fg = color.White
	}
	if bg == nil {
		bg = color.Black
	}
	return color.Palette{bg, fg}
}

// Image renders the display at the given scale. A scale below one uses
// PixelScale.
func (d *Display) Image(scale int) image.Image {
	if scale < 1 {
		scale = d.PixelScale()
	}

	grid, _ := d.Pixels()
	palette := d.palette()

	src := image.NewPaletted(image.Rect(0, 0, WIDTH, HEIGHT), palette)
	for y := range HEIGHT {
		for x := range WIDTH {
			if grid[y][x/8]&(0x80>>(x%8)) != 0 {
				src.SetColorIndex(x, y, 1)
			}
		}
	}

	if scale == 1 {
		return src
	}

	dst := image.NewPaletted(image.Rect(0, 0, WIDTH*scale, HEIGHT*scale), palette)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return dst
}

// WritePNG writes the display as a PNG image.
func (d *Display) WritePNG(w io.Writer, scale int) (err error) {
	return png.Encode(w, d.Image(scale))
}

// String renders the display as text, one line per row.
func (d *Display) String() (text string) {
	grid, _ := d.Pixels()
	buf := make([]byte, 0, HEIGHT*(WIDTH+1))
	for y := range HEIGHT {
		for x := range WIDTH {
			if grid[y][x/8]&(0x80>>(x%8)) != 0 {
				buf = append(buf, '#')
			} else {
				buf = append(buf, '.')
			}
		}
		buf = append(buf, '\n')
	}

	return string(buf)
}
