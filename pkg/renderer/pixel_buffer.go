package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// PixelBuffer holds linear per-pixel colors, row-major with the top row first
type PixelBuffer struct {
	Width  int
	Height int
	Pixels []core.Vec3
}

// NewPixelBuffer creates a black buffer of the given size
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pixels: make([]core.Vec3, width*height),
	}
}

// At returns the color at column x of row y (y = 0 is the top row)
func (b *PixelBuffer) At(x, y int) core.Vec3 {
	return b.Pixels[y*b.Width+x]
}

// Set stores the color at column x of row y
func (b *PixelBuffer) Set(x, y int, c core.Vec3) {
	b.Pixels[y*b.Width+x] = c
}

// ColorToRGBA converts a linear color to 8-bit RGBA with gamma 2 correction
func ColorToRGBA(c core.Vec3) color.RGBA {
	c = c.Clamp(0.0, 1.0)
	return color.RGBA{
		R: uint8(255.99 * math.Sqrt(c.X)),
		G: uint8(255.99 * math.Sqrt(c.Y)),
		B: uint8(255.99 * math.Sqrt(c.Z)),
		A: 255,
	}
}

// RGBA8 returns the gamma-corrected image as 4*Width*Height bytes in R,G,B,A order
func (b *PixelBuffer) RGBA8() []byte {
	out := make([]byte, 0, 4*len(b.Pixels))
	for _, c := range b.Pixels {
		rgba := ColorToRGBA(c)
		out = append(out, rgba.R, rgba.G, rgba.B, rgba.A)
	}
	return out
}

// Image wraps the gamma-corrected bytes in an image.RGBA
func (b *PixelBuffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    b.RGBA8(),
		Stride: 4 * b.Width,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// AverageLuminance returns the mean linear luminance of the buffer
func (b *PixelBuffer) AverageLuminance() float64 {
	if len(b.Pixels) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range b.Pixels {
		total += c.Luminance()
	}
	return total / float64(len(b.Pixels))
}
