package output

import (
	"fmt"
	"image"
	"io"

	"github.com/mrjoshuak/go-openexr/exr"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
)

// ToEXRImage copies the linear colors into an opaque float image.
// No gamma or clamping is applied.
func ToEXRImage(buffer *renderer.PixelBuffer) *exr.RGBAImage {
	img := exr.NewRGBAImage(image.Rect(0, 0, buffer.Width, buffer.Height))
	for y := 0; y < buffer.Height; y++ {
		for x := 0; x < buffer.Width; x++ {
			c := buffer.At(x, y)
			img.SetRGBA(x, y, float32(c.X), float32(c.Y), float32(c.Z), 1)
		}
	}
	return img
}

// FromEXRImage converts a decoded float image back into a pixel buffer, dropping alpha
func FromEXRImage(img *exr.RGBAImage) *renderer.PixelBuffer {
	bounds := img.Bounds()
	buffer := renderer.NewPixelBuffer(bounds.Dx(), bounds.Dy())
	for y := 0; y < buffer.Height; y++ {
		for x := 0; x < buffer.Width; x++ {
			r, g, b, _ := img.RGBA(x+bounds.Min.X, y+bounds.Min.Y)
			buffer.Set(x, y, core.NewVec3(float64(r), float64(g), float64(b)))
		}
	}
	return buffer
}

// WriteEXR encodes the linear image as a half-float, ZIP compressed OpenEXR stream
func WriteEXR(w io.WriteSeeker, buffer *renderer.PixelBuffer) error {
	if err := exr.Encode(w, ToEXRImage(buffer)); err != nil {
		return fmt.Errorf("failed to encode EXR: %w", err)
	}
	return nil
}

// SaveEXR writes the linear image to an OpenEXR file
func SaveEXR(path string, buffer *renderer.PixelBuffer) error {
	if err := exr.EncodeFile(path, ToEXRImage(buffer)); err != nil {
		return fmt.Errorf("failed to write EXR %s: %w", path, err)
	}
	return nil
}

// ReadEXR loads an OpenEXR file into a pixel buffer
func ReadEXR(path string) (*renderer.PixelBuffer, error) {
	img, err := exr.DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read EXR %s: %w", path, err)
	}
	return FromEXRImage(img), nil
}
