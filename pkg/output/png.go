// Package output encodes rendered pixel buffers and render checkpoints.
package output

import (
	"fmt"
	"image/png"
	"io"
	"os"

	"github.com/df07/go-sphere-tracer/pkg/renderer"
)

// WritePNG encodes the gamma-corrected 8-bit image
func WritePNG(w io.Writer, buffer *renderer.PixelBuffer) error {
	if err := png.Encode(w, buffer.Image()); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// SavePNG writes the image to a PNG file
func SavePNG(path string, buffer *renderer.PixelBuffer) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WritePNG(file, buffer); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
