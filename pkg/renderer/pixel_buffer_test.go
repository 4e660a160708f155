package renderer

import (
	"image/color"
	"testing"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

func TestColorToRGBA(t *testing.T) {
	tests := []struct {
		name     string
		input    core.Vec3
		expected color.RGBA
	}{
		{"black", core.NewVec3(0, 0, 0), color.RGBA{0, 0, 0, 255}},
		{"white", core.NewVec3(1, 1, 1), color.RGBA{255, 255, 255, 255}},
		{"quarter is gamma corrected to half", core.NewVec3(0.25, 0.25, 0.25), color.RGBA{127, 127, 127, 255}},
		{"over-bright clamps", core.NewVec3(4, 1.5, 0.01), color.RGBA{255, 255, 25, 255}},
		{"negative clamps", core.NewVec3(-1, 0.64, -0.5), color.RGBA{0, 204, 0, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ColorToRGBA(tt.input)
			if got != tt.expected {
				t.Errorf("ColorToRGBA(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPixelBuffer_RGBA8Layout(t *testing.T) {
	buffer := NewPixelBuffer(2, 2)
	buffer.Set(0, 0, core.NewVec3(1, 0, 0)) // top left
	buffer.Set(1, 0, core.NewVec3(0, 1, 0)) // top right
	buffer.Set(0, 1, core.NewVec3(0, 0, 1)) // bottom left

	expected := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 0, 0, 0, 255,
	}
	got := buffer.RGBA8()
	if len(got) != 4*2*2 {
		t.Fatalf("Expected %d bytes, got %d", 16, len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("Byte %d: expected %d, got %d (buffer %v)", i, expected[i], got[i], got)
		}
	}

	img := buffer.Image()
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Errorf("Expected 2x2 image, got %v", img.Bounds())
	}
	if img.RGBAAt(0, 1) != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("Expected blue bottom-left pixel, got %v", img.RGBAAt(0, 1))
	}
	if buffer.At(1, 0) != core.NewVec3(0, 1, 0) {
		t.Errorf("Expected green at (1,0), got %v", buffer.At(1, 0))
	}
}

func TestPixelBuffer_AverageLuminance(t *testing.T) {
	buffer := NewPixelBuffer(2, 2)
	buffer.Set(0, 0, core.NewVec3(1, 1, 1))
	buffer.Set(1, 1, core.NewVec3(1, 1, 1))

	if got := buffer.AverageLuminance(); got < 0.4999 || got > 0.5001 {
		t.Errorf("Expected average luminance 0.5, got %f", got)
	}
	if got := NewPixelBuffer(0, 0).AverageLuminance(); got != 0 {
		t.Errorf("Expected 0 for an empty buffer, got %f", got)
	}
}
