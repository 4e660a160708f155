package renderer

import (
	"testing"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

// testLogger implements core.Logger for testing by collecting all output
type testLogger struct {
	messages []string
}

// Ensure testLogger implements core.Logger
var _ core.Logger = (*testLogger)(nil)

func (tl *testLogger) Printf(format string, args ...interface{}) {
	tl.messages = append(tl.messages, format)
}

// smallTwoSpheres returns the two-sphere scene shrunk to width x width/2 pixels
func smallTwoSpheres(t *testing.T, width, samples int) *scene.Scene {
	t.Helper()
	s, err := scene.NewTwoSpheresScene(geometry.CameraConfig{Width: width})
	if err != nil {
		t.Fatalf("Failed to create scene: %v", err)
	}
	s.SamplingConfig.SamplesPerPixel = samples
	return s
}

func buffersEqual(a, b *PixelBuffer) bool {
	if a.Width != b.Width || a.Height != b.Height || len(a.Pixels) != len(b.Pixels) {
		return false
	}
	for i := range a.Pixels {
		if a.Pixels[i] != b.Pixels[i] {
			return false
		}
	}
	return true
}
