package renderer

import (
	"image"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/integrator"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

// Raytracer renders a whole image synchronously on the calling goroutine
type Raytracer struct {
	scene  *scene.Scene
	width  int
	height int
	config scene.SamplingConfig
}

// NewRaytracer creates a raytracer using the scene's sampling configuration
func NewRaytracer(s *scene.Scene) *Raytracer {
	return &Raytracer{
		scene:  s,
		width:  s.SamplingConfig.Width,
		height: s.SamplingConfig.Height,
		config: s.SamplingConfig,
	}
}

// SetSamplingConfig updates the samples per pixel and bounce limit.
// The image size always comes from the scene.
func (rt *Raytracer) SetSamplingConfig(config scene.SamplingConfig) {
	rt.config.SamplesPerPixel = config.SamplesPerPixel
	rt.config.MaxDepth = config.MaxDepth
}

// Render traces SamplesPerPixel jittered rays through every pixel, scanning from the top row
// down, and returns the averaged linear colors
func (rt *Raytracer) Render(sampler core.Sampler) *PixelBuffer {
	pixelStats := make([][]PixelStats, rt.height)
	for y := range pixelStats {
		pixelStats[y] = make([]PixelStats, rt.width)
	}

	tileRenderer := NewTileRenderer(rt.scene, integrator.NewPathTracingIntegrator(rt.config.MaxDepth))
	tileRenderer.RenderTileBounds(image.Rect(0, 0, rt.width, rt.height), pixelStats, sampler, rt.config.SamplesPerPixel)

	return assemblePixelBuffer(pixelStats, rt.width, rt.height)
}

// assemblePixelBuffer averages accumulated samples into a pixel buffer
func assemblePixelBuffer(pixelStats [][]PixelStats, width, height int) *PixelBuffer {
	buffer := NewPixelBuffer(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			buffer.Set(x, y, pixelStats[y][x].GetColor())
		}
	}
	return buffer
}
