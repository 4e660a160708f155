package renderer

import (
	"image"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/integrator"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

// TileRenderer samples pixels inside image bounds using an integrator.
// It holds no mutable state and can be shared between workers.
type TileRenderer struct {
	scene      *scene.Scene
	integrator integrator.Integrator
}

// NewTileRenderer creates a new tile renderer with the given scene and integrator
func NewTileRenderer(s *scene.Scene, integratorInst integrator.Integrator) *TileRenderer {
	return &TileRenderer{
		scene:      s,
		integrator: integratorInst,
	}
}

// RenderTileBounds adds samples to every pixel in bounds until each holds targetSamples.
// Rows are visited top first; y = 0 is the top row of the image.
func (tr *TileRenderer) RenderTileBounds(bounds image.Rectangle, pixelStats [][]PixelStats, sampler core.Sampler, targetSamples int) RenderStats {
	stats := newRenderStats(bounds.Dx()*bounds.Dy(), targetSamples)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			samplesUsed := tr.samplePixel(x, y, &pixelStats[y][x], sampler, targetSamples)
			stats.update(samplesUsed)
		}
	}

	stats.finalize()
	return stats
}

// samplePixel traces jittered primary rays through pixel (x, y)
func (tr *TileRenderer) samplePixel(x, y int, ps *PixelStats, sampler core.Sampler, targetSamples int) int {
	width := float64(tr.scene.SamplingConfig.Width)
	height := float64(tr.scene.SamplingConfig.Height)
	j := tr.scene.SamplingConfig.Height - 1 - y // image-plane row, 0 at the bottom

	initialSampleCount := ps.SampleCount
	for ps.SampleCount < targetSamples {
		s := (float64(x) + sampler.Get1D()) / width
		t := (float64(j) + sampler.Get1D()) / height

		ray := tr.scene.Camera.GetRay(s, t, sampler)
		ps.AddSample(tr.integrator.RayColor(ray, tr.scene, sampler))
	}

	return ps.SampleCount - initialSampleCount
}
