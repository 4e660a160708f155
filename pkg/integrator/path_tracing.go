package integrator

import (
	"math"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// DefaultMaxDepth is the bounce limit after which a path contributes black
const DefaultMaxDepth = 50

// ShadowAcneEpsilon is the minimum hit distance, keeping scattered rays from
// re-hitting the surface they start on
const ShadowAcneEpsilon = 0.001

var (
	skyBottom = core.NewVec3(1.0, 1.0, 1.0) // white at the horizon and below
	skyTop    = core.NewVec3(0.5, 0.7, 1.0) // blue straight up
)

// PathTracingIntegrator implements the recursive random walk over scene materials
type PathTracingIntegrator struct {
	maxDepth int
}

// NewPathTracingIntegrator creates a new path tracing integrator.
// A non-positive maxDepth selects DefaultMaxDepth.
func NewPathTracingIntegrator(maxDepth int) *PathTracingIntegrator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &PathTracingIntegrator{maxDepth: maxDepth}
}

// MaxDepth returns the bounce limit
func (pt *PathTracingIntegrator) MaxDepth() int {
	return pt.maxDepth
}

// RayColor computes the color for a primary ray
func (pt *PathTracingIntegrator) RayColor(ray core.Ray, world World, sampler core.Sampler) core.Vec3 {
	return pt.Trace(ray, world, 0, sampler)
}

// Trace returns the color for a ray that has already bounced depth times.
// A hit at depth >= MaxDepth or an absorbing scatter yields black; a miss yields the sky.
func (pt *PathTracingIntegrator) Trace(ray core.Ray, world World, depth int, sampler core.Sampler) core.Vec3 {
	hit, isHit := world.Hit(ray, ShadowAcneEpsilon, math.Inf(1))
	if !isHit {
		return BackgroundGradient(ray)
	}

	if depth >= pt.maxDepth {
		return core.Vec3{}
	}

	scatter, didScatter := world.Material(hit.Material).Scatter(ray, hit, sampler)
	if !didScatter {
		return core.Vec3{}
	}

	return scatter.Attenuation.MultiplyVec(pt.Trace(scatter.Scattered, world, depth+1, sampler))
}

// BackgroundGradient returns the sky color seen along an escaping ray.
// It is the only light source in the scene.
func BackgroundGradient(ray core.Ray) core.Vec3 {
	unitDirection := ray.Direction.Normalize()

	// Map y from [-1,1] to [0,1]
	t := 0.5 * (unitDirection.Y + 1.0)
	return skyBottom.Lerp(skyTop, t)
}
