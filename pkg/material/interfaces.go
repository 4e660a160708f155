package material

import (
	"fmt"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// Kind identifies which scattering model a Material uses
type Kind int

const (
	KindLambertian Kind = iota // Diffuse
	KindMetal                  // Specular reflection with optional fuzz
	KindDielectric             // Glass-like reflection and refraction
)

// String returns the lower-case name used in scene files
func (k Kind) String() string {
	switch k {
	case KindLambertian:
		return "lambertian"
	case KindMetal:
		return "metal"
	case KindDielectric:
		return "dielectric"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Material is a closed variant over the supported scattering models.
// Only the fields relevant to Kind are meaningful. Materials are immutable once built
// and shared between spheres through a Handle.
type Material struct {
	Kind            Kind
	Albedo          core.Vec3 // Lambertian and Metal
	Fuzz            float64   // Metal, in [0,1]
	RefractiveIndex float64   // Dielectric
}

// ScatterResult contains the result of material scattering
type ScatterResult struct {
	Scattered   core.Ray  // The scattered ray
	Attenuation core.Vec3 // Color attenuation
}

// HitRecord contains information about a ray-object intersection.
// It is only valid for the query that produced it.
type HitRecord struct {
	T        float64   // Parameter t along the ray
	Point    core.Vec3 // Point of intersection
	Normal   core.Vec3 // Surface normal, (point - center) / radius for spheres
	Material Handle    // Material of the hit object
}

// Scatter computes the outgoing ray and attenuation for a ray hitting a surface made of m.
// It returns false when the ray is absorbed.
func (m *Material) Scatter(rayIn core.Ray, hit HitRecord, sampler core.Sampler) (ScatterResult, bool) {
	switch m.Kind {
	case KindLambertian:
		return m.scatterLambertian(hit, sampler)
	case KindMetal:
		return m.scatterMetal(rayIn, hit, sampler)
	case KindDielectric:
		return m.scatterDielectric(rayIn, hit, sampler)
	default:
		return ScatterResult{}, false
	}
}
