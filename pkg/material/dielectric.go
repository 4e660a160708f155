package material

import (
	"math"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// NewDielectric creates a new dielectric material
func NewDielectric(refractiveIndex float64) Material {
	return Material{Kind: KindDielectric, RefractiveIndex: refractiveIndex}
}

func (m *Material) scatterDielectric(rayIn core.Ray, hit HitRecord, sampler core.Sampler) (ScatterResult, bool) {
	// Clear glass never absorbs color
	attenuation := core.NewVec3(1.0, 1.0, 1.0)

	direction := rayIn.Direction
	dirDotNormal := direction.Dot(hit.Normal)

	var outwardNormal core.Vec3
	var ratio, cosine float64
	if dirDotNormal > 0 {
		// Exiting the material
		outwardNormal = hit.Normal.Negate()
		ratio = m.RefractiveIndex
		cosine = m.RefractiveIndex * dirDotNormal / direction.Length()
	} else {
		// Entering the material
		outwardNormal = hit.Normal
		ratio = 1.0 / m.RefractiveIndex
		cosine = -dirDotNormal / direction.Length()
	}

	var scatteredDirection core.Vec3
	refracted, canRefract := refract(direction, outwardNormal, ratio)
	if canRefract && sampler.Get1D() >= Reflectance(cosine, m.RefractiveIndex) {
		scatteredDirection = refracted
	} else {
		// Total internal reflection, or the Fresnel draw chose reflection
		scatteredDirection = reflect(direction, hit.Normal)
	}

	return ScatterResult{
		Scattered:   core.NewRay(hit.Point, scatteredDirection),
		Attenuation: attenuation,
	}, true
}

// refract bends v through a surface with normal n using Snell's law.
// ratio is the incident over transmitted refractive index.
// It returns false when there is no refraction solution (total internal reflection).
func refract(v, n core.Vec3, ratio float64) (core.Vec3, bool) {
	uv := v.Normalize()
	dt := uv.Dot(n)
	discriminant := 1.0 - ratio*ratio*(1.0-dt*dt)
	if discriminant <= 0 {
		return core.Vec3{}, false
	}
	refracted := uv.Subtract(n.Multiply(dt)).Multiply(ratio).Subtract(n.Multiply(math.Sqrt(discriminant)))
	return refracted, true
}

// Reflectance calculates the Fresnel reflectance using Schlick's approximation
func Reflectance(cosine, refractiveIndex float64) float64 {
	r0 := (1 - refractiveIndex) / (1 + refractiveIndex)
	r0 = r0 * r0
	return r0 + (1-r0)*math.Pow(1-cosine, 5)
}
