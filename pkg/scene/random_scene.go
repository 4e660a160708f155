package scene

import (
	"math/rand"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// DefaultRandomSceneSeed is the seed used when the random scene is loaded by name
const DefaultRandomSceneSeed = 42

// NewRandomScene creates a field of small random spheres around three large feature spheres.
// The same seed always produces the same layout.
func NewRandomScene(seed int64, cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	cameraConfig := geometry.CameraConfig{
		Center:        core.NewVec3(13, 2, 3),
		LookAt:        core.NewVec3(0, 0, 0),
		Up:            core.NewVec3(0, 1, 0),
		Width:         600,
		AspectRatio:   3.0 / 2.0,
		VFov:          20.0,
		Aperture:      0.1,
		FocusDistance: 10.0,
	}
	if len(cameraOverrides) > 0 {
		cameraConfig = geometry.MergeCameraConfig(cameraConfig, cameraOverrides[0])
	}

	s, err := New("random", cameraConfig, SamplingConfig{SamplesPerPixel: 100, MaxDepth: 50})
	if err != nil {
		return nil, err
	}

	random := rand.New(rand.NewSource(seed))

	ground := s.AddMaterial(material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5)))
	s.Spheres = append(s.Spheres, geometry.NewSphere(core.NewVec3(0, -1000, 0), 1000, ground))

	// Small spheres share one glass material; diffuse and metal ones get their own
	glass := s.AddMaterial(material.NewDielectric(1.5))
	clearing := core.NewVec3(4, 0.2, 0)

	for a := -11; a < 11; a++ {
		for b := -11; b < 11; b++ {
			chooseMaterial := random.Float64()
			center := core.NewVec3(float64(a)+0.9*random.Float64(), 0.2, float64(b)+0.9*random.Float64())
			if center.Subtract(clearing).Length() <= 0.9 {
				continue
			}

			var h material.Handle
			switch {
			case chooseMaterial < 0.8:
				albedo := core.NewVec3(
					random.Float64()*random.Float64(),
					random.Float64()*random.Float64(),
					random.Float64()*random.Float64(),
				)
				h = s.AddMaterial(material.NewLambertian(albedo))
			case chooseMaterial < 0.95:
				albedo := core.NewVec3(
					0.5*(1+random.Float64()),
					0.5*(1+random.Float64()),
					0.5*(1+random.Float64()),
				)
				h = s.AddMaterial(material.NewMetal(albedo, 0.5*random.Float64()))
			default:
				h = glass
			}
			s.Spheres = append(s.Spheres, geometry.NewSphere(center, 0.2, h))
		}
	}

	s.Spheres = append(s.Spheres,
		geometry.NewSphere(core.NewVec3(0, 1, 0), 1.0, glass),
		geometry.NewSphere(core.NewVec3(-4, 1, 0), 1.0, s.AddMaterial(material.NewLambertian(core.NewVec3(0.4, 0.2, 0.1)))),
		geometry.NewSphere(core.NewVec3(4, 1, 0), 1.0, s.AddMaterial(material.NewMetal(core.NewVec3(0.7, 0.6, 0.5), 0.0))),
	)

	return s, nil
}
