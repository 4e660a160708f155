package scene

import (
	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// NewTwoSpheresScene creates a grey diffuse sphere resting on a huge grey ground sphere,
// seen through a pinhole camera at the origin looking down -z
func NewTwoSpheresScene(cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	cameraConfig := geometry.CameraConfig{
		Center:      core.NewVec3(0, 0, 0),
		LookAt:      core.NewVec3(0, 0, -1),
		Up:          core.NewVec3(0, 1, 0),
		Width:       200,
		AspectRatio: 2.0,
		VFov:        90.0, // lower left corner at (-2,-1,-1)
		Aperture:    0.0,
	}
	if len(cameraOverrides) > 0 {
		cameraConfig = geometry.MergeCameraConfig(cameraConfig, cameraOverrides[0])
	}

	s, err := New("two-spheres", cameraConfig, SamplingConfig{SamplesPerPixel: 100, MaxDepth: 50})
	if err != nil {
		return nil, err
	}

	grey := s.AddMaterial(material.NewLambertian(core.NewVec3(0.8, 0.8, 0.8)))
	s.Spheres = append(s.Spheres,
		geometry.NewSphere(core.NewVec3(0, 0, -1), 0.5, grey),
		geometry.NewSphere(core.NewVec3(0, -100.5, -1), 100, grey),
	)

	return s, nil
}
