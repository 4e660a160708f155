package scene

import (
	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// NewDefaultScene creates a default scene with spheres, ground, and camera
func NewDefaultScene(cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	// Default camera configuration
	defaultCameraConfig := geometry.CameraConfig{
		Center:        core.NewVec3(3, 3, 2),
		LookAt:        core.NewVec3(0, 0, -1),
		Up:            core.NewVec3(0, 1, 0),
		Width:         400,
		AspectRatio:   2.0,
		VFov:          20.0,
		Aperture:      2.0, // Strong depth of field blur
		FocusDistance: 0.0, // Auto-calculate focus distance
	}

	// Apply any overrides using the reusable merge function
	cameraConfig := defaultCameraConfig
	if len(cameraOverrides) > 0 {
		cameraConfig = geometry.MergeCameraConfig(defaultCameraConfig, cameraOverrides[0])
	}

	s, err := New("default", cameraConfig, SamplingConfig{SamplesPerPixel: 100, MaxDepth: 50})
	if err != nil {
		return nil, err
	}

	// Create materials
	lambertianBlue := s.AddMaterial(material.NewLambertian(core.NewVec3(0.1, 0.2, 0.5)))
	lambertianGround := s.AddMaterial(material.NewLambertian(core.NewVec3(0.8, 0.8, 0.0)))
	metalGold := s.AddMaterial(material.NewMetal(core.NewVec3(0.8, 0.6, 0.2), 0.0))
	glass := s.AddMaterial(material.NewDielectric(1.5))

	s.Spheres = append(s.Spheres,
		geometry.NewSphere(core.NewVec3(0, 0, -1), 0.5, lambertianBlue),
		geometry.NewSphere(core.NewVec3(0, -100.5, -1), 100, lambertianGround),
		geometry.NewSphere(core.NewVec3(1, 0, -1), 0.5, metalGold),
		// Hollow glass sphere: the negative radius flips the inner shell's normals
		geometry.NewSphere(core.NewVec3(-1, 0, -1), 0.5, glass),
		geometry.NewSphere(core.NewVec3(-1, 0, -1), -0.45, glass),
	)

	return s, nil
}
