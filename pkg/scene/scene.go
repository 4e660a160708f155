package scene

import (
	"errors"
	"fmt"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// ErrUnknownMaterial is returned when a sphere refers to a material the scene does not own
var ErrUnknownMaterial = errors.New("unknown material")

// Scene contains all the elements needed for rendering.
// It is read-only once built and may be shared between render goroutines.
type Scene struct {
	Name           string
	Camera         *geometry.Camera
	CameraConfig   geometry.CameraConfig
	SamplingConfig SamplingConfig
	Materials      *material.Table     // Owns every material
	Spheres        geometry.SphereList // Scanned linearly, in insertion order
}

// SamplingConfig contains rendering configuration
type SamplingConfig struct {
	Width           int // Image width
	Height          int // Image height
	SamplesPerPixel int // Number of rays per pixel
	MaxDepth        int // Maximum ray bounce depth
}

// DefaultSamplingConfig returns the sampling settings used when a scene does not specify any
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		SamplesPerPixel: 100,
		MaxDepth:        50,
	}
}

// New creates an empty scene viewed through a camera built from cameraConfig.
// Zero sampling dimensions are derived from the camera configuration.
func New(name string, cameraConfig geometry.CameraConfig, samplingConfig SamplingConfig) (*Scene, error) {
	camera, err := geometry.NewCamera(cameraConfig)
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", name, err)
	}

	defaults := DefaultSamplingConfig()
	if samplingConfig.Width <= 0 {
		samplingConfig.Width = cameraConfig.Width
	}
	if samplingConfig.Height <= 0 {
		samplingConfig.Height = cameraConfig.ImageHeight()
	}
	if samplingConfig.SamplesPerPixel <= 0 {
		samplingConfig.SamplesPerPixel = defaults.SamplesPerPixel
	}
	if samplingConfig.MaxDepth <= 0 {
		samplingConfig.MaxDepth = defaults.MaxDepth
	}
	if samplingConfig.Width <= 0 || samplingConfig.Height <= 0 {
		return nil, fmt.Errorf("scene %q: image size %dx%d: %w", name, samplingConfig.Width, samplingConfig.Height, geometry.ErrInvalidCamera)
	}

	return &Scene{
		Name:           name,
		Camera:         camera,
		CameraConfig:   cameraConfig,
		SamplingConfig: samplingConfig,
		Materials:      material.NewTable(),
		Spheres:        make(geometry.SphereList, 0),
	}, nil
}

// AddMaterial registers a material and returns its handle
func (s *Scene) AddMaterial(m material.Material) material.Handle {
	return s.Materials.Add(m)
}

// AddSphere appends a sphere using a material previously added to this scene
func (s *Scene) AddSphere(center core.Vec3, radius float64, h material.Handle) error {
	if !s.Materials.Valid(h) {
		return fmt.Errorf("%w: handle %d", ErrUnknownMaterial, h)
	}
	s.Spheres = append(s.Spheres, geometry.NewSphere(center, radius, h))
	return nil
}

// Hit returns the nearest sphere intersection in (tMin, tMax)
func (s *Scene) Hit(ray core.Ray, tMin, tMax float64) (material.HitRecord, bool) {
	return s.Spheres.Hit(ray, tMin, tMax)
}

// Material resolves a handle stored in a hit record
func (s *Scene) Material(h material.Handle) *material.Material {
	return s.Materials.Get(h)
}

// GetPrimitiveCount returns the number of spheres in the scene
func (s *Scene) GetPrimitiveCount() int {
	return len(s.Spheres)
}
