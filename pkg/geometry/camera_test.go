package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// countingSampler wraps a sampler and counts draws
type countingSampler struct {
	core.Sampler
	draws int
}

func (c *countingSampler) Get1D() float64 { c.draws++; return c.Sampler.Get1D() }
func (c *countingSampler) Get2D() core.Vec2 {
	c.draws += 2
	return c.Sampler.Get2D()
}
func (c *countingSampler) Get3D() core.Vec3 {
	c.draws += 3
	return c.Sampler.Get3D()
}

func pinholeConfig() CameraConfig {
	return CameraConfig{
		Center:        core.NewVec3(0, 0, 0),
		LookAt:        core.NewVec3(0, 0, -1),
		Up:            core.NewVec3(0, 1, 0),
		Width:         200,
		AspectRatio:   2.0,
		VFov:          90.0,
		Aperture:      0.0,
		FocusDistance: 1.0,
	}
}

func TestCamera_PinholeMatchesClassicViewport(t *testing.T) {
	camera, err := NewCamera(pinholeConfig())
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}

	// vfov 90 and aspect 2 give the classic (-2,-1,-1) lower-left, 4x2 viewport
	tests := []struct {
		s, t     float64
		expected core.Vec3
	}{
		{0, 0, core.NewVec3(-2, -1, -1)},
		{1, 1, core.NewVec3(2, 1, -1)},
		{0.5, 0.5, core.NewVec3(0, 0, -1)},
		{0.25, 0.75, core.NewVec3(-1, 0.5, -1)},
	}

	for _, tt := range tests {
		ray := camera.GetRay(tt.s, tt.t, core.NewSeededSampler(1))
		if !ray.Origin.IsZero() {
			t.Errorf("Expected pinhole origin, got %v", ray.Origin)
		}
		if ray.Direction.Subtract(tt.expected).Length() > 1e-9 {
			t.Errorf("GetRay(%f,%f): expected direction %v, got %v", tt.s, tt.t, tt.expected, ray.Direction)
		}
	}
}

func TestCamera_ZeroApertureIsDeterministic(t *testing.T) {
	config := pinholeConfig()
	config.Center = core.NewVec3(1, 2, 3)
	config.LookAt = core.NewVec3(0, 0, -1)
	config.FocusDistance = 0
	camera, err := NewCamera(config)
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}

	sampler := &countingSampler{Sampler: core.NewSeededSampler(42)}
	for _, st := range [][2]float64{{0, 0}, {0.3, 0.9}, {1, 1}} {
		first := camera.GetRay(st[0], st[1], sampler)
		second := camera.GetRay(st[0], st[1], sampler)
		if first != second {
			t.Errorf("Expected identical rays, got %v and %v", first, second)
		}
		if first.Origin != config.Center {
			t.Errorf("Expected origin %v, got %v", config.Center, first.Origin)
		}
	}
	if sampler.draws != 0 {
		t.Errorf("Pinhole camera drew %d random numbers", sampler.draws)
	}
}

func TestCamera_DepthOfFieldConvergesOnFocusPlane(t *testing.T) {
	config := pinholeConfig()
	config.Aperture = 2.0
	config.FocusDistance = 3.0
	camera, err := NewCamera(config)
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}

	pinholeCfg := config
	pinholeCfg.Aperture = 0
	pinhole, _ := NewCamera(pinholeCfg)

	sampler := core.NewSeededSampler(42)
	expected := pinhole.GetRay(0.3, 0.6, sampler).At(1)
	sawOffset := false
	for i := 0; i < 100; i++ {
		ray := camera.GetRay(0.3, 0.6, sampler)
		offset := ray.Origin.Subtract(config.Center)
		if offset.Length() > camera.LensRadius()+1e-12 {
			t.Fatalf("Lens offset %v exceeds lens radius %f", offset, camera.LensRadius())
		}
		if math.Abs(offset.Dot(camera.Forward())) > 1e-12 {
			t.Fatalf("Lens offset %v is not in the lens plane", offset)
		}
		if !offset.IsZero() {
			sawOffset = true
		}
		// Every lens sample aims at the same point on the focus plane
		if ray.At(1).Subtract(expected).Length() > 1e-9 {
			t.Fatalf("Expected focus point %v, got %v", expected, ray.At(1))
		}
	}
	if !sawOffset {
		t.Error("Expected non-zero lens offsets with a finite aperture")
	}
}

func TestCamera_Basis(t *testing.T) {
	config := pinholeConfig()
	config.Center = core.NewVec3(3, 3, 2)
	config.LookAt = core.NewVec3(0, 0, -1)
	camera, err := NewCamera(config)
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}

	expected := config.LookAt.Subtract(config.Center).Normalize()
	if camera.Forward().Subtract(expected).Length() > 1e-9 {
		t.Errorf("Expected forward %v, got %v", expected, camera.Forward())
	}
	if math.Abs(camera.u.Dot(camera.v)) > 1e-12 || math.Abs(camera.u.Dot(camera.w)) > 1e-12 {
		t.Error("Camera basis is not orthogonal")
	}
}

func TestNewCamera_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*CameraConfig)
	}{
		{"zero fov", func(c *CameraConfig) { c.VFov = 0 }},
		{"fov 180", func(c *CameraConfig) { c.VFov = 180 }},
		{"negative aspect", func(c *CameraConfig) { c.AspectRatio = -1 }},
		{"negative aperture", func(c *CameraConfig) { c.Aperture = -0.1 }},
		{"negative focus distance", func(c *CameraConfig) { c.FocusDistance = -1 }},
		{"look-from equals look-at", func(c *CameraConfig) { c.LookAt = c.Center }},
		{"up parallel to view", func(c *CameraConfig) { c.Up = core.NewVec3(0, 0, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := pinholeConfig()
			tt.modify(&config)
			camera, err := NewCamera(config)
			if !errors.Is(err, ErrInvalidCamera) {
				t.Errorf("Expected ErrInvalidCamera, got %v", err)
			}
			if camera != nil {
				t.Error("Expected nil camera on error")
			}
		})
	}
}

func TestMergeCameraConfig(t *testing.T) {
	base := pinholeConfig()
	merged := MergeCameraConfig(base, CameraConfig{Width: 800, Aperture: 0.1})

	if merged.Width != 800 || merged.Aperture != 0.1 {
		t.Errorf("Overrides not applied: %+v", merged)
	}
	if merged.VFov != base.VFov || merged.Center != base.Center {
		t.Errorf("Zero override fields should keep base values: %+v", merged)
	}
	if merged.ImageHeight() != 400 {
		t.Errorf("Expected height 400, got %d", merged.ImageHeight())
	}
}

func TestMergeCameraConfig_ExplicitZeroFields(t *testing.T) {
	base := pinholeConfig()
	base.Center = core.NewVec3(3, 3, 2)
	base.Aperture = 2.0

	// Unmarked zero fields keep the base values
	kept := MergeCameraConfig(base, CameraConfig{Width: 64})
	if kept.Aperture != 2.0 || kept.Center != base.Center {
		t.Errorf("Expected base aperture and center, got %+v", kept)
	}

	forced := MergeCameraConfig(base, CameraConfig{Width: 64, Explicit: FieldAperture | FieldCenter})
	if forced.Aperture != 0 || !forced.Center.IsZero() {
		t.Errorf("Expected a pinhole camera at the origin, got %+v", forced)
	}
	if forced.Width != 64 || forced.LookAt != base.LookAt || forced.VFov != base.VFov {
		t.Errorf("Unmarked fields changed: %+v", forced)
	}

	camera, err := NewCamera(forced)
	if err != nil {
		t.Fatalf("NewCamera failed: %v", err)
	}
	if camera.LensRadius() != 0 {
		t.Errorf("Expected pinhole lens, got radius %f", camera.LensRadius())
	}
	ray := camera.GetRay(0.5, 0.5, nil)
	if !ray.Origin.IsZero() {
		t.Errorf("Expected rays from the origin, got %v", ray.Origin)
	}
}
