package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// ErrInvalidCamera is returned by NewCamera for unusable parameters
var ErrInvalidCamera = errors.New("invalid camera")

// CameraConfig contains the user-facing camera parameters
type CameraConfig struct {
	Center        core.Vec3 // Camera position (look-from)
	LookAt        core.Vec3 // Point the camera looks at
	Up            core.Vec3 // Up direction
	Width         int       // Image width in pixels
	AspectRatio   float64   // Width / height
	VFov          float64   // Vertical field of view in degrees
	Aperture      float64   // Lens diameter, 0 for a pinhole camera
	FocusDistance float64   // Distance to the plane in focus, 0 = distance to LookAt

	// Explicit marks fields that MergeCameraConfig applies even when they are zero
	Explicit CameraFields
}

// CameraFields is a set of CameraConfig fields
type CameraFields uint16

const (
	FieldCenter CameraFields = 1 << iota
	FieldLookAt
	FieldUp
	FieldWidth
	FieldAspectRatio
	FieldVFov
	FieldAperture
	FieldFocusDistance
)

// ImageHeight returns the image height implied by Width and AspectRatio
func (c CameraConfig) ImageHeight() int {
	if c.AspectRatio <= 0 {
		return 0
	}
	return max(1, int(float64(c.Width)/c.AspectRatio))
}

// MergeCameraConfig returns base with every non-zero field of override applied on top.
// Zero fields of override are applied too when they are marked in override.Explicit,
// so an override can select a pinhole camera or place the camera at the origin.
func MergeCameraConfig(base, override CameraConfig) CameraConfig {
	result := base
	set := func(field CameraFields, nonZero bool) bool {
		return nonZero || override.Explicit&field != 0
	}
	if set(FieldCenter, !override.Center.IsZero()) {
		result.Center = override.Center
	}
	if set(FieldLookAt, !override.LookAt.IsZero()) {
		result.LookAt = override.LookAt
	}
	if set(FieldUp, !override.Up.IsZero()) {
		result.Up = override.Up
	}
	if set(FieldWidth, override.Width != 0) {
		result.Width = override.Width
	}
	if set(FieldAspectRatio, override.AspectRatio != 0) {
		result.AspectRatio = override.AspectRatio
	}
	if set(FieldVFov, override.VFov != 0) {
		result.VFov = override.VFov
	}
	if set(FieldAperture, override.Aperture != 0) {
		result.Aperture = override.Aperture
	}
	if set(FieldFocusDistance, override.FocusDistance != 0) {
		result.FocusDistance = override.FocusDistance
	}
	result.Explicit = base.Explicit
	return result
}

// Camera generates primary rays. It is immutable once built and safe to share between goroutines.
type Camera struct {
	origin          core.Vec3
	lowerLeftCorner core.Vec3
	horizontal      core.Vec3
	vertical        core.Vec3
	u, v, w         core.Vec3 // Orthonormal camera basis
	lensRadius      float64
}

// NewCamera builds a camera from the given configuration
func NewCamera(config CameraConfig) (*Camera, error) {
	if err := validateCameraConfig(config); err != nil {
		return nil, err
	}

	focusDistance := config.FocusDistance
	if focusDistance == 0 {
		focusDistance = config.Center.Subtract(config.LookAt).Length()
	}

	theta := config.VFov * math.Pi / 180.0
	halfHeight := math.Tan(theta / 2)
	halfWidth := config.AspectRatio * halfHeight

	w := config.Center.Subtract(config.LookAt).Normalize()
	u := config.Up.Cross(w).Normalize()
	v := w.Cross(u)

	origin := config.Center
	lowerLeftCorner := origin.
		Subtract(u.Multiply(halfWidth * focusDistance)).
		Subtract(v.Multiply(halfHeight * focusDistance)).
		Subtract(w.Multiply(focusDistance))

	return &Camera{
		origin:          origin,
		lowerLeftCorner: lowerLeftCorner,
		horizontal:      u.Multiply(2 * halfWidth * focusDistance),
		vertical:        v.Multiply(2 * halfHeight * focusDistance),
		u:               u,
		v:               v,
		w:               w,
		lensRadius:      config.Aperture / 2,
	}, nil
}

func validateCameraConfig(config CameraConfig) error {
	switch {
	case !(config.VFov > 0 && config.VFov < 180):
		return fmt.Errorf("%w: vertical field of view must be in (0, 180), got %g", ErrInvalidCamera, config.VFov)
	case !(config.AspectRatio > 0):
		return fmt.Errorf("%w: aspect ratio must be positive, got %g", ErrInvalidCamera, config.AspectRatio)
	case config.Aperture < 0:
		return fmt.Errorf("%w: aperture must not be negative, got %g", ErrInvalidCamera, config.Aperture)
	case config.FocusDistance < 0:
		return fmt.Errorf("%w: focus distance must not be negative, got %g", ErrInvalidCamera, config.FocusDistance)
	}

	view := config.Center.Subtract(config.LookAt)
	if view.LengthSquared() == 0 {
		return fmt.Errorf("%w: look-from and look-at are the same point %v", ErrInvalidCamera, config.Center)
	}
	if config.Up.Cross(view).LengthSquared() == 0 {
		return fmt.Errorf("%w: up vector %v is parallel to the view direction", ErrInvalidCamera, config.Up)
	}
	return nil
}

// GetRay generates a ray for image-plane coordinates (s, t) where 0 <= s,t <= 1 and
// (0,0) is the lower-left corner. With a zero aperture no random numbers are drawn.
func (c *Camera) GetRay(s, t float64, sampler core.Sampler) core.Ray {
	offset := core.Vec3{}
	if c.lensRadius > 0 {
		rd := core.RandomInUnitDisk(sampler).Multiply(c.lensRadius)
		offset = c.u.Multiply(rd.X).Add(c.v.Multiply(rd.Y))
	}

	direction := c.lowerLeftCorner.
		Add(c.horizontal.Multiply(s)).
		Add(c.vertical.Multiply(t)).
		Subtract(c.origin).
		Subtract(offset)

	return core.NewRay(c.origin.Add(offset), direction)
}

// Forward returns the unit view direction
func (c *Camera) Forward() core.Vec3 {
	return c.w.Negate()
}

// LensRadius returns half the aperture
func (c *Camera) LensRadius() float64 {
	return c.lensRadius
}
