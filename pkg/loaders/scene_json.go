package loaders

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// ErrInvalidScene is wrapped by every validation failure of a scene file
var ErrInvalidScene = errors.New("invalid scene")

// SceneFile is the on-disk JSON description of a sphere scene
type SceneFile struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Camera      CameraParams     `json:"camera"`
	Sampling    SamplingParams   `json:"sampling"`
	Materials   []MaterialParams `json:"materials"`
	Spheres     []SphereParams   `json:"spheres"`
}

// CameraParams mirrors geometry.CameraConfig with vectors written as [x, y, z]
type CameraParams struct {
	LookFrom      []float64 `json:"lookFrom"`
	LookAt        []float64 `json:"lookAt"`
	Up            []float64 `json:"up,omitempty"`
	Width         int       `json:"width"`
	AspectRatio   float64   `json:"aspectRatio"`
	VFov          float64   `json:"vfov"`
	Aperture      float64   `json:"aperture,omitempty"`
	FocusDistance float64   `json:"focusDistance,omitempty"`
}

// SamplingParams holds the optional render settings of a scene file
type SamplingParams struct {
	SamplesPerPixel int `json:"samplesPerPixel,omitempty"`
	MaxDepth        int `json:"maxDepth,omitempty"`
}

// MaterialParams describes one named material
type MaterialParams struct {
	Name            string    `json:"name"`
	Type            string    `json:"type"` // "lambertian", "metal" or "dielectric"
	Albedo          []float64 `json:"albedo,omitempty"`
	Fuzz            float64   `json:"fuzz,omitempty"`
	RefractiveIndex float64   `json:"refractiveIndex,omitempty"`
}

// SphereParams places a sphere that uses a named material
type SphereParams struct {
	Center   []float64 `json:"center"`
	Radius   float64   `json:"radius"`
	Material string    `json:"material"`
}

// ParseSceneJSON decodes and validates a scene description
func ParseSceneJSON(reader io.Reader) (*SceneFile, error) {
	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()

	var sceneFile SceneFile
	if err := decoder.Decode(&sceneFile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}

	if err := sceneFile.Validate(); err != nil {
		return nil, err
	}
	return &sceneFile, nil
}

// LoadSceneJSON loads and parses a scene file from disk
func LoadSceneJSON(filename string) (*SceneFile, error) {
	if err := validateFilePath(filename); err != nil {
		return nil, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene file: %w", err)
	}
	defer file.Close()

	sceneFile, err := ParseSceneJSON(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return sceneFile, nil
}

// Validate checks every material and sphere reference
func (f *SceneFile) Validate() error {
	if _, err := f.Camera.CameraConfig(); err != nil {
		return err
	}
	if f.Sampling.SamplesPerPixel < 0 || f.Sampling.MaxDepth < 0 {
		return fmt.Errorf("%w: sampling values must not be negative", ErrInvalidScene)
	}

	names := make(map[string]bool, len(f.Materials))
	for i, m := range f.Materials {
		if m.Name == "" {
			return fmt.Errorf("%w: material %d has no name", ErrInvalidScene, i)
		}
		if names[m.Name] {
			return fmt.Errorf("%w: duplicate material %q", ErrInvalidScene, m.Name)
		}
		if _, err := m.Material(); err != nil {
			return err
		}
		names[m.Name] = true
	}

	for i, s := range f.Spheres {
		if !names[s.Material] {
			return fmt.Errorf("%w: sphere %d uses unknown material %q", ErrInvalidScene, i, s.Material)
		}
		if _, err := parseVec3(s.Center, "center"); err != nil {
			return fmt.Errorf("sphere %d: %w", i, err)
		}
	}
	return nil
}

// CameraConfig converts the camera parameters. A missing up vector defaults to +Y.
func (c CameraParams) CameraConfig() (geometry.CameraConfig, error) {
	lookFrom, err := parseVec3(c.LookFrom, "lookFrom")
	if err != nil {
		return geometry.CameraConfig{}, fmt.Errorf("camera: %w", err)
	}
	lookAt, err := parseVec3(c.LookAt, "lookAt")
	if err != nil {
		return geometry.CameraConfig{}, fmt.Errorf("camera: %w", err)
	}
	up := core.NewVec3(0, 1, 0)
	if c.Up != nil {
		if up, err = parseVec3(c.Up, "up"); err != nil {
			return geometry.CameraConfig{}, fmt.Errorf("camera: %w", err)
		}
	}
	if c.Width <= 0 {
		return geometry.CameraConfig{}, fmt.Errorf("%w: camera width must be positive", ErrInvalidScene)
	}

	return geometry.CameraConfig{
		Center:        lookFrom,
		LookAt:        lookAt,
		Up:            up,
		Width:         c.Width,
		AspectRatio:   c.AspectRatio,
		VFov:          c.VFov,
		Aperture:      c.Aperture,
		FocusDistance: c.FocusDistance,
	}, nil
}

// Material converts the descriptor into a material value
func (m MaterialParams) Material() (material.Material, error) {
	switch strings.ToLower(m.Type) {
	case "lambertian":
		albedo, err := parseAlbedo(m)
		if err != nil {
			return material.Material{}, err
		}
		return material.NewLambertian(albedo), nil
	case "metal":
		albedo, err := parseAlbedo(m)
		if err != nil {
			return material.Material{}, err
		}
		return material.NewMetal(albedo, m.Fuzz), nil
	case "dielectric":
		if m.RefractiveIndex <= 0 {
			return material.Material{}, fmt.Errorf("%w: material %q needs a positive refractiveIndex", ErrInvalidScene, m.Name)
		}
		return material.NewDielectric(m.RefractiveIndex), nil
	default:
		return material.Material{}, fmt.Errorf("%w: material %q has unknown type %q", ErrInvalidScene, m.Name, m.Type)
	}
}

func parseAlbedo(m MaterialParams) (core.Vec3, error) {
	albedo, err := parseVec3(m.Albedo, "albedo")
	if err != nil {
		return core.Vec3{}, fmt.Errorf("material %q: %w", m.Name, err)
	}
	if albedo.Clamp(0, 1) != albedo {
		return core.Vec3{}, fmt.Errorf("%w: material %q albedo %v outside [0,1]", ErrInvalidScene, m.Name, m.Albedo)
	}
	return albedo, nil
}

func parseVec3(values []float64, field string) (core.Vec3, error) {
	if len(values) != 3 {
		return core.Vec3{}, fmt.Errorf("%w: %s needs 3 components, got %d", ErrInvalidScene, field, len(values))
	}
	return core.NewVec3(values[0], values[1], values[2]), nil
}

// validateFilePath rejects paths that cannot be scene files
func validateFilePath(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	// Check for null bytes (could indicate path manipulation)
	if strings.Contains(filename, "\x00") {
		return fmt.Errorf("invalid file path: null bytes not allowed")
	}

	cleanPath := filepath.Clean(filename)
	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return fmt.Errorf("invalid file type: only .json files are allowed")
	}
	if len(cleanPath) > 512 {
		return fmt.Errorf("file path too long: maximum 512 characters allowed")
	}

	return nil
}
