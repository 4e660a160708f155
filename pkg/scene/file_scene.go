package scene

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/loaders"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// NewFileScene creates a scene from a JSON scene file
func NewFileScene(path string, cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	sceneFile, err := loaders.LoadSceneJSON(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene file: %w", err)
	}

	name := sceneFile.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return FromSceneFile(name, sceneFile, cameraOverrides...)
}

// FromSceneFile converts a parsed scene file into a renderable scene
func FromSceneFile(name string, sceneFile *loaders.SceneFile, cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	cameraConfig, err := sceneFile.Camera.CameraConfig()
	if err != nil {
		return nil, err
	}
	if len(cameraOverrides) > 0 {
		cameraConfig = geometry.MergeCameraConfig(cameraConfig, cameraOverrides[0])
	}

	s, err := New(name, cameraConfig, SamplingConfig{
		SamplesPerPixel: sceneFile.Sampling.SamplesPerPixel,
		MaxDepth:        sceneFile.Sampling.MaxDepth,
	})
	if err != nil {
		return nil, err
	}

	// Convert all materials first
	handles := make(map[string]material.Handle, len(sceneFile.Materials))
	for _, params := range sceneFile.Materials {
		m, err := params.Material()
		if err != nil {
			return nil, err
		}
		handles[params.Name] = s.AddMaterial(m)
	}

	for i, sphereParams := range sceneFile.Spheres {
		h, ok := handles[sphereParams.Material]
		if !ok {
			return nil, fmt.Errorf("%w: sphere %d uses unknown material %q", loaders.ErrInvalidScene, i, sphereParams.Material)
		}
		if len(sphereParams.Center) != 3 {
			return nil, fmt.Errorf("%w: sphere %d center", loaders.ErrInvalidScene, i)
		}
		c := sphereParams.Center
		if err := s.AddSphere(core.NewVec3(c[0], c[1], c[2]), sphereParams.Radius, h); err != nil {
			return nil, err
		}
	}

	return s, nil
}
