package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/integrator"
	"github.com/df07/go-sphere-tracer/pkg/material"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

// InspectResponse represents the JSON response for object inspection
type InspectResponse struct {
	Hit          bool                   `json:"hit"`
	MaterialType string                 `json:"materialType,omitempty"`
	SphereIndex  int                    `json:"sphereIndex"`
	Point        [3]float64             `json:"point"`
	Normal       [3]float64             `json:"normal"`
	Distance     float64                `json:"distance"`
	FrontFace    bool                   `json:"frontFace"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
}

// centerSampler always returns the middle of the sample domain, which puts primary rays
// through the pixel center and the lens center.
type centerSampler struct{}

func (centerSampler) Get1D() float64 { return 0.5 }
func (centerSampler) Get2D() core.Vec2 { return core.NewVec2(0.5, 0.5) }
func (centerSampler) Get3D() core.Vec3 { return core.NewVec3(0.5, 0.5, 0.5) }

// extractMaterialInfo describes a material for the inspector
func extractMaterialInfo(mat *material.Material) (string, map[string]interface{}) {
	properties := make(map[string]interface{})

	switch mat.Kind {
	case material.KindLambertian, material.KindMetal:
		properties["albedo"] = vecArray(mat.Albedo)
		properties["color"] = fmt.Sprintf("#%02x%02x%02x",
			int(mat.Albedo.X*255), int(mat.Albedo.Y*255), int(mat.Albedo.Z*255))
		if mat.Kind == material.KindMetal {
			properties["fuzz"] = mat.Fuzz
		}
	case material.KindDielectric:
		properties["refractiveIndex"] = mat.RefractiveIndex
	}

	return mat.Kind.String(), properties
}

// inspectPixel casts the primary ray through the center of pixel (x, y), with y=0 the top row,
// and reports the nearest sphere it hits
func inspectPixel(s *scene.Scene, x, y int) InspectResponse {
	width, height := s.SamplingConfig.Width, s.SamplingConfig.Height
	u := (float64(x) + 0.5) / float64(width)
	v := (float64(height-1-y) + 0.5) / float64(height)
	ray := s.Camera.GetRay(u, v, centerSampler{})

	hit, ok := s.Hit(ray, integrator.ShadowAcneEpsilon, math.Inf(1))
	if !ok {
		return InspectResponse{Hit: false, SphereIndex: -1}
	}

	index := findSphere(s.Spheres, ray, hit)
	materialType, materialProps := extractMaterialInfo(s.Material(hit.Material))

	geometryProps := map[string]interface{}{}
	if index >= 0 {
		sphere := s.Spheres[index]
		geometryProps["center"] = vecArray(sphere.Center)
		geometryProps["radius"] = sphere.Radius
	}

	return InspectResponse{
		Hit:          true,
		MaterialType: materialType,
		SphereIndex:  index,
		Point:        vecArray(hit.Point),
		Normal:       vecArray(hit.Normal),
		Distance:     hit.T,
		FrontFace:    ray.Direction.Dot(hit.Normal) < 0,
		Properties: map[string]interface{}{
			"material": materialProps,
			"geometry": geometryProps,
		},
	}
}

// findSphere returns the index of the sphere that produced hit, or -1.
// Ties go to the last sphere, matching the nearest-hit scan.
func findSphere(spheres geometry.SphereList, ray core.Ray, hit material.HitRecord) int {
	index := -1
	for i, sphere := range spheres {
		if h, ok := sphere.Hit(ray, integrator.ShadowAcneEpsilon, math.Inf(1)); ok && h.T == hit.T {
			index = i
		}
	}
	return index
}

// handleInspect handles ray casting inspection requests
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	sceneName := query.Get("scene")
	if sceneName == "" {
		sceneName = defaultScene
	}
	width, err := parseIntParam(query, "width", 0, minWidth, maxWidth)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	pixelX, err := strconv.Atoi(query.Get("x"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid x coordinate"})
		return
	}
	pixelY, err := strconv.Atoi(query.Get("y"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid y coordinate"})
		return
	}

	sceneObj, err := s.loadScene(sceneName, width)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if pixelX < 0 || pixelX >= sceneObj.SamplingConfig.Width || pixelY < 0 || pixelY >= sceneObj.SamplingConfig.Height {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Pixel coordinates out of bounds"})
		return
	}

	writeJSON(w, http.StatusOK, inspectPixel(sceneObj, pixelX, pixelY))
}
