package integrator

import (
	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// World is the read-only view of a scene needed to trace rays
type World interface {
	Hit(ray core.Ray, tMin, tMax float64) (material.HitRecord, bool)
	Material(h material.Handle) *material.Material
}

// Integrator defines the interface for light transport algorithms
type Integrator interface {
	// RayColor computes the linear color carried back along a primary ray
	RayColor(ray core.Ray, world World, sampler core.Sampler) core.Vec3
}
