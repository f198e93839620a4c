package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func mat3Equal(a, b mgl64.Mat3, tolerance float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a.At(i, j)-b.At(i, j)) >= tolerance {
				return false
			}
		}
	}
	return true
}

func TestComputeInertia(t *testing.T) {
	tests := []struct {
		name     string
		shape    ShapeInterface
		mass     float64
		expected mgl64.Vec3 // principal moments, off-diagonal terms must be zero
	}{
		// box: (m/12) * (d1² + d2²) with full dimensions
		{name: "cube", shape: &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, mass: 12, expected: mgl64.Vec3{8, 8, 8}},
		{name: "box 4x6x8", shape: &Box{HalfExtents: mgl64.Vec3{2, 3, 4}}, mass: 12, expected: mgl64.Vec3{100, 80, 52}},
		{name: "rail", shape: &Box{HalfExtents: mgl64.Vec3{5, 0.1, 0.1}}, mass: 60, expected: mgl64.Vec3{0.4, 500.2, 500.2}},
		// sphere: (2/5) * m * r²
		{name: "unit sphere", shape: &Sphere{Radius: 1}, mass: 5, expected: mgl64.Vec3{2, 2, 2}},
		{name: "half sphere radius", shape: &Sphere{Radius: 0.5}, mass: 1, expected: mgl64.Vec3{0.1, 0.1, 0.1}},
		{name: "massless sphere", shape: &Sphere{Radius: 3}, mass: 0, expected: mgl64.Vec3{}},
		// planes only ever back static bodies
		{name: "plane", shape: &Plane{Normal: mgl64.Vec3{0, 1, 0}}, mass: 1, expected: mgl64.Vec3{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.shape.ComputeInertia(tt.mass)

			if !mat3Equal(result, mgl64.Diag3(tt.expected), 1e-9) {
				t.Errorf("ComputeInertia(%v) = %v, want diagonal %v", tt.mass, result, tt.expected)
			}
		})
	}
}

func TestComputeMass(t *testing.T) {
	tests := []struct {
		name     string
		shape    ShapeInterface
		density  float64
		expected float64
	}{
		{name: "unit cube", shape: &Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, density: 1, expected: 1},
		{name: "box 2x3x4 density 2", shape: &Box{HalfExtents: mgl64.Vec3{1, 1.5, 2}}, density: 2, expected: 48},
		{name: "unit sphere", shape: &Sphere{Radius: 1}, density: 3, expected: 4 * math.Pi},
		{name: "zero density", shape: &Sphere{Radius: 2}, density: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.shape.ComputeMass(tt.density); !floatEqual(got, tt.expected, 1e-9) {
				t.Errorf("ComputeMass(%v) = %v, want %v", tt.density, got, tt.expected)
			}
		})
	}
}

func TestPlaneComputeMass(t *testing.T) {
	plane := &Plane{Normal: mgl64.Vec3{0, 1, 0}}
	if !math.IsInf(plane.ComputeMass(10), 1) {
		t.Errorf("Plane.ComputeMass() = %v, want +Inf", plane.ComputeMass(10))
	}
}
