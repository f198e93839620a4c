// Package mathx holds the small linear algebra helpers the solver needs on top of mgl64.
package mathx

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/constraints"
)

// Clamp restricts x to [lo, hi].
func Clamp[T constraints.Float](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// NonNegative clamps x to [0, +inf).
func NonNegative[T constraints.Float](x T) T {
	if x < 0 {
		return 0
	}
	return x
}

func NearZero[T constraints.Float](x, epsilon T) bool {
	return x <= epsilon && x >= -epsilon
}

func ApproxEqual[T constraints.Float](a, b, epsilon T) bool {
	return NearZero(a-b, epsilon)
}

// OrthogonalUnit returns a unit vector perpendicular to v.
// The smallest component of v is dropped, so the result is the same for the same input
// and well conditioned for any nonzero v.
func OrthogonalUnit(v mgl64.Vec3) mgl64.Vec3 {
	x, y, z := v.Elem()
	ax, ay, az := math.Abs(x), math.Abs(y), math.Abs(z)

	switch {
	case ax < ay && ax < az:
		return mgl64.Vec3{0, -z, y}.Mul(1 / math.Sqrt(y*y+z*z))
	case ay < az:
		return mgl64.Vec3{-z, 0, x}.Mul(1 / math.Sqrt(x*x+z*z))
	default:
		return mgl64.Vec3{-y, x, 0}.Mul(1 / math.Sqrt(x*x+y*y))
	}
}

// TangentBasis returns two unit vectors spanning the plane perpendicular to n.
func TangentBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	t1 := OrthogonalUnit(n)
	t2 := n.Cross(t1).Normalize()

	return t1, t2
}

// Mat2FromRows builds a column-major mgl64.Mat2 from its elements in reading order.
func Mat2FromRows(m11, m12, m21, m22 float64) mgl64.Mat2 {
	return mgl64.Mat2{m11, m21, m12, m22}
}

// QuatVector returns the vector (imaginary) part of q.
func QuatVector(q mgl64.Quat) mgl64.Vec3 {
	return q.V
}
