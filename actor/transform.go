package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a position and orientation in 3D space
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:        mgl64.Vec3{0, 0, 0},
		Rotation:        mgl64.QuatIdent(),
		InverseRotation: mgl64.QuatIdent(),
	}
}

// NewTransformAt creates a transform with the given position and rotation
func NewTransformAt(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	t := Transform{Position: position}
	t.SetRotation(rotation)

	return t
}

// SetRotation normalizes and stores the rotation, keeping the inverse in sync
func (t *Transform) SetRotation(rotation mgl64.Quat) {
	t.Rotation = rotation.Normalize()
	t.InverseRotation = t.Rotation.Inverse()
}

// PointToLocal applies the inverse transform to a world-space point
func (t Transform) PointToLocal(point mgl64.Vec3) mgl64.Vec3 {
	return t.inverseRotation().Rotate(point.Sub(t.Position))
}

// PointToWorld maps a local-space point to world space
func (t Transform) PointToWorld(point mgl64.Vec3) mgl64.Vec3 {
	return t.rotation().Rotate(point).Add(t.Position)
}

func (t Transform) VectorToLocal(v mgl64.Vec3) mgl64.Vec3 {
	return t.inverseRotation().Rotate(v)
}

func (t Transform) VectorToWorld(v mgl64.Vec3) mgl64.Vec3 {
	return t.rotation().Rotate(v)
}

// rotation treats the zero quaternion of a literal Transform{} as identity
func (t Transform) rotation() mgl64.Quat {
	if t.Rotation == (mgl64.Quat{}) {
		return mgl64.QuatIdent()
	}
	return t.Rotation
}

func (t Transform) inverseRotation() mgl64.Quat {
	if t.InverseRotation == (mgl64.Quat{}) {
		return t.rotation().Inverse()
	}
	return t.InverseRotation
}
