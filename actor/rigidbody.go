package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and constraint impulses
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// Their motion is disabled: constraints never apply impulses to them
	BodyTypeStatic
)

type Material struct {
	Density     float64
	mass        float64
	Restitution float64 // 0= no rebound, 1= perfect restitution

	Friction       float64
	LinearDamping  float64 // 0.0 - 1.0, typical: 0.01
	AngularDamping float64 // 0.0 - 1.0, typical: 0.05
}

func (material Material) GetMass() float64 {
	return material.mass
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	Transform Transform

	Velocity        mgl64.Vec3 // Linear velocity (m/s)
	AngularVelocity mgl64.Vec3 // Angular velocity (rad/s)

	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping bool
	SleepTimer float64

	Material Material
	BodyType BodyType // Dynamic or Static

	Shape ShapeInterface
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored for static)
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, density float64) *RigidBody {
	transform.SetRotation(transform.rotation())

	rb := &RigidBody{
		Transform: transform,
		Shape:     shape,
		BodyType:  bodyType,
	}

	if bodyType == BodyTypeStatic {
		rb.Material = Material{mass: math.Inf(1)}
		return rb
	}

	rb.Material = Material{Density: density}
	rb.SetMass(shape.ComputeMass(density))

	return rb
}

// SetMass overrides the mass of a dynamic body and recomputes its inertia from the shape
func (rb *RigidBody) SetMass(mass float64) {
	if rb.BodyType == BodyTypeStatic {
		return
	}

	rb.Material.mass = mass
	rb.SetInertiaLocal(rb.Shape.ComputeInertia(mass))
}

// SetInertiaLocal overrides the local-space inertia tensor of a dynamic body
func (rb *RigidBody) SetInertiaLocal(inertia mgl64.Mat3) {
	if rb.BodyType == BodyTypeStatic {
		return
	}

	rb.InertiaLocal = inertia
	rb.InverseInertiaLocal = inertia.Inv()
}

// IsMotionEnabled reports whether constraint impulses may change the body's velocity
func (rb *RigidBody) IsMotionEnabled() bool {
	return rb.BodyType == BodyTypeDynamic
}

// GetMassInverse returns 1/m, or 0 for bodies that cannot be moved
func (rb *RigidBody) GetMassInverse() float64 {
	mass := rb.Material.GetMass()
	if !rb.IsMotionEnabled() || mass <= 0 || math.IsInf(mass, 1) {
		return 0
	}

	return 1.0 / mass
}

func (rb *RigidBody) TrySleep(dt float64, timethreshold float64, velocityThreshold float64) {
	if rb.BodyType == BodyTypeStatic {
		return
	}

	if rb.Velocity.Len() < velocityThreshold && rb.AngularVelocity.Len() < velocityThreshold {
		rb.SleepTimer += dt
		if rb.SleepTimer >= timethreshold {
			rb.Sleep()
		}
	} else {
		rb.Awake()
	}
}

func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// IntegrateVelocity applies gravity, accumulated forces and damping to the velocities
func (rb *RigidBody) IntegrateVelocity(dt float64, gravity mgl64.Vec3) {
	if !rb.IsMotionEnabled() || rb.IsSleeping {
		return
	}

	invMass := rb.GetMassInverse()

	// v += (g + F/m) * dt
	acceleration := gravity.Add(rb.accumulatedForce.Mul(invMass))
	rb.Velocity = rb.Velocity.Add(acceleration.Mul(dt))
	rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.Material.LinearDamping * dt))

	// w += I^-1 * T * dt
	angularAccel := rb.GetInverseInertiaWorld().Mul3x1(rb.accumulatedTorque)
	rb.AngularVelocity = rb.AngularVelocity.Add(angularAccel.Mul(dt))
	rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.Material.AngularDamping * dt))

	rb.ClearForces()
}

// IntegratePosition advances the transform with the solved velocities
func (rb *RigidBody) IntegratePosition(dt float64) {
	if !rb.IsMotionEnabled() || rb.IsSleeping {
		return
	}

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	// q += 0.5 * (w, 0) * q * dt
	omegaQuat := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.SetRotation(rb.Transform.Rotation.Add(qDot.Scale(dt)))
}

// AddForce in N, applied at the center of mass until the next velocity integration
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.IsMotionEnabled() {
		rb.Awake()

		rb.accumulatedForce = rb.accumulatedForce.Add(force)
	}
}

// AddTorque in N⋅m
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.IsMotionEnabled() {
		rb.Awake()

		rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
	}
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{0, 0, 0}
	rb.accumulatedTorque = mgl64.Vec3{0, 0, 0}
}

// Inertia in world space
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// Inverse inertia in world space, zero when motion is disabled
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if !rb.IsMotionEnabled() {
		return mgl64.Mat3{}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}
