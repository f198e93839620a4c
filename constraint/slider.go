package constraint

import (
	"fmt"
	"math"

	"github.com/akmonengine/piston/actor"
	"github.com/akmonengine/piston/mathx"
	"github.com/go-gl/mathgl/mgl64"
)

// degenerateAxisLength is the shortest slider axis accepted at construction
const degenerateAxisLength = 1e-10

// SliderJointInfo describes a slider joint in world space at construction time
type SliderJointInfo struct {
	Body1 *actor.RigidBody
	Body2 *actor.RigidBody

	AnchorPointWorld mgl64.Vec3
	SliderAxisWorld  mgl64.Vec3

	IsLimitsActive bool
	LowerLimit     float64 // <= 0
	UpperLimit     float64 // >= 0

	IsMotorActive bool
	MotorSpeed    float64 // target relative speed of body 2 along the axis (m/s)
	MaxMotorForce float64 // N
}

// SliderJoint (prismatic joint) only lets body 2 translate relative to body 1 along
// an axis fixed in body 1. Relative rotation is locked to the orientation at
// construction, translation can be bounded by limits and driven by a motor.
//
// Constraint rows, with u = x2 + r2 - x1 - r1:
//
//	translation (2): C = [u·n1, u·n2]          J = [-n, -(r1+u)×n, n, r2×n]
//	rotation (3):    C = 2·vec(q2 q1⁻¹ q0⁻¹)   J = [0, -I, 0, I]
//	lower limit:     C = u·a - lower >= 0      J = [-a, -(r1+u)×a, a, r2×a]
//	upper limit:     C = upper - u·a >= 0      J = -J(lower)
//	motor:           Cdot = speed              J = J(lower)
type SliderJoint struct {
	Joint

	localAnchorBody1          mgl64.Vec3
	localAnchorBody2          mgl64.Vec3
	sliderAxisBody1           mgl64.Vec3
	initOrientationDifference mgl64.Quat

	isLimitsActive bool
	lowerLimit     float64
	upperLimit     float64

	isMotorActive bool
	motorSpeed    float64
	maxMotorForce float64

	// Accumulated impulses, carried from one step to the next
	impulseTranslation mgl64.Vec2
	impulseRotation    mgl64.Vec3
	impulseLowerLimit  float64
	impulseUpperLimit  float64
	impulseMotor       float64

	// Solver temp, recomputed by InitBeforeSolve
	invMass1, invMass2 float64
	invI1, invI2       mgl64.Mat3

	r1, r2          mgl64.Vec3
	sliderAxisWorld mgl64.Vec3
	n1, n2          mgl64.Vec3

	r2CrossN1              mgl64.Vec3
	r2CrossN2              mgl64.Vec3
	r2CrossSliderAxis      mgl64.Vec3
	r1PlusUCrossN1         mgl64.Vec3
	r1PlusUCrossN2         mgl64.Vec3
	r1PlusUCrossSliderAxis mgl64.Vec3

	inverseMassMatrixTranslation mgl64.Mat2
	inverseMassMatrixRotation    mgl64.Mat3
	inverseMassMatrixAxis        float64

	biasTranslation mgl64.Vec2
	biasRotation    mgl64.Vec3
	biasLowerLimit  float64
	biasUpperLimit  float64

	isLowerLimitViolated bool
	isUpperLimitViolated bool

	// motor impulse bound of the last solve
	maxMotorImpulse float64
}

// NewSliderJoint builds the joint from the current transforms of both bodies
func NewSliderJoint(info SliderJointInfo) (*SliderJoint, error) {
	joint, err := newJoint(info.Body1, info.Body2)
	if err != nil {
		return nil, fmt.Errorf("slider joint: %w", err)
	}
	if err := validateLimits(info.LowerLimit, info.UpperLimit); err != nil {
		return nil, fmt.Errorf("slider joint: %w", err)
	}
	if mathx.NearZero(info.SliderAxisWorld.Len(), degenerateAxisLength) {
		return nil, fmt.Errorf("slider joint: %w", ErrDegenerateAxis)
	}
	if info.MaxMotorForce < 0 {
		return nil, fmt.Errorf("slider joint: max motor force %v is negative", info.MaxMotorForce)
	}

	transform1 := info.Body1.Transform
	transform2 := info.Body2.Transform

	j := &SliderJoint{
		Joint:            joint,
		localAnchorBody1: transform1.PointToLocal(info.AnchorPointWorld),
		localAnchorBody2: transform2.PointToLocal(info.AnchorPointWorld),
		sliderAxisBody1:  transform1.VectorToLocal(info.SliderAxisWorld).Normalize(),
		isLimitsActive:   info.IsLimitsActive,
		lowerLimit:       info.LowerLimit,
		upperLimit:       info.UpperLimit,
		isMotorActive:    info.IsMotorActive,
		motorSpeed:       info.MotorSpeed,
		maxMotorForce:    info.MaxMotorForce,
	}

	j.initOrientationDifference = orientationDifference(transform1.Rotation, transform2.Rotation)

	return j, nil
}

// MustNewSliderJoint is like NewSliderJoint but panics on a misconfigured joint
func MustNewSliderJoint(info SliderJointInfo) *SliderJoint {
	j, err := NewSliderJoint(info)
	if err != nil {
		panic(err)
	}
	return j
}

func validateLimits(lower, upper float64) error {
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > 0 || upper < 0 {
		return fmt.Errorf("%w (lower=%v, upper=%v)", ErrInvalidLimits, lower, upper)
	}
	return nil
}

// orientationDifference returns q2 * q1⁻¹, normalized
func orientationDifference(q1, q2 mgl64.Quat) mgl64.Quat {
	return q2.Mul(q1.Inverse()).Normalize()
}

func (j *SliderJoint) InitBeforeSolve(data *SolverData) {
	if !j.resolveIndices(data) {
		return
	}

	body1, body2 := j.Body1, j.Body2
	x1 := body1.Transform.Position
	x2 := body2.Transform.Position
	orientation1 := body1.Transform.Rotation
	orientation2 := body2.Transform.Rotation

	motion1 := body1.IsMotionEnabled()
	motion2 := body2.IsMotionEnabled()

	j.invMass1, j.invMass2 = 0, 0
	j.invI1, j.invI2 = mgl64.Mat3{}, mgl64.Mat3{}
	if motion1 {
		j.invMass1 = body1.GetMassInverse()
		j.invI1 = body1.GetInverseInertiaWorld()
	}
	if motion2 {
		j.invMass2 = body2.GetMassInverse()
		j.invI2 = body2.GetInverseInertiaWorld()
	}

	// Vectors from the centers of mass to the anchor point
	j.r1 = orientation1.Rotate(j.localAnchorBody1)
	j.r2 = orientation2.Rotate(j.localAnchorBody2)

	u := x2.Add(j.r2).Sub(x1).Sub(j.r1)

	// The slider axis and the plane perpendicular to it, in world space
	j.sliderAxisWorld = orientation1.Rotate(j.sliderAxisBody1).Normalize()
	j.n1 = mathx.OrthogonalUnit(j.sliderAxisWorld)
	j.n2 = j.sliderAxisWorld.Cross(j.n1)

	uDotSliderAxis := u.Dot(j.sliderAxisWorld)
	lowerLimitError := uDotSliderAxis - j.lowerLimit
	upperLimitError := j.upperLimit - uDotSliderAxis
	j.isLowerLimitViolated = lowerLimitError <= 0
	j.isUpperLimitViolated = upperLimitError <= 0

	// Angular parts of the Jacobians
	r1PlusU := j.r1.Add(u)
	j.r2CrossN1 = j.r2.Cross(j.n1)
	j.r2CrossN2 = j.r2.Cross(j.n2)
	j.r2CrossSliderAxis = j.r2.Cross(j.sliderAxisWorld)
	j.r1PlusUCrossN1 = r1PlusU.Cross(j.n1)
	j.r1PlusUCrossN2 = r1PlusU.Cross(j.n2)
	j.r1PlusUCrossSliderAxis = r1PlusU.Cross(j.sliderAxisWorld)

	sumInverseMass := j.invMass1 + j.invMass2

	// K = J M⁻¹ Jᵀ for the 2 translation rows
	I1R1PlusUCrossN1 := j.invI1.Mul3x1(j.r1PlusUCrossN1)
	I1R1PlusUCrossN2 := j.invI1.Mul3x1(j.r1PlusUCrossN2)
	I2R2CrossN1 := j.invI2.Mul3x1(j.r2CrossN1)
	I2R2CrossN2 := j.invI2.Mul3x1(j.r2CrossN2)

	el11 := sumInverseMass + j.r1PlusUCrossN1.Dot(I1R1PlusUCrossN1) + j.r2CrossN1.Dot(I2R2CrossN1)
	el12 := j.r1PlusUCrossN1.Dot(I1R1PlusUCrossN2) + j.r2CrossN1.Dot(I2R2CrossN2)
	el21 := j.r1PlusUCrossN2.Dot(I1R1PlusUCrossN1) + j.r2CrossN2.Dot(I2R2CrossN1)
	el22 := sumInverseMass + j.r1PlusUCrossN2.Dot(I1R1PlusUCrossN2) + j.r2CrossN2.Dot(I2R2CrossN2)

	j.inverseMassMatrixTranslation = mgl64.Mat2{}
	if motion1 || motion2 {
		j.inverseMassMatrixTranslation = mathx.Mat2FromRows(el11, el12, el21, el22).Inv()
	}

	// K for the 3 rotation rows
	j.inverseMassMatrixRotation = mgl64.Mat3{}
	if motion1 || motion2 {
		j.inverseMassMatrixRotation = j.invI1.Add(j.invI2).Inv()
	}

	// K for the axis row, shared by both limits and the motor
	axisK := sumInverseMass +
		j.r1PlusUCrossSliderAxis.Dot(j.invI1.Mul3x1(j.r1PlusUCrossSliderAxis)) +
		j.r2CrossSliderAxis.Dot(j.invI2.Mul3x1(j.r2CrossSliderAxis))
	j.inverseMassMatrixAxis = 0
	if axisK > 0 {
		j.inverseMassMatrixAxis = 1.0 / axisK
	}

	// Baumgarte bias terms, all zero under non-linear Gauss-Seidel
	beta := biasFactor(data)
	j.biasTranslation = mgl64.Vec2{u.Dot(j.n1), u.Dot(j.n2)}.Mul(beta)
	j.biasLowerLimit = beta * lowerLimitError
	j.biasUpperLimit = beta * upperLimitError

	j.biasRotation = mgl64.Vec3{}
	if beta != 0 {
		currentOrientationDifference := orientationDifference(orientation1, orientation2)
		qError := currentOrientationDifference.Mul(j.initOrientationDifference.Inverse())
		if qError.W < 0 {
			// q and -q are the same rotation, take the short way back
			qError = qError.Scale(-1)
		}
		j.biasRotation = mathx.QuatVector(qError).Mul(2.0 * beta)
	}
}

// Warmstart applies the impulses accumulated during the previous step.
// Limit impulses are not warm-started: limits are re-evaluated from scratch each step.
func (j *SliderJoint) Warmstart(data *SolverData) {
	if !j.active {
		return
	}

	// P = Jᵀ λ for the 2 translation rows
	linearImpulseBody1 := j.n1.Mul(-j.impulseTranslation.X()).Sub(j.n2.Mul(j.impulseTranslation.Y()))
	angularImpulseBody1 := j.r1PlusUCrossN1.Mul(-j.impulseTranslation.X()).Sub(j.r1PlusUCrossN2.Mul(j.impulseTranslation.Y()))
	angularImpulseBody2 := j.r2CrossN1.Mul(j.impulseTranslation.X()).Add(j.r2CrossN2.Mul(j.impulseTranslation.Y()))

	// and for the 3 rotation rows
	angularImpulseBody1 = angularImpulseBody1.Sub(j.impulseRotation)
	angularImpulseBody2 = angularImpulseBody2.Add(j.impulseRotation)

	// and for the motor row
	if j.isMotorActive {
		linearImpulseBody1 = linearImpulseBody1.Sub(j.sliderAxisWorld.Mul(j.impulseMotor))
		angularImpulseBody1 = angularImpulseBody1.Sub(j.r1PlusUCrossSliderAxis.Mul(j.impulseMotor))
		angularImpulseBody2 = angularImpulseBody2.Add(j.r2CrossSliderAxis.Mul(j.impulseMotor))
	}

	j.apply(data, linearImpulseBody1, angularImpulseBody1, linearImpulseBody1.Mul(-1), angularImpulseBody2)
}

func (j *SliderJoint) SolveVelocity(data *SolverData) {
	if !j.active {
		return
	}

	v1, w1, v2, w2 := j.velocities(data)

	// --------------- Translation rows --------------- //

	jvTranslation := mgl64.Vec2{
		-j.n1.Dot(*v1) - w1.Dot(j.r1PlusUCrossN1) + j.n1.Dot(*v2) + w2.Dot(j.r2CrossN1),
		-j.n2.Dot(*v1) - w1.Dot(j.r1PlusUCrossN2) + j.n2.Dot(*v2) + w2.Dot(j.r2CrossN2),
	}

	deltaLambda := j.inverseMassMatrixTranslation.Mul2x1(jvTranslation.Mul(-1).Sub(j.biasTranslation))
	j.impulseTranslation = j.impulseTranslation.Add(deltaLambda)

	linearImpulseBody1 := j.n1.Mul(-deltaLambda.X()).Sub(j.n2.Mul(deltaLambda.Y()))
	angularImpulseBody1 := j.r1PlusUCrossN1.Mul(-deltaLambda.X()).Sub(j.r1PlusUCrossN2.Mul(deltaLambda.Y()))
	angularImpulseBody2 := j.r2CrossN1.Mul(deltaLambda.X()).Add(j.r2CrossN2.Mul(deltaLambda.Y()))

	j.apply(data, linearImpulseBody1, angularImpulseBody1, linearImpulseBody1.Mul(-1), angularImpulseBody2)

	// --------------- Rotation rows --------------- //

	jvRotation := w2.Sub(*w1)

	deltaLambdaRotation := j.inverseMassMatrixRotation.Mul3x1(jvRotation.Mul(-1).Sub(j.biasRotation))
	j.impulseRotation = j.impulseRotation.Add(deltaLambdaRotation)

	j.apply(data, mgl64.Vec3{}, deltaLambdaRotation.Mul(-1), mgl64.Vec3{}, deltaLambdaRotation)

	// --------------- Motor row --------------- //

	if j.isMotorActive {
		jvMotor := j.axisVelocity(data)

		deltaLambdaMotor := j.inverseMassMatrixAxis * (j.motorSpeed - jvMotor)
		lambdaTemp := j.impulseMotor
		j.maxMotorImpulse = j.maxMotorForce * data.TimeStep
		j.impulseMotor = mathx.Clamp(j.impulseMotor+deltaLambdaMotor, -j.maxMotorImpulse, j.maxMotorImpulse)
		deltaLambdaMotor = j.impulseMotor - lambdaTemp

		j.applyAxisImpulse(data, deltaLambdaMotor)
	}

	// --------------- Limit rows --------------- //

	if !j.isLimitsActive {
		return
	}

	if j.isLowerLimitViolated {
		jvLowerLimit := j.axisVelocity(data)

		// A limit can only push: clamp the accumulated impulse, then apply the difference
		deltaLambdaLower := j.inverseMassMatrixAxis * (-jvLowerLimit - j.biasLowerLimit)
		lambdaTemp := j.impulseLowerLimit
		j.impulseLowerLimit = mathx.NonNegative(j.impulseLowerLimit + deltaLambdaLower)
		deltaLambdaLower = j.impulseLowerLimit - lambdaTemp

		j.applyAxisImpulse(data, deltaLambdaLower)
	}

	if j.isUpperLimitViolated {
		jvUpperLimit := -j.axisVelocity(data)

		deltaLambdaUpper := j.inverseMassMatrixAxis * (-jvUpperLimit - j.biasUpperLimit)
		lambdaTemp := j.impulseUpperLimit
		j.impulseUpperLimit = mathx.NonNegative(j.impulseUpperLimit + deltaLambdaUpper)
		deltaLambdaUpper = j.impulseUpperLimit - lambdaTemp

		j.applyAxisImpulse(data, -deltaLambdaUpper)
	}
}

// SolvePosition does nothing: the slider joint only corrects drift through its
// Baumgarte bias terms.
func (j *SliderJoint) SolvePosition(data *SolverData) {}

// axisVelocity is J·v for the axis row, the relative speed of the anchors along the axis
func (j *SliderJoint) axisVelocity(data *SolverData) float64 {
	v1, w1, v2, w2 := j.velocities(data)

	return j.sliderAxisWorld.Dot(*v2) + j.r2CrossSliderAxis.Dot(*w2) -
		j.sliderAxisWorld.Dot(*v1) - j.r1PlusUCrossSliderAxis.Dot(*w1)
}

// applyAxisImpulse applies Jᵀλ for the axis row, positive λ pushes body 2 along the axis
func (j *SliderJoint) applyAxisImpulse(data *SolverData, lambda float64) {
	linearImpulseBody1 := j.sliderAxisWorld.Mul(-lambda)
	angularImpulseBody1 := j.r1PlusUCrossSliderAxis.Mul(-lambda)
	angularImpulseBody2 := j.r2CrossSliderAxis.Mul(lambda)

	j.apply(data, linearImpulseBody1, angularImpulseBody1, linearImpulseBody1.Mul(-1), angularImpulseBody2)
}

// apply converts impulses to velocity changes for the bodies whose motion is enabled
func (j *SliderJoint) apply(data *SolverData, linear1, angular1, linear2, angular2 mgl64.Vec3) {
	v1, w1, v2, w2 := j.velocities(data)

	if j.Body1.IsMotionEnabled() {
		*v1 = v1.Add(linear1.Mul(j.invMass1))
		*w1 = w1.Add(j.invI1.Mul3x1(angular1))
	}
	if j.Body2.IsMotionEnabled() {
		*v2 = v2.Add(linear2.Mul(j.invMass2))
		*w2 = w2.Add(j.invI2.Mul3x1(angular2))
	}
}

// Translation returns the current signed translation of body 2 along the slider axis
func (j *SliderJoint) Translation() float64 {
	t1 := j.Body1.Transform
	t2 := j.Body2.Transform

	u := t2.PointToWorld(j.localAnchorBody2).Sub(t1.PointToWorld(j.localAnchorBody1))
	axis := t1.VectorToWorld(j.sliderAxisBody1).Normalize()

	return u.Dot(axis)
}

func (j *SliderJoint) IsLimitsActive() bool {
	return j.isLimitsActive
}

// EnableLimits turns the limits on or off and resets their accumulated impulses
func (j *SliderJoint) EnableLimits(active bool) {
	if active == j.isLimitsActive {
		return
	}
	j.isLimitsActive = active
	j.resetLimitImpulses()
}

func (j *SliderJoint) Limits() (lower, upper float64) {
	return j.lowerLimit, j.upperLimit
}

// SetLimits changes the translation range, lower <= 0 <= upper
func (j *SliderJoint) SetLimits(lower, upper float64) error {
	if err := validateLimits(lower, upper); err != nil {
		return fmt.Errorf("slider joint: %w", err)
	}
	if lower == j.lowerLimit && upper == j.upperLimit {
		return nil
	}

	j.lowerLimit = lower
	j.upperLimit = upper
	j.resetLimitImpulses()

	return nil
}

func (j *SliderJoint) resetLimitImpulses() {
	j.impulseLowerLimit = 0
	j.impulseUpperLimit = 0
}

func (j *SliderJoint) IsMotorActive() bool {
	return j.isMotorActive
}

// EnableMotor turns the motor on or off, resetting its accumulated impulse
func (j *SliderJoint) EnableMotor(active bool) {
	if active == j.isMotorActive {
		return
	}
	j.isMotorActive = active
	j.impulseMotor = 0
}

// IsMotorSaturated reports whether the motor pushed with its full force during the last
// solve, against a limit or a load it cannot move.
func (j *SliderJoint) IsMotorSaturated() bool {
	return j.isMotorActive && j.maxMotorImpulse > 0 && math.Abs(j.impulseMotor) >= j.maxMotorImpulse
}

func (j *SliderJoint) MotorSpeed() float64 {
	return j.motorSpeed
}

func (j *SliderJoint) SetMotorSpeed(speed float64) {
	j.motorSpeed = speed
}

func (j *SliderJoint) MaxMotorForce() float64 {
	return j.maxMotorForce
}

func (j *SliderJoint) SetMaxMotorForce(force float64) error {
	if force < 0 {
		return fmt.Errorf("slider joint: max motor force %v is negative", force)
	}
	j.maxMotorForce = force
	return nil
}

// LimitsViolated reports which limits were violated at the last InitBeforeSolve
func (j *SliderJoint) LimitsViolated() (lower, upper bool) {
	return j.isLowerLimitViolated, j.isUpperLimitViolated
}

// SliderAxisWorld returns the world-space axis computed at the last InitBeforeSolve
func (j *SliderJoint) SliderAxisWorld() mgl64.Vec3 {
	return j.sliderAxisWorld
}

func (j *SliderJoint) ImpulseTranslation() mgl64.Vec2 { return j.impulseTranslation }
func (j *SliderJoint) ImpulseRotation() mgl64.Vec3    { return j.impulseRotation }
func (j *SliderJoint) ImpulseLowerLimit() float64     { return j.impulseLowerLimit }
func (j *SliderJoint) ImpulseUpperLimit() float64     { return j.impulseUpperLimit }
func (j *SliderJoint) ImpulseMotor() float64          { return j.impulseMotor }
