package constraint

import (
	"fmt"

	"github.com/akmonengine/piston/actor"
	"github.com/akmonengine/piston/mathx"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// LinearSlop is the penetration tolerated before the position bias kicks in
	LinearSlop = 0.005
	// MaxLinearCorrection caps the penetration removed by one position iteration
	MaxLinearCorrection = 0.2
	// RestitutionThreshold is the approach speed below which contacts do not bounce
	RestitutionThreshold = 1.0
)

type ContactPoint struct {
	Position    mgl64.Vec3 // world space
	Penetration float64    // > 0 when overlapping
}

// contactPointState is the solver temp of one contact point
type contactPointState struct {
	rA, rB             mgl64.Vec3
	localA, localB     mgl64.Vec3
	normalMass         float64
	tangentMass        [2]float64
	restitutionBias    float64
	velocityBias       float64
	normalImpulse      float64
	tangentImpulse     [2]float64
	initialPenetration float64
}

// ContactConstraint keeps two bodies from interpenetrating at a set of contact points
// supplied by the caller. Normal points from Body1 to Body2.
type ContactConstraint struct {
	Joint

	Normal mgl64.Vec3
	Points []ContactPoint

	states      []contactPointState
	tangents    [2]mgl64.Vec3
	friction    float64
	restitution float64

	invMassA, invMassB float64
	invIA, invIB       mgl64.Mat3
}

func NewContactConstraint(bodyA, bodyB *actor.RigidBody, normal mgl64.Vec3, points []ContactPoint) (*ContactConstraint, error) {
	joint, err := newJoint(bodyA, bodyB)
	if err != nil {
		return nil, fmt.Errorf("contact: %w", err)
	}
	if mathx.NearZero(normal.Len(), degenerateAxisLength) {
		return nil, fmt.Errorf("contact: %w", ErrDegenerateAxis)
	}

	c := &ContactConstraint{Joint: joint}
	c.Update(normal, points)

	return c, nil
}

// Update replaces the manifold. Accumulated impulses are kept for warm starting when the
// number of points did not change.
// Each point is pinned to both bodies here: later steps measure the penetration from the
// current transforms, not from the Penetration given at the time of the update.
func (c *ContactConstraint) Update(normal mgl64.Vec3, points []ContactPoint) {
	c.Normal = normal.Normalize()
	c.Points = points

	if len(c.states) != len(points) {
		c.states = make([]contactPointState, len(points))
	}

	for i, point := range points {
		s := &c.states[i]
		s.localA = c.Body1.Transform.PointToLocal(point.Position)
		s.localB = c.Body2.Transform.PointToLocal(point.Position)
		s.initialPenetration = point.Penetration
	}
}

// anchors returns the world position of a pinned point on each body
func (c *ContactConstraint) anchors(s *contactPointState) (pA, pB mgl64.Vec3) {
	return c.Body1.Transform.PointToWorld(s.localA), c.Body2.Transform.PointToWorld(s.localB)
}

// penetration is positive while the pinned points overlap along the normal
func (c *ContactConstraint) penetration(s *contactPointState, pA, pB mgl64.Vec3) float64 {
	return s.initialPenetration - pB.Sub(pA).Dot(c.Normal)
}

func (c *ContactConstraint) InitBeforeSolve(data *SolverData) {
	if !c.resolveIndices(data) {
		return
	}

	bodyA := c.Body1
	bodyB := c.Body2
	if bodyA.IsSleeping && bodyB.IsSleeping {
		c.active = false
		return
	}

	c.invMassA = bodyA.GetMassInverse()
	c.invMassB = bodyB.GetMassInverse()
	c.invIA = bodyA.GetInverseInertiaWorld()
	c.invIB = bodyB.GetInverseInertiaWorld()

	c.restitution = ComputeRestitution(bodyA.Material, bodyB.Material)
	c.friction = ComputeFriction(bodyA.Material, bodyB.Material)
	c.tangents[0], c.tangents[1] = mathx.TangentBasis(c.Normal)

	vA, wA, vB, wB := c.velocities(data)
	beta := biasFactor(data)

	for i := range c.Points {
		s := &c.states[i]
		pA, pB := c.anchors(s)
		s.rA = pA.Sub(bodyA.Transform.Position)
		s.rB = pB.Sub(bodyB.Transform.Position)

		s.normalMass = c.effectiveMass(s.rA, s.rB, c.Normal)
		for k, tangent := range c.tangents {
			s.tangentMass[k] = c.effectiveMass(s.rA, s.rB, tangent)
		}

		// Bounce on the pre-solve approach speed
		normalVel := relativeVelocity(*vA, *wA, *vB, *wB, s.rA, s.rB).Dot(c.Normal)
		s.restitutionBias = 0
		if normalVel < -RestitutionThreshold {
			s.restitutionBias = -c.restitution * normalVel
		}
		s.velocityBias = s.restitutionBias + beta*mathx.NonNegative(c.penetration(s, pA, pB)-LinearSlop)
	}
}

// effectiveMass returns 1 / (J M⁻¹ Jᵀ) for a row along direction, 0 when both bodies are static
func (c *ContactConstraint) effectiveMass(rA, rB, direction mgl64.Vec3) float64 {
	rACrossD := rA.Cross(direction)
	rBCrossD := rB.Cross(direction)

	k := c.invMassA + c.invMassB +
		c.invIA.Mul3x1(rACrossD).Dot(rACrossD) +
		c.invIB.Mul3x1(rBCrossD).Dot(rBCrossD)
	if k < 1e-10 {
		return 0
	}
	return 1.0 / k
}

func relativeVelocity(vA, wA, vB, wB, rA, rB mgl64.Vec3) mgl64.Vec3 {
	return vB.Add(wB.Cross(rB)).Sub(vA.Add(wA.Cross(rA)))
}

func (c *ContactConstraint) Warmstart(data *SolverData) {
	if !c.active {
		return
	}

	for i := range c.Points {
		s := &c.states[i]
		impulse := c.Normal.Mul(s.normalImpulse).
			Add(c.tangents[0].Mul(s.tangentImpulse[0])).
			Add(c.tangents[1].Mul(s.tangentImpulse[1]))
		c.applyImpulse(data, s, impulse)
	}
}

func (c *ContactConstraint) SolveVelocity(data *SolverData) {
	c.solve(data, true)
}

// Relax solves the contacts again without the penetration bias, once positions were
// integrated: the separation velocity it injected is taken back so it does not carry
// into the next steps. Bounces are kept.
func (c *ContactConstraint) Relax(data *SolverData) {
	c.solve(data, false)
}

func (c *ContactConstraint) solve(data *SolverData, useBias bool) {
	if !c.active {
		return
	}

	vA, wA, vB, wB := c.velocities(data)

	for i := range c.Points {
		s := &c.states[i]

		// Friction first, bounded by the normal impulse of the previous iteration
		maxFriction := c.friction * s.normalImpulse
		for k, tangent := range c.tangents {
			tangentVel := relativeVelocity(*vA, *wA, *vB, *wB, s.rA, s.rB).Dot(tangent)
			lambda := -s.tangentMass[k] * tangentVel

			oldImpulse := s.tangentImpulse[k]
			s.tangentImpulse[k] = mathx.Clamp(oldImpulse+lambda, -maxFriction, maxFriction)
			lambda = s.tangentImpulse[k] - oldImpulse

			c.applyImpulse(data, s, tangent.Mul(lambda))
		}

		// Normal: a contact can only push
		bias := s.restitutionBias
		if useBias {
			bias = s.velocityBias
		}
		normalVel := relativeVelocity(*vA, *wA, *vB, *wB, s.rA, s.rB).Dot(c.Normal)
		lambda := s.normalMass * (-normalVel + bias)

		oldImpulse := s.normalImpulse
		s.normalImpulse = mathx.NonNegative(oldImpulse + lambda)
		lambda = s.normalImpulse - oldImpulse

		c.applyImpulse(data, s, c.Normal.Mul(lambda))
	}
}

// applyImpulse pushes Body2 by +impulse and Body1 by -impulse at the contact point
func (c *ContactConstraint) applyImpulse(data *SolverData, s *contactPointState, impulse mgl64.Vec3) {
	vA, wA, vB, wB := c.velocities(data)

	if c.Body1.IsMotionEnabled() {
		*vA = vA.Sub(impulse.Mul(c.invMassA))
		*wA = wA.Sub(c.invIA.Mul3x1(s.rA.Cross(impulse)))
	}
	if c.Body2.IsMotionEnabled() {
		*vB = vB.Add(impulse.Mul(c.invMassB))
		*wB = wB.Add(c.invIB.Mul3x1(s.rB.Cross(impulse)))
	}
}

// SolvePosition projects the remaining penetration out along the normal. It only runs
// under non-linear Gauss-Seidel, Baumgarte already biased the velocities.
func (c *ContactConstraint) SolvePosition(data *SolverData) {
	if !c.active || data.Technique != NonLinearGaussSeidel {
		return
	}

	bodyA := c.Body1
	bodyB := c.Body2

	for i := range c.Points {
		s := &c.states[i]

		pA, pB := c.anchors(s)

		correction := mathx.Clamp(BaumgarteBeta*(LinearSlop-c.penetration(s, pA, pB)), -MaxLinearCorrection, 0)
		if correction == 0 {
			continue
		}

		rA := pA.Sub(bodyA.Transform.Position)
		rB := pB.Sub(bodyB.Transform.Position)
		mass := c.effectiveMass(rA, rB, c.Normal)
		if mass == 0 {
			continue
		}

		impulse := c.Normal.Mul(-correction * mass)

		if bodyA.IsMotionEnabled() {
			bodyA.Transform.Position = bodyA.Transform.Position.Sub(impulse.Mul(c.invMassA))
			rotate(&bodyA.Transform, c.invIA.Mul3x1(rA.Cross(impulse)).Mul(-1))
		}
		if bodyB.IsMotionEnabled() {
			bodyB.Transform.Position = bodyB.Transform.Position.Add(impulse.Mul(c.invMassB))
			rotate(&bodyB.Transform, c.invIB.Mul3x1(rB.Cross(impulse)))
		}
	}
}

// rotate applies a small rotation δθ, q' = [1, δθ/2] q
func rotate(transform *actor.Transform, deltaRotation mgl64.Vec3) {
	if deltaRotation.Len() <= 1e-10 {
		return
	}

	qDelta := mgl64.Quat{W: 1.0, V: deltaRotation.Mul(0.5)}.Normalize()
	transform.SetRotation(qDelta.Mul(transform.Rotation))
}

// NormalImpulse returns the accumulated normal impulse at point i
func (c *ContactConstraint) NormalImpulse(i int) float64 {
	return c.states[i].normalImpulse
}

// TangentImpulse returns the accumulated friction impulse at point i
func (c *ContactConstraint) TangentImpulse(i int) mgl64.Vec2 {
	return mgl64.Vec2{c.states[i].tangentImpulse[0], c.states[i].tangentImpulse[1]}
}
