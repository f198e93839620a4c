package constraint

import (
	"errors"
	"math"

	"github.com/akmonengine/piston/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// BaumgarteBeta is the fraction of the position error fed back as velocity bias per step
const BaumgarteBeta = 0.2

// PositionCorrection selects how joints remove positional drift
type PositionCorrection int

const (
	// Baumgarte feeds the position error into the velocity solve as a bias term
	Baumgarte PositionCorrection = iota
	// NonLinearGaussSeidel leaves velocities unbiased and corrects positions in a separate pass
	NonLinearGaussSeidel
)

func (p PositionCorrection) String() string {
	switch p {
	case Baumgarte:
		return "baumgarte"
	case NonLinearGaussSeidel:
		return "non-linear-gauss-seidel"
	default:
		return "unknown"
	}
}

var (
	ErrNilBody        = errors.New("constraint: nil body")
	ErrSameBody       = errors.New("constraint: both bodies are the same")
	ErrInvalidLimits  = errors.New("constraint: limits must satisfy lower <= 0 <= upper")
	ErrDegenerateAxis = errors.New("constraint: axis has zero length")
)

// Constraint is the four-phase lifecycle driven by the solver every step.
// InitBeforeSolve runs before Warmstart, which runs before any SolveVelocity call.
type Constraint interface {
	InitBeforeSolve(data *SolverData)
	Warmstart(data *SolverData)
	SolveVelocity(data *SolverData)
	SolvePosition(data *SolverData)
	Bodies() (*actor.RigidBody, *actor.RigidBody)
}

// Relaxer is implemented by constraints whose Baumgarte bias must not outlive the substep
// it corrected. Relax runs after the positions were integrated, with the bias left out.
type Relaxer interface {
	Relax(data *SolverData)
}

// Joint holds what every two-body joint shares: its bodies and their slots in the
// solver velocity arrays for the current step.
type Joint struct {
	Body1 *actor.RigidBody
	Body2 *actor.RigidBody

	index1 int
	index2 int
	// active is false when the joint could not be prepared for this step
	active bool
}

func newJoint(body1, body2 *actor.RigidBody) (Joint, error) {
	if body1 == nil || body2 == nil {
		return Joint{}, ErrNilBody
	}
	if body1 == body2 {
		return Joint{}, ErrSameBody
	}

	return Joint{Body1: body1, Body2: body2}, nil
}

func (j *Joint) Bodies() (*actor.RigidBody, *actor.RigidBody) {
	return j.Body1, j.Body2
}

// resolveIndices looks up both bodies in the solver data. A missing body is a caller
// bug: it panics in debug builds and disables the joint for the step otherwise.
func (j *Joint) resolveIndices(data *SolverData) bool {
	var ok1, ok2 bool
	j.index1, ok1 = data.Index(j.Body1)
	j.index2, ok2 = data.Index(j.Body2)
	j.active = ok1 && ok2
	assert(j.active, "joint body missing from the solver data")

	return j.active
}

// velocities returns pointers into the shared arrays for both bodies
func (j *Joint) velocities(data *SolverData) (v1, w1, v2, w2 *mgl64.Vec3) {
	return &data.LinearVelocities[j.index1], &data.AngularVelocities[j.index1],
		&data.LinearVelocities[j.index2], &data.AngularVelocities[j.index2]
}

func biasFactor(data *SolverData) float64 {
	if data.Technique != Baumgarte || data.TimeStep <= 0 {
		return 0
	}
	return BaumgarteBeta / data.TimeStep
}

func ComputeRestitution(matA, matB actor.Material) float64 {
	// Average of both materials
	return (matA.Restitution + matB.Restitution) / 2.0
}

func ComputeFriction(matA, matB actor.Material) float64 {
	// Geometric mean
	return math.Sqrt(matA.Friction * matB.Friction)
}
