package piston

import (
	"fmt"
	"strings"
	"testing"

	"github.com/akmonengine/piston/actor"
	"github.com/akmonengine/piston/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pmezard/go-difflib/difflib"
)

// recordingConstraint logs every lifecycle call it receives
type recordingConstraint struct {
	name   string
	body1  *actor.RigidBody
	body2  *actor.RigidBody
	calls  *[]string
	timeAt []float64
}

func (c *recordingConstraint) record(phase string, data *constraint.SolverData) {
	*c.calls = append(*c.calls, fmt.Sprintf("%s %s", phase, c.name))
	c.timeAt = append(c.timeAt, data.TimeStep)
}

func (c *recordingConstraint) InitBeforeSolve(data *constraint.SolverData) { c.record("init", data) }
func (c *recordingConstraint) Warmstart(data *constraint.SolverData)       { c.record("warmstart", data) }
func (c *recordingConstraint) SolveVelocity(data *constraint.SolverData)   { c.record("velocity", data) }
func (c *recordingConstraint) SolvePosition(data *constraint.SolverData)   { c.record("position", data) }
func (c *recordingConstraint) Bodies() (*actor.RigidBody, *actor.RigidBody) {
	return c.body1, c.body2
}

// relaxingConstraint also logs the relax pass
type relaxingConstraint struct {
	recordingConstraint
}

func (c *relaxingConstraint) Relax(data *constraint.SolverData) { c.record("relax", data) }

func newTestBody(position mgl64.Vec3, bodyType actor.BodyType) *actor.RigidBody {
	body := actor.NewRigidBody(actor.NewTransformAt(position, mgl64.QuatIdent()), &actor.Sphere{Radius: 0.5}, bodyType, 1.0)
	if bodyType == actor.BodyTypeDynamic {
		body.SetMass(1.0)
		body.SetInertiaLocal(mgl64.Ident3())
	}

	return body
}

func assertNoDiff(t *testing.T, expected, actual, what string) {
	t.Helper()

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	if err != nil {
		t.Fatalf("diff error: %v", err)
	}
	if diff != "" {
		t.Errorf("%s differs:\n%s", what, diff)
	}
}

func TestConstraintSolverOrder(t *testing.T) {
	a := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	b := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

	var calls []string
	first := &recordingConstraint{name: "first", body1: a, body2: b, calls: &calls}
	second := &recordingConstraint{name: "second", body1: b, body2: a, calls: &calls}

	solver := NewConstraintSolver()
	solver.Iterations = 2
	solver.PositionIterations = 1
	solver.Solve(0.01, constraint.NonLinearGaussSeidel, []*actor.RigidBody{a, b}, []constraint.Constraint{first, second})
	solver.SolvePositions([]constraint.Constraint{first, second})

	expected := strings.Join([]string{
		"init first", "init second",
		"warmstart first", "warmstart second",
		"velocity first", "velocity second",
		"velocity first", "velocity second",
		"position first", "position second",
	}, "\n") + "\n"

	assertNoDiff(t, expected, strings.Join(calls, "\n")+"\n", "lifecycle order")

	for _, dt := range first.timeAt {
		if dt != 0.01 {
			t.Errorf("constraint saw a time step of %v, want 0.01", dt)
		}
	}
}

func TestConstraintSolverIterations(t *testing.T) {
	tests := []struct {
		name               string
		technique          constraint.PositionCorrection
		iterations         int
		positionIterations int
		expectedVelocity   int
		expectedPosition   int
	}{
		{"defaults with baumgarte", constraint.Baumgarte, DEFAULT_VELOCITY_ITERATIONS, DEFAULT_POSITION_ITERATIONS, DEFAULT_VELOCITY_ITERATIONS, 0},
		{"defaults with non-linear gauss-seidel", constraint.NonLinearGaussSeidel, DEFAULT_VELOCITY_ITERATIONS, DEFAULT_POSITION_ITERATIONS, DEFAULT_VELOCITY_ITERATIONS, DEFAULT_POSITION_ITERATIONS},
		{"zero iterations still solves once", constraint.NonLinearGaussSeidel, 0, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
			b := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

			var calls []string
			c := &recordingConstraint{name: "c", body1: a, body2: b, calls: &calls}

			solver := NewConstraintSolver()
			solver.Iterations = tt.iterations
			solver.PositionIterations = tt.positionIterations
			solver.Solve(0.01, tt.technique, []*actor.RigidBody{a, b}, []constraint.Constraint{c})
			solver.SolvePositions([]constraint.Constraint{c})

			velocity, position := 0, 0
			for _, call := range calls {
				switch call {
				case "velocity c":
					velocity++
				case "position c":
					position++
				}
			}

			if velocity != tt.expectedVelocity {
				t.Errorf("velocity iterations = %d, want %d", velocity, tt.expectedVelocity)
			}
			if position != tt.expectedPosition {
				t.Errorf("position iterations = %d, want %d", position, tt.expectedPosition)
			}
		})
	}
}

func TestConstraintSolverRelax(t *testing.T) {
	tests := []struct {
		name      string
		technique constraint.PositionCorrection
		expected  []string
	}{
		{"baumgarte relaxes", constraint.Baumgarte, []string{"relax contact", "relax contact"}},
		{"non-linear gauss-seidel has no bias to relax", constraint.NonLinearGaussSeidel, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
			b := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

			var calls []string
			joint := &recordingConstraint{name: "joint", body1: a, body2: b, calls: &calls}
			contact := &relaxingConstraint{recordingConstraint{name: "contact", body1: a, body2: b, calls: &calls}}
			constraints := []constraint.Constraint{joint, contact}

			solver := NewConstraintSolver()
			solver.Iterations = 2
			solver.Solve(0.01, tt.technique, []*actor.RigidBody{a, b}, constraints)
			calls = calls[:0]

			solver.Relax([]*actor.RigidBody{a, b}, constraints)

			assertNoDiff(t, strings.Join(tt.expected, "\n"), strings.Join(calls, "\n"), "relax calls")
		})
	}
}

func TestConstraintSolverStoresVelocities(t *testing.T) {
	ground := newTestBody(mgl64.Vec3{}, actor.BodyTypeStatic)
	body := newTestBody(mgl64.Vec3{2, 0, 0}, actor.BodyTypeDynamic)
	body.Velocity = mgl64.Vec3{1, -1, 0}

	joint := constraint.MustNewSliderJoint(constraint.SliderJointInfo{
		Body1:            ground,
		Body2:            body,
		AnchorPointWorld: body.Transform.Position,
		SliderAxisWorld:  mgl64.Vec3{1, 0, 0},
	})

	var solver ConstraintSolver
	solver.Solve(1.0/60.0, constraint.Baumgarte, []*actor.RigidBody{ground, body}, []constraint.Constraint{joint})

	if !body.Velocity.ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("body velocity = %v, want (1,0,0)", body.Velocity)
	}
	if ground.Velocity != (mgl64.Vec3{}) {
		t.Errorf("ground velocity = %v, want zero", ground.Velocity)
	}
}
