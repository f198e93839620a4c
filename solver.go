package piston

import (
	"github.com/akmonengine/piston/actor"
	"github.com/akmonengine/piston/constraint"
)

const (
	DEFAULT_VELOCITY_ITERATIONS = 10
	DEFAULT_POSITION_ITERATIONS = 5
)

// ConstraintSolver drives every constraint through its lifecycle for one step.
// Constraints are solved one after the other: they share the velocity slots of
// their bodies, so the sweep is sequential.
type ConstraintSolver struct {
	// Velocity iterations per step
	Iterations int
	// Position iterations per step, only used with non-linear Gauss-Seidel
	PositionIterations int

	data *constraint.SolverData
}

func NewConstraintSolver() *ConstraintSolver {
	return &ConstraintSolver{
		Iterations:         DEFAULT_VELOCITY_ITERATIONS,
		PositionIterations: DEFAULT_POSITION_ITERATIONS,
		data:               constraint.NewSolverData(),
	}
}

// Solve copies the body velocities in, solves all constraints and writes the result
// back to the bodies whose motion is enabled.
func (s *ConstraintSolver) Solve(dt float64, technique constraint.PositionCorrection, bodies []*actor.RigidBody, constraints []constraint.Constraint) {
	if s.data == nil {
		s.data = constraint.NewSolverData()
	}
	s.data.Reset(bodies, dt, technique)

	for _, c := range constraints {
		c.InitBeforeSolve(s.data)
	}

	for _, c := range constraints {
		c.Warmstart(s.data)
	}

	for range max(1, s.Iterations) {
		for _, c := range constraints {
			c.SolveVelocity(s.data)
		}
	}

	s.data.Store(bodies)
}

// Relax re-solves the constraints implementing constraint.Relaxer without their position
// bias, so the velocity used to push bodies apart is not kept once they moved.
// Under non-linear Gauss-Seidel there is no such bias and it does nothing.
func (s *ConstraintSolver) Relax(bodies []*actor.RigidBody, constraints []constraint.Constraint) {
	if s.data == nil || s.data.Technique != constraint.Baumgarte {
		return
	}

	relaxers := make([]constraint.Relaxer, 0, len(constraints))
	for _, c := range constraints {
		if r, ok := c.(constraint.Relaxer); ok {
			relaxers = append(relaxers, r)
		}
	}
	if len(relaxers) == 0 {
		return
	}

	// Same bodies as in Solve, the slots of the constraints are unchanged
	s.data.Reset(bodies, s.data.TimeStep, s.data.Technique)

	for range max(1, s.Iterations) {
		for _, r := range relaxers {
			r.Relax(s.data)
		}
	}

	s.data.Store(bodies)
}

// SolvePositions runs the position pass after the positions were integrated.
// Under Baumgarte the drift was already fed into the velocities, so it does nothing.
func (s *ConstraintSolver) SolvePositions(constraints []constraint.Constraint) {
	if s.data == nil || s.data.Technique != constraint.NonLinearGaussSeidel {
		return
	}

	for range s.PositionIterations {
		for _, c := range constraints {
			c.SolvePosition(s.data)
		}
	}
}
