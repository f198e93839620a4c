package piston

import (
	"errors"
	"fmt"
	"slices"

	"github.com/akmonengine/piston/actor"
	"github.com/akmonengine/piston/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	DEFAULT_WORKERS  = 1
	DEFAULT_SUBSTEPS = 1

	// A body at rest for SLEEP_TIME seconds, under SLEEP_VELOCITY, falls asleep
	SLEEP_TIME     = 0.1
	SLEEP_VELOCITY = 0.05
)

var (
	ErrUnknownBody = errors.New("piston: body is not part of the world")
)

type World struct {
	// List of all rigid bodies in the world
	Bodies      []*actor.RigidBody
	Constraints []constraint.Constraint
	// Gravity acceleration (m/s², or N/kg)
	Gravity   mgl64.Vec3
	Substeps  int
	Workers   int
	Technique constraint.PositionCorrection
	Solver    *ConstraintSolver

	Events Events
}

// NewWorld returns an empty world with earth gravity and the default solver settings
func NewWorld() *World {
	return &World{
		Gravity:   mgl64.Vec3{0, -9.81, 0},
		Substeps:  DEFAULT_SUBSTEPS,
		Workers:   DEFAULT_WORKERS,
		Technique: constraint.Baumgarte,
		Solver:    NewConstraintSolver(),
		Events:    NewEvents(),
	}
}

// AddBody adds a rigid body to the world
func (w *World) AddBody(body *actor.RigidBody) {
	w.Bodies = append(w.Bodies, body)
}

// RemoveBody removes a rigid body from the world, with every constraint attached to it
func (w *World) RemoveBody(body *actor.RigidBody) {
	k := slices.Index(w.Bodies, body)
	if k != -1 {
		w.Bodies = slices.Delete(w.Bodies, k, k+1)
	}

	w.Constraints = slices.DeleteFunc(w.Constraints, func(c constraint.Constraint) bool {
		body1, body2 := c.Bodies()
		if body1 == body || body2 == body {
			w.Events.forgetConstraint(c)
			return true
		}
		return false
	})

	w.Events.forgetBody(body)
}

// AddConstraint registers a joint or contact, both its bodies must already be in the world
func (w *World) AddConstraint(c constraint.Constraint) error {
	body1, body2 := c.Bodies()
	for _, body := range []*actor.RigidBody{body1, body2} {
		if !slices.Contains(w.Bodies, body) {
			return fmt.Errorf("add constraint: %w", ErrUnknownBody)
		}
	}

	w.Constraints = append(w.Constraints, c)
	return nil
}

func (w *World) RemoveConstraint(c constraint.Constraint) {
	k := slices.Index(w.Constraints, c)
	if k == -1 {
		return
	}

	w.Constraints = slices.Delete(w.Constraints, k, k+1)
	w.Events.forgetConstraint(c)
}

func (w *World) Step(dt float64) {
	w.Workers = max(DEFAULT_WORKERS, w.Workers)
	w.Substeps = max(DEFAULT_SUBSTEPS, w.Substeps)
	if w.Solver == nil {
		w.Solver = NewConstraintSolver()
	}
	if w.Events.listeners == nil {
		w.Events = NewEvents()
	}
	h := dt / float64(w.Substeps)

	for range w.Substeps {
		// Phase 1: gravity and forces
		w.integrateVelocities(h)

		// Phase 2: a constraint between an awake and a sleeping body wakes both
		w.wakeConstrainedBodies()

		// Phase 3: velocity solver
		w.Solver.Solve(h, w.Technique, w.Bodies, w.Constraints)
		w.Events.recordLimits(w.Constraints)

		// Phase 4: positions, from the solved velocities
		w.integratePositions(h)
		w.Solver.Relax(w.Bodies, w.Constraints)

		// Phase 5: position solver, non-linear Gauss-Seidel only
		w.Solver.SolvePositions(w.Constraints)

		w.trySleep(h)
	}

	w.Events.recordContacts(w.Constraints)
	w.Events.processSleepEvents(w.Bodies)
	w.Events.flush()
}

func (w *World) integrateVelocities(h float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		body.IntegrateVelocity(h, w.Gravity)
	})
}

func (w *World) integratePositions(h float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		body.IntegratePosition(h)
	})
}

// wakeConstrainedBodies wakes a sleeping body tied to an awake one, static bodies never wake anything
func (w *World) wakeConstrainedBodies() {
	for _, c := range w.Constraints {
		body1, body2 := c.Bodies()
		if !body1.IsMotionEnabled() || !body2.IsMotionEnabled() {
			continue
		}

		if body1.IsSleeping != body2.IsSleeping {
			body1.Awake()
			body2.Awake()
		}
	}
}

// motorized is implemented by joints driving their bodies on their own
type motorized interface {
	IsMotorSaturated() bool
}

// trySleep sets the body to sleep if its velocity is lower than the threshold, for a given duration
// this method is too simple to use a task, it slows down in multiple goroutines
func (w *World) trySleep(h float64) {
	for _, body := range w.Bodies {
		body.TrySleep(h, SLEEP_TIME, SLEEP_VELOCITY)
	}

	// A motor at full force still pushes, its bodies cannot rest
	for _, c := range w.Constraints {
		if m, ok := c.(motorized); ok && m.IsMotorSaturated() {
			body1, body2 := c.Bodies()
			for _, body := range []*actor.RigidBody{body1, body2} {
				if body.IsMotionEnabled() {
					body.Awake()
				}
			}
		}
	}

	// Constrained bodies only sleep together
	w.wakeConstrainedBodies()
}
