package constraint

import (
	"github.com/akmonengine/piston/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// SolverData is the step-scoped state shared by all constraints: one velocity slot per
// body and the map from body to slot. It is rebuilt by Reset at the start of every step.
type SolverData struct {
	TimeStep  float64
	Technique PositionCorrection

	LinearVelocities  []mgl64.Vec3
	AngularVelocities []mgl64.Vec3

	indices map[*actor.RigidBody]int
}

func NewSolverData() *SolverData {
	return &SolverData{
		indices: make(map[*actor.RigidBody]int),
	}
}

// Reset maps every body to a slot and copies its current velocities in.
// Slices and map are reused between steps.
func (d *SolverData) Reset(bodies []*actor.RigidBody, dt float64, technique PositionCorrection) {
	d.TimeStep = dt
	d.Technique = technique

	if d.indices == nil {
		d.indices = make(map[*actor.RigidBody]int, len(bodies))
	}
	clear(d.indices)

	d.LinearVelocities = d.LinearVelocities[:0]
	d.AngularVelocities = d.AngularVelocities[:0]

	for _, body := range bodies {
		if _, seen := d.indices[body]; seen {
			continue
		}
		d.indices[body] = len(d.LinearVelocities)
		d.LinearVelocities = append(d.LinearVelocities, body.Velocity)
		d.AngularVelocities = append(d.AngularVelocities, body.AngularVelocity)
	}
}

// Index returns the velocity slot of body
func (d *SolverData) Index(body *actor.RigidBody) (int, bool) {
	i, ok := d.indices[body]
	return i, ok
}

// Len returns the number of velocity slots
func (d *SolverData) Len() int {
	return len(d.LinearVelocities)
}

// Store writes the solved velocities back to the bodies whose motion is enabled
func (d *SolverData) Store(bodies []*actor.RigidBody) {
	for _, body := range bodies {
		if !body.IsMotionEnabled() {
			continue
		}
		i, ok := d.indices[body]
		if !ok {
			continue
		}
		body.Velocity = d.LinearVelocities[i]
		body.AngularVelocity = d.AngularVelocities[i]
	}
}
