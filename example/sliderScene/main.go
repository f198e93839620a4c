package main

import (
	"fmt"
	"log"

	"github.com/akmonengine/piston"
	"github.com/akmonengine/piston/actor"
	"github.com/akmonengine/piston/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// SetupScene creates a static rail with a motorized carriage sliding along X,
// and a ball dropped on the ground next to it.
func SetupScene() (*piston.World, *constraint.SliderJoint, *actor.RigidBody, *actor.RigidBody) {
	world := piston.NewWorld()
	world.Substeps = 2

	rail := actor.NewRigidBody(actor.NewTransform(), &actor.Box{HalfExtents: mgl64.Vec3{3, 0.1, 0.1}}, actor.BodyTypeStatic, 0)
	world.AddBody(rail)

	carriage := actor.NewRigidBody(
		actor.NewTransformAt(mgl64.Vec3{0, 0.3, 0}, mgl64.QuatIdent()),
		&actor.Box{HalfExtents: mgl64.Vec3{0.25, 0.2, 0.2}},
		actor.BodyTypeDynamic,
		500.0,
	)
	world.AddBody(carriage)

	joint, err := constraint.NewSliderJoint(constraint.SliderJointInfo{
		Body1:            rail,
		Body2:            carriage,
		AnchorPointWorld: carriage.Transform.Position,
		SliderAxisWorld:  mgl64.Vec3{1, 0, 0},
		IsLimitsActive:   true,
		LowerLimit:       -1.0,
		UpperLimit:       2.0,
		IsMotorActive:    true,
		MotorSpeed:       1.5,
		MaxMotorForce:    200.0,
	})
	if err != nil {
		log.Fatalf("slider scene: %v", err)
	}
	if err := world.AddConstraint(joint); err != nil {
		log.Fatalf("slider scene: %v", err)
	}

	ground := actor.NewRigidBody(
		actor.NewTransformAt(mgl64.Vec3{0, -2, 0}, mgl64.QuatIdent()),
		&actor.Plane{Normal: mgl64.Vec3{0, 1, 0}},
		actor.BodyTypeStatic,
		0,
	)
	ground.Material.Restitution = 0.5
	ground.Material.Friction = 0.6
	world.AddBody(ground)

	ball := actor.NewRigidBody(
		actor.NewTransformAt(mgl64.Vec3{4, 1, 0}, mgl64.QuatIdent()),
		&actor.Sphere{Radius: 0.5},
		actor.BodyTypeDynamic,
		1000.0,
	)
	ball.Material.Restitution = 0.5
	ball.Material.Friction = 0.6
	world.AddBody(ball)

	return world, joint, ground, ball
}

// groundContact returns the contact of a ball resting on the ground plane, if any
func groundContact(ground, ball *actor.RigidBody) []constraint.ContactPoint {
	radius := ball.Shape.(*actor.Sphere).Radius
	penetration := ground.Transform.Position.Y() - (ball.Transform.Position.Y() - radius)
	if penetration < 0 {
		return nil
	}

	bottom := ball.Transform.Position.Sub(mgl64.Vec3{0, radius - penetration/2, 0})
	return []constraint.ContactPoint{{Position: bottom, Penetration: penetration}}
}

func main() {
	world, joint, ground, ball := SetupScene()

	world.Events.Subscribe(piston.LIMIT_ENTER, func(event piston.Event) {
		e := event.(piston.LimitEnterEvent)
		fmt.Printf("  carriage reached its %s limit at %.3f\n", e.Side, e.Joint.Translation())

		// Bounce between both ends of the rail
		e.Joint.SetMotorSpeed(-e.Joint.MotorSpeed())
	})
	world.Events.Subscribe(piston.COLLISION_ENTER, func(event piston.Event) {
		fmt.Printf("  ball hit the ground at %v\n", ball.Transform.Position)
	})
	world.Events.Subscribe(piston.ON_SLEEP, func(event piston.Event) {
		fmt.Printf("  body at %v fell asleep\n", event.(piston.SleepEvent).Body.Transform.Position)
	})

	contact, err := constraint.NewContactConstraint(ground, ball, mgl64.Vec3{0, 1, 0}, nil)
	if err != nil {
		log.Fatalf("slider scene: %v", err)
	}
	if err := world.AddConstraint(contact); err != nil {
		log.Fatalf("slider scene: %v", err)
	}

	const dt float64 = 1.0 / 60.0
	const maxSteps int = 600

	for step := 0; step < maxSteps; step++ {
		// No collision detection here: the ball against the plane is computed by hand
		contact.Update(mgl64.Vec3{0, 1, 0}, groundContact(ground, ball))

		world.Step(dt)

		if step%60 == 0 {
			lower, upper := joint.LimitsViolated()
			fmt.Printf("--- t=%.1fs ---\n", float64(step)*dt)
			fmt.Printf("Carriage:\n")
			fmt.Printf("  Translation: %.4f (limits hit: %v %v)\n", joint.Translation(), lower, upper)
			fmt.Printf("  Off-axis impulse: %v\n", joint.ImpulseTranslation())
			fmt.Printf("  Motor impulse: %.4f\n", joint.ImpulseMotor())
			fmt.Printf("Ball:\n")
			fmt.Printf("  Position: %v\n", ball.Transform.Position)
			fmt.Printf("  Velocity: %v\n", ball.Velocity)
		}
	}
}
