package piston

import (
	"testing"

	"github.com/akmonengine/piston/actor"
	"github.com/akmonengine/piston/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

type eventCapture struct {
	events []Event
}

func (ec *eventCapture) capture(event Event) {
	ec.events = append(ec.events, event)
}

func (ec *eventCapture) reset() {
	ec.events = ec.events[:0]
}

func (ec *eventCapture) count() int {
	return len(ec.events)
}

func (ec *eventCapture) countType(eventType EventType) int {
	n := 0
	for _, e := range ec.events {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

// createTestContact creates a ContactConstraint touching at a single point
func createTestContact(t *testing.T, bodyA, bodyB *actor.RigidBody) *constraint.ContactConstraint {
	t.Helper()

	c, err := constraint.NewContactConstraint(bodyA, bodyB, mgl64.Vec3{1, 0, 0}, []constraint.ContactPoint{
		{Position: mgl64.Vec3{0, 0, 0}, Penetration: 0.1},
	})
	if err != nil {
		t.Fatalf("NewContactConstraint() error = %v", err)
	}
	return c
}

// =============================================================================
// Subscribe and Listeners Tests
// =============================================================================

func TestEvents_Subscribe(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}

	events.Subscribe(LIMIT_ENTER, capture.capture)

	if len(events.listeners[LIMIT_ENTER]) != 1 {
		t.Errorf("Expected 1 listener for LIMIT_ENTER, got %d", len(events.listeners[LIMIT_ENTER]))
	}
}

func TestEvents_MultipleListeners(t *testing.T) {
	events := NewEvents()
	captures := []*eventCapture{{}, {}, {}}
	for _, capture := range captures {
		events.Subscribe(COLLISION_ENTER, capture.capture)
	}

	bodyA := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	bodyB := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

	events.recordContacts([]constraint.Constraint{createTestContact(t, bodyA, bodyB)})
	events.flush()

	for i, capture := range captures {
		if capture.count() != 1 {
			t.Errorf("Capture%d expected 1 event, got %d", i+1, capture.count())
		}
	}
}

func TestEvents_NoListeners(t *testing.T) {
	events := NewEvents()
	bodyA := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	bodyB := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

	events.recordContacts([]constraint.Constraint{createTestContact(t, bodyA, bodyB)})
	events.flush()

	if len(events.buffer) != 0 {
		t.Errorf("Expected an empty buffer after flush, got %d events", len(events.buffer))
	}
}

// =============================================================================
// makePairKey Tests
// =============================================================================

func TestMakePairKey_Normalization(t *testing.T) {
	bodyA := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	bodyB := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

	if makePairKey(bodyA, bodyB) != makePairKey(bodyB, bodyA) {
		t.Errorf("makePairKey should not depend on the order of the bodies")
	}
}

func TestMakePairKey_DifferentPairs(t *testing.T) {
	bodyA := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	bodyB := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	bodyC := newTestBody(mgl64.Vec3{2, 0, 0}, actor.BodyTypeDynamic)

	if makePairKey(bodyA, bodyB) == makePairKey(bodyA, bodyC) {
		t.Errorf("Different pairs should have different keys")
	}
}

// =============================================================================
// Collision Events Tests
// =============================================================================

func TestEvents_CollisionEnterStayExit(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	for _, eventType := range []EventType{COLLISION_ENTER, COLLISION_STAY, COLLISION_EXIT} {
		events.Subscribe(eventType, capture.capture)
	}

	bodyA := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	bodyB := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	contact := createTestContact(t, bodyA, bodyB)

	frames := []struct {
		name     string
		touching bool
		expected EventType
	}{
		{"enter", true, COLLISION_ENTER},
		{"stay", true, COLLISION_STAY},
		{"exit", false, COLLISION_EXIT},
		{"enter again", true, COLLISION_ENTER},
	}

	for _, frame := range frames {
		capture.reset()
		if frame.touching {
			events.recordContacts([]constraint.Constraint{contact})
		}
		events.flush()

		if capture.count() != 1 || capture.events[0].Type() != frame.expected {
			t.Errorf("frame %q: got %v, want a single event of type %d", frame.name, capture.events, frame.expected)
		}
	}
}

func TestEvents_EmptyManifoldIsNotAContact(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(COLLISION_ENTER, capture.capture)

	bodyA := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	bodyB := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	contact := createTestContact(t, bodyA, bodyB)
	contact.Update(mgl64.Vec3{1, 0, 0}, nil)

	events.recordContacts([]constraint.Constraint{contact})
	events.flush()

	if capture.count() != 0 {
		t.Errorf("Expected no event for an empty manifold, got %d", capture.count())
	}
}

func TestEvents_CollisionStay_SleepingBodies(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(COLLISION_STAY, capture.capture)

	bodyA := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	bodyB := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	contact := createTestContact(t, bodyA, bodyB)

	events.recordContacts([]constraint.Constraint{contact})
	events.flush()

	bodyA.Sleep()
	bodyB.Sleep()
	events.recordContacts([]constraint.Constraint{contact})
	events.flush()

	if capture.count() != 0 {
		t.Errorf("Expected no stay event between sleeping bodies, got %d", capture.count())
	}
}

// =============================================================================
// Limit Events Tests
// =============================================================================

func TestEvents_LimitEnterExit(t *testing.T) {
	world, body, joint := newRailWorld(t, constraint.SliderJointInfo{IsLimitsActive: true, LowerLimit: -1, UpperLimit: 0.5})
	world.Gravity = mgl64.Vec3{}

	capture := &eventCapture{}
	world.Events.Subscribe(LIMIT_ENTER, capture.capture)
	world.Events.Subscribe(LIMIT_EXIT, capture.capture)

	// Past the upper limit
	body.Transform.Position = mgl64.Vec3{2.6, 0, 0}
	world.Step(dt)

	if capture.count() != 1 || capture.countType(LIMIT_ENTER) != 1 {
		t.Fatalf("Expected a single LIMIT_ENTER, got %v", capture.events)
	}
	enter := capture.events[0].(LimitEnterEvent)
	if enter.Joint != joint || enter.Side != UpperLimit {
		t.Errorf("LimitEnterEvent = %+v, want the upper limit of the joint", enter)
	}

	// Still past it: no new event
	capture.reset()
	world.Step(dt)
	if capture.count() != 0 {
		t.Errorf("Expected no event while the limit stays violated, got %v", capture.events)
	}

	// Back inside the limits
	capture.reset()
	body.Transform.Position = mgl64.Vec3{2, 0, 0}
	body.Velocity = mgl64.Vec3{}
	world.Step(dt)

	if capture.count() != 1 || capture.countType(LIMIT_EXIT) != 1 {
		t.Fatalf("Expected a single LIMIT_EXIT, got %v", capture.events)
	}
	if exit := capture.events[0].(LimitExitEvent); exit.Side != UpperLimit {
		t.Errorf("LimitExitEvent side = %v, want upper", exit.Side)
	}
}

func TestEvents_LimitsInactive(t *testing.T) {
	world, body, _ := newRailWorld(t, constraint.SliderJointInfo{LowerLimit: -1, UpperLimit: 0.5})
	world.Gravity = mgl64.Vec3{}

	capture := &eventCapture{}
	world.Events.Subscribe(LIMIT_ENTER, capture.capture)

	body.Transform.Position = mgl64.Vec3{2.6, 0, 0}
	world.Step(dt)

	if capture.count() != 0 {
		t.Errorf("Expected no limit event with limits disabled, got %v", capture.events)
	}
}

func TestEvents_RemoveConstraintForgetsLimits(t *testing.T) {
	world, body, joint := newRailWorld(t, constraint.SliderJointInfo{IsLimitsActive: true, LowerLimit: -1, UpperLimit: 0.5})
	world.Gravity = mgl64.Vec3{}

	capture := &eventCapture{}
	world.Events.Subscribe(LIMIT_EXIT, capture.capture)

	body.Transform.Position = mgl64.Vec3{2.6, 0, 0}
	world.Step(dt)

	world.RemoveConstraint(joint)
	world.Step(dt)

	if capture.count() != 0 {
		t.Errorf("Expected no LIMIT_EXIT for a removed joint, got %v", capture.events)
	}
}

func TestLimitSideString(t *testing.T) {
	if LowerLimit.String() != "lower" || UpperLimit.String() != "upper" {
		t.Errorf("LimitSide.String() = %q, %q", LowerLimit.String(), UpperLimit.String())
	}
}

// =============================================================================
// Sleep/Wake Events Tests
// =============================================================================

func TestEvents_OnSleepOnWake(t *testing.T) {
	world := NewWorld()
	world.Gravity = mgl64.Vec3{}
	body := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	world.AddBody(body)

	capture := &eventCapture{}
	world.Events.Subscribe(ON_SLEEP, capture.capture)
	world.Events.Subscribe(ON_WAKE, capture.capture)

	for range 20 {
		world.Step(dt)
	}

	if capture.count() != 1 || capture.countType(ON_SLEEP) != 1 {
		t.Fatalf("Expected a single ON_SLEEP, got %v", capture.events)
	}
	if capture.events[0].(SleepEvent).Body != body {
		t.Errorf("SleepEvent for the wrong body")
	}

	capture.reset()
	body.AddForce(mgl64.Vec3{0, 60, 0})
	world.Step(dt)

	if capture.count() != 1 || capture.countType(ON_WAKE) != 1 {
		t.Fatalf("Expected a single ON_WAKE, got %v", capture.events)
	}
}

func TestEvents_NoSleepEvent_AlreadySleeping(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(ON_SLEEP, capture.capture)

	body := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	body.Sleep()

	// First sighting only records the state
	events.processSleepEvents([]*actor.RigidBody{body})
	events.processSleepEvents([]*actor.RigidBody{body})
	events.flush()

	if capture.count() != 0 {
		t.Errorf("Expected no ON_SLEEP for a body that was already sleeping, got %d", capture.count())
	}
}

func TestEvents_RemoveBodyForgetsState(t *testing.T) {
	world := NewWorld()
	a := newTestBody(mgl64.Vec3{}, actor.BodyTypeDynamic)
	b := newTestBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)
	world.AddBody(a)
	world.AddBody(b)

	contact := createTestContact(t, a, b)
	if err := world.AddConstraint(contact); err != nil {
		t.Fatalf("AddConstraint() error = %v", err)
	}
	world.Step(dt)

	world.RemoveBody(a)

	if _, ok := world.Events.sleepStates[a]; ok {
		t.Errorf("sleep state of a removed body is still tracked")
	}
	if world.Events.previousActivePairs[makePairKey(a, b)] {
		t.Errorf("contact pair of a removed body is still tracked")
	}
	if len(world.Constraints) != 0 {
		t.Errorf("the contact of a removed body is still in the world")
	}
}
