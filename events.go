package piston

import (
	"unsafe"

	"github.com/akmonengine/piston/actor"
	"github.com/akmonengine/piston/constraint"
)

const (
	COLLISION_ENTER EventType = iota
	COLLISION_STAY
	COLLISION_EXIT
	LIMIT_ENTER
	LIMIT_EXIT
	ON_SLEEP
	ON_WAKE
)

// LimitSide tells which end of a slider's travel an event refers to
type LimitSide uint8

const (
	LowerLimit LimitSide = iota
	UpperLimit
)

func (s LimitSide) String() string {
	if s == LowerLimit {
		return "lower"
	}
	return "upper"
}

type pairKey struct {
	bodyA *actor.RigidBody
	bodyB *actor.RigidBody
}

// makePairKey creates a normalized pair key with consistent ordering
func makePairKey(bodyA, bodyB *actor.RigidBody) pairKey {
	ptrA := uintptr(unsafe.Pointer(bodyA))
	ptrB := uintptr(unsafe.Pointer(bodyB))

	if ptrB < ptrA {
		bodyA, bodyB = bodyB, bodyA
	}

	return pairKey{bodyA: bodyA, bodyB: bodyB}
}

type limitKey struct {
	joint *constraint.SliderJoint
	side  LimitSide
}

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Contact events
type CollisionEnterEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// Limit events, a slider reached or left one end of its travel
type LimitEnterEvent struct {
	Joint *constraint.SliderJoint
	Side  LimitSide
}

func (e LimitEnterEvent) Type() EventType { return LIMIT_ENTER }

type LimitExitEvent struct {
	Joint *constraint.SliderJoint
	Side  LimitSide
}

func (e LimitExitEvent) Type() EventType { return LIMIT_EXIT }

// Sleep/Wake events
type SleepEvent struct {
	Body *actor.RigidBody
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body *actor.RigidBody
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// EventListener - callback for events
type EventListener func(event Event)

// Events buffers what happens during a step and dispatches it to the listeners at the end
type Events struct {
	listeners map[EventType][]EventListener

	buffer []Event

	// Contact tracking for Enter/Stay/Exit detection
	previousActivePairs map[pairKey]bool
	currentActivePairs  map[pairKey]bool

	// Limits violated at the previous and current step
	previousLimits map[limitKey]bool
	currentLimits  map[limitKey]bool

	sleepStates map[*actor.RigidBody]bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[pairKey]bool),
		currentActivePairs:  make(map[pairKey]bool),
		previousLimits:      make(map[limitKey]bool),
		currentLimits:       make(map[limitKey]bool),
		sleepStates:         make(map[*actor.RigidBody]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordContacts marks every pair with a non-empty contact manifold as touching
func (e *Events) recordContacts(constraints []constraint.Constraint) {
	for _, c := range constraints {
		contact, ok := c.(*constraint.ContactConstraint)
		if !ok || len(contact.Points) == 0 {
			continue
		}
		e.currentActivePairs[makePairKey(contact.Body1, contact.Body2)] = true
	}
}

// recordLimits is called after every solve, a limit violated during any substep counts
func (e *Events) recordLimits(constraints []constraint.Constraint) {
	for _, c := range constraints {
		joint, ok := c.(*constraint.SliderJoint)
		if !ok || !joint.IsLimitsActive() {
			continue
		}

		lower, upper := joint.LimitsViolated()
		if lower {
			e.currentLimits[limitKey{joint: joint, side: LowerLimit}] = true
		}
		if upper {
			e.currentLimits[limitKey{joint: joint, side: UpperLimit}] = true
		}
	}
}

// processCollisionEvents compares current and previous pairs to detect Enter/Stay/Exit
// Should be called after all substeps
func (e *Events) processCollisionEvents() {
	for pair := range e.currentActivePairs {
		// Skip if both bodies are sleeping, to avoid spamming events
		if pair.bodyA.IsSleeping && pair.bodyB.IsSleeping {
			continue
		}

		if e.previousActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionStayEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		} else {
			e.buffer = append(e.buffer, CollisionEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		}
	}

	for pair := range e.previousActivePairs {
		if !e.currentActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		}
	}

	// Swap for next frame and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

func (e *Events) processLimitEvents() {
	for key := range e.currentLimits {
		if !e.previousLimits[key] {
			e.buffer = append(e.buffer, LimitEnterEvent{Joint: key.joint, Side: key.side})
		}
	}

	for key := range e.previousLimits {
		if !e.currentLimits[key] {
			e.buffer = append(e.buffer, LimitExitEvent{Joint: key.joint, Side: key.side})
		}
	}

	e.previousLimits, e.currentLimits = e.currentLimits, e.previousLimits
	clear(e.currentLimits)
}

func (e *Events) processSleepEvents(bodies []*actor.RigidBody) {
	for _, body := range bodies {
		trackedState, exists := e.sleepStates[body]
		if !exists {
			e.sleepStates[body] = body.IsSleeping
			continue
		}

		if !trackedState && body.IsSleeping {
			e.buffer = append(e.buffer, SleepEvent{Body: body})
			e.sleepStates[body] = true
		} else if trackedState && !body.IsSleeping {
			e.buffer = append(e.buffer, WakeEvent{Body: body})
			e.sleepStates[body] = false
		}
	}
}

// forgetBody drops every tracked state involving body
func (e *Events) forgetBody(body *actor.RigidBody) {
	delete(e.sleepStates, body)
	for pair := range e.previousActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(e.previousActivePairs, pair)
		}
	}
}

// forgetConstraint drops the limit states of a removed joint
func (e *Events) forgetConstraint(c constraint.Constraint) {
	joint, ok := c.(*constraint.SliderJoint)
	if !ok {
		return
	}
	delete(e.previousLimits, limitKey{joint: joint, side: LowerLimit})
	delete(e.previousLimits, limitKey{joint: joint, side: UpperLimit})
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processCollisionEvents()
	e.processLimitEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
