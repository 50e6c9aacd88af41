package physics

import "github.com/go-gl/mathgl/mgl64"

// BodyID identifies a dynamic body inside an Adapter.
type BodyID uint32

// SensorID identifies a sensor volume inside an Adapter.
type SensorID uint32

// Adapter is the rigid-body contract the simulation core depends on. Any engine
// that can host a dynamic sphere, a static course and trigger volumes satisfies it.
//
// Mutating calls are expected from the tick goroutine only. State and IsSettled
// may be called concurrently with Step and observe the last completed step.
type Adapter interface {
	Reader

	AddSphere(spec SphereSpec) (BodyID, error)
	AddStaticBox(spec BoxSpec) error
	// AddSensor registers a trigger volume. The callback runs inside Step, after
	// the world lock is released, once per body entering the volume.
	AddSensor(spec SensorSpec, cb SensorCallback) (SensorID, error)

	ApplyImpulse(id BodyID, impulse mgl64.Vec3) error
	SetAngularVelocity(id BodyID, w mgl64.Vec3) error
	// ApplyForce accumulates a force consumed by the next Step only.
	ApplyForce(id BodyID, f mgl64.Vec3) error
	// Teleport moves the body and zeroes its velocities and pending force.
	Teleport(id BodyID, position mgl64.Vec3) error

	Step(dt float64)
}

// Reader is the read-only side of an Adapter.
type Reader interface {
	State(id BodyID) (BodyState, error)
	IsSettled(id BodyID, linearThreshold, angularThreshold float64) (bool, error)
}

type SphereSpec struct {
	Position       mgl64.Vec3
	Radius         float64
	Mass           float64
	Restitution    float64
	Friction       float64
	LinearDamping  float64
	AngularDamping float64
}

// BoxSpec describes a static axis-aligned box.
type BoxSpec struct {
	Center            mgl64.Vec3
	HalfExtents       mgl64.Vec3
	Restitution       float64
	Friction          float64
	RollingResistance float64
}

// SensorSpec describes a vertical cylinder trigger volume centred on Center.
type SensorSpec struct {
	Name   string
	Center mgl64.Vec3
	Radius float64
	Height float64
}

type SensorEvent struct {
	Sensor   SensorID
	Name     string
	Body     BodyID
	Position mgl64.Vec3
}

type SensorCallback func(SensorEvent)

// BodyState is a copy of a dynamic body at the end of the last step.
type BodyState struct {
	ID              BodyID
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3

	Radius         float64
	Mass           float64
	Restitution    float64
	LinearDamping  float64
	AngularDamping float64

	Grounded bool
}

// Finite reports whether every kinematic component is a finite number.
func (s BodyState) Finite() bool {
	return FiniteVec(s.Position) && FiniteVec(s.LinearVelocity) && FiniteVec(s.AngularVelocity)
}
