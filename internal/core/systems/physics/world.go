package physics

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/fairway/internal/core/observability/log"
)

var _ Adapter = (*World)(nil)

// Config tunes the built-in engine.
type Config struct {
	Gravity  mgl64.Vec3
	SubSteps int
	// RestingSpeed is the normal approach speed under which contacts stop bouncing.
	RestingSpeed float64
}

func DefaultConfig() Config {
	return Config{
		Gravity:      mgl64.Vec3{0, -9.81, 0},
		SubSteps:     4,
		RestingSpeed: 0.3,
	}
}

type sphere struct {
	id             BodyID
	pos            mgl64.Vec3
	rot            mgl64.Quat
	vel            mgl64.Vec3
	angVel         mgl64.Vec3
	force          mgl64.Vec3
	radius         float64
	mass           float64
	inertia        float64
	restitution    float64
	friction       float64
	linearDamping  float64
	angularDamping float64
	grounded       bool
}

type staticBox struct {
	min, max          mgl64.Vec3
	restitution       float64
	friction          float64
	rollingResistance float64
}

type sensor struct {
	id       SensorID
	spec     SensorSpec
	callback SensorCallback
	inside   map[BodyID]bool
}

// World is a small rigid-body engine: dynamic spheres against static boxes,
// plus cylinder trigger volumes.
type World struct {
	mu      sync.RWMutex
	cfg     Config
	log     log.Log
	bodies  []*sphere
	statics []staticBox
	sensors []*sensor
	nextID  uint32
}

func NewWorld(cfg Config, logger log.Log) *World {
	if cfg.SubSteps <= 0 {
		cfg.SubSteps = 1
	}
	return &World{
		cfg: cfg,
		log: logger.Named("physics"),
	}
}

func (w *World) AddSphere(spec SphereSpec) (BodyID, error) {
	if spec.Radius <= 0 || spec.Mass <= 0 {
		return 0, fmt.Errorf("%w: sphere radius %v mass %v", ErrInvalidShape, spec.Radius, spec.Mass)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	b := &sphere{
		id:             BodyID(w.nextID),
		pos:            spec.Position,
		rot:            mgl64.QuatIdent(),
		radius:         spec.Radius,
		mass:           spec.Mass,
		inertia:        0.4 * spec.Mass * spec.Radius * spec.Radius,
		restitution:    spec.Restitution,
		friction:       spec.Friction,
		linearDamping:  spec.LinearDamping,
		angularDamping: spec.AngularDamping,
	}
	w.bodies = append(w.bodies, b)
	w.log.Debug("sphere added", log.Uint64("body", uint64(b.id)), log.Vector("position", spec.Position))
	return b.id, nil
}

func (w *World) AddStaticBox(spec BoxSpec) error {
	he := spec.HalfExtents
	if he.X() <= 0 || he.Y() <= 0 || he.Z() <= 0 {
		return fmt.Errorf("%w: box half extents %v", ErrInvalidShape, he)
	}
	w.mu.Lock()
	w.statics = append(w.statics, staticBox{
		min:               spec.Center.Sub(he),
		max:               spec.Center.Add(he),
		restitution:       spec.Restitution,
		friction:          spec.Friction,
		rollingResistance: spec.RollingResistance,
	})
	w.mu.Unlock()
	return nil
}

func (w *World) AddSensor(spec SensorSpec, cb SensorCallback) (SensorID, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}
	if spec.Radius <= 0 || spec.Height <= 0 {
		return 0, fmt.Errorf("%w: sensor radius %v height %v", ErrInvalidShape, spec.Radius, spec.Height)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	s := &sensor{id: SensorID(w.nextID), spec: spec, callback: cb, inside: make(map[BodyID]bool)}
	w.sensors = append(w.sensors, s)
	return s.id, nil
}

func (w *World) ApplyImpulse(id BodyID, impulse mgl64.Vec3) error {
	return w.mutate(id, func(b *sphere) {
		b.vel = b.vel.Add(impulse.Mul(1 / b.mass))
	})
}

func (w *World) SetAngularVelocity(id BodyID, angVel mgl64.Vec3) error {
	return w.mutate(id, func(b *sphere) {
		b.angVel = angVel
	})
}

func (w *World) ApplyForce(id BodyID, f mgl64.Vec3) error {
	return w.mutate(id, func(b *sphere) {
		b.force = b.force.Add(f)
	})
}

func (w *World) Teleport(id BodyID, position mgl64.Vec3) error {
	err := w.mutate(id, func(b *sphere) {
		b.pos = position
		b.vel = mgl64.Vec3{}
		b.angVel = mgl64.Vec3{}
		b.force = mgl64.Vec3{}
		b.grounded = false
	})
	if err != nil {
		return err
	}
	w.mu.Lock()
	for _, s := range w.sensors {
		delete(s.inside, id)
	}
	w.mu.Unlock()
	return nil
}

func (w *World) State(id BodyID) (BodyState, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b := w.find(id)
	if b == nil {
		return BodyState{}, fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	return BodyState{
		ID:              b.id,
		Position:        b.pos,
		Rotation:        b.rot,
		LinearVelocity:  b.vel,
		AngularVelocity: b.angVel,
		Radius:          b.radius,
		Mass:            b.mass,
		Restitution:     b.restitution,
		LinearDamping:   b.linearDamping,
		AngularDamping:  b.angularDamping,
		Grounded:        b.grounded,
	}, nil
}

func (w *World) IsSettled(id BodyID, linearThreshold, angularThreshold float64) (bool, error) {
	st, err := w.State(id)
	if err != nil {
		return false, err
	}
	return st.LinearVelocity.Len() < linearThreshold && st.AngularVelocity.Len() < angularThreshold, nil
}

// Step advances the world by dt split into fixed sub-steps, then clears
// accumulated forces and fires sensor callbacks for new overlaps.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	w.mu.Lock()
	h := dt / float64(w.cfg.SubSteps)
	var events []func()
	for i := 0; i < w.cfg.SubSteps; i++ {
		for _, b := range w.bodies {
			w.integrate(b, h)
			w.collide(b, h)
			events = append(events, w.detectSensors(b)...)
		}
	}
	for _, b := range w.bodies {
		b.force = mgl64.Vec3{}
	}
	w.mu.Unlock()

	for _, fire := range events {
		fire()
	}
}

func (w *World) integrate(b *sphere, h float64) {
	acc := w.cfg.Gravity.Add(b.force.Mul(1 / b.mass))
	b.vel = b.vel.Add(acc.Mul(h))
	b.vel = b.vel.Mul(dampingFactor(b.linearDamping, h))
	b.angVel = b.angVel.Mul(dampingFactor(b.angularDamping, h))
	b.pos = b.pos.Add(b.vel.Mul(h))
	b.rot = integrateRotation(b.rot, b.angVel, h)
}

func (w *World) collide(b *sphere, h float64) {
	b.grounded = false
	for _, box := range w.statics {
		closest := clampVec(b.pos, box.min, box.max)
		delta := b.pos.Sub(closest)
		dist := delta.Len()
		if dist >= b.radius {
			continue
		}

		var normal mgl64.Vec3
		var penetration float64
		if dist > 1e-9 {
			normal = delta.Mul(1 / dist)
			penetration = b.radius - dist
		} else {
			// centre inside the box: resolve through the top face
			normal = mgl64.Vec3{0, 1, 0}
			penetration = box.max.Y() - b.pos.Y() + b.radius
		}
		b.pos = b.pos.Add(normal.Mul(penetration))
		ground := normal.Y() > 0.7
		if ground {
			b.grounded = true
		}

		w.resolveContact(b, box, normal)
		if ground {
			applyRollingResistance(b, box.rollingResistance*math.Abs(w.cfg.Gravity.Y()), normal, h)
		}
	}
}

// resolveContact applies a restitution impulse along normal and a Coulomb-clamped
// friction impulse at the contact point.
func (w *World) resolveContact(b *sphere, box staticBox, normal mgl64.Vec3) {
	rA := normal.Mul(-b.radius)
	vContact := b.vel.Add(b.angVel.Cross(rA))
	vn := vContact.Dot(normal)
	if vn >= 0 {
		return
	}

	e := (b.restitution + box.restitution) * 0.5
	if -vn < w.cfg.RestingSpeed {
		e = 0
	}
	j := -(1 + e) * vn * b.mass
	b.vel = b.vel.Add(normal.Mul(j / b.mass))

	tangent := vContact.Sub(normal.Mul(vn))
	speed := tangent.Len()
	if speed < 1e-6 {
		return
	}
	tangent = tangent.Mul(1 / speed)
	mu := (b.friction + box.friction) * 0.5
	denom := 1/b.mass + b.radius*b.radius/b.inertia
	jt := -speed / denom
	if limit := mu * j; -jt > limit {
		jt = -limit
	}
	fImpulse := tangent.Mul(jt)
	b.vel = b.vel.Add(fImpulse.Mul(1 / b.mass))
	b.angVel = b.angVel.Add(rA.Cross(fImpulse).Mul(1 / b.inertia))
}

// applyRollingResistance removes a constant deceleration from the tangential
// motion of a grounded body and scales its spin by the same ratio.
func applyRollingResistance(b *sphere, decel float64, normal mgl64.Vec3, h float64) {
	if decel <= 0 {
		return
	}
	vt := b.vel.Sub(normal.Mul(b.vel.Dot(normal)))
	speed := vt.Len()
	if speed == 0 {
		b.angVel = b.angVel.Mul(math.Max(0, 1-decel*h))
		return
	}
	scale := math.Max(0, 1-decel*h/speed)
	b.vel = b.vel.Sub(vt.Mul(1 - scale))
	b.angVel = b.angVel.Mul(scale)
}

func (w *World) detectSensors(b *sphere) []func() {
	var fired []func()
	for _, s := range w.sensors {
		in := s.contains(b.pos)
		was := s.inside[b.id]
		s.inside[b.id] = in
		if !in || was {
			continue
		}
		ev := SensorEvent{Sensor: s.id, Name: s.spec.Name, Body: b.id, Position: b.pos}
		cb := s.callback
		w.log.Debug("sensor entered", log.String("sensor", s.spec.Name), log.Vector("position", b.pos))
		fired = append(fired, func() { cb(ev) })
	}
	return fired
}

func (s *sensor) contains(p mgl64.Vec3) bool {
	dx := p.X() - s.spec.Center.X()
	dz := p.Z() - s.spec.Center.Z()
	if dx*dx+dz*dz > s.spec.Radius*s.spec.Radius {
		return false
	}
	return math.Abs(p.Y()-s.spec.Center.Y()) <= s.spec.Height/2
}

func (w *World) mutate(id BodyID, fn func(b *sphere)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.find(id)
	if b == nil {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	fn(b)
	return nil
}

func (w *World) find(id BodyID) *sphere {
	for _, b := range w.bodies {
		if b.id == id {
			return b
		}
	}
	return nil
}
