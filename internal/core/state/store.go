package state

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/sync/vars"
	"github.com/zeusync/fairway/pkg/generic"
)

// Store holds the game state for one session. Every setter is total: values it
// cannot represent (negative score, non-finite numbers) are clamped or ignored,
// never rejected with an error. Writes equal to the current value are dropped
// without notification.
type Store struct {
	events bus.EventBus
	log    log.Log

	score         *vars.Value[int]
	ballInHole    *vars.Value[bool]
	devMode       *vars.Value[bool]
	windSpeed     *vars.Value[float64]
	windDirection *vars.Value[mgl64.Vec3]
	backSpin      *vars.Value[float64]
	sideSpin      *vars.Value[float64]
	ballMoving    *vars.Value[bool]
	phase         *vars.Value[string]
	ball          *vars.Value[BallMirror]

	tick    atomic.Uint64
	version atomic.Uint64

	holdMu  sync.Mutex
	held    bool
	pending []Change
}

// Initial seeds a Store. Zero value is a valid starting state.
type Initial struct {
	DevMode       bool
	WindSpeed     float64
	// WindDirection is normalized; a zero or non-finite vector falls back to +Z.
	WindDirection mgl64.Vec3
	Phase         string
	Ball          BallMirror
}

func New(events bus.EventBus, logger log.Log, initial Initial) *Store {
	s := &Store{
		events:        events,
		log:           logger.Named("state"),
		score:         vars.NewValue(0),
		ballInHole:    vars.NewValue(false),
		devMode:       vars.NewValue(initial.DevMode),
		windSpeed:     vars.NewValue(math.Max(0, initial.WindSpeed)),
		windDirection: vars.NewValue(initialWindDirection(initial.WindDirection)),
		backSpin:      vars.NewValue(0.0),
		sideSpin:      vars.NewValue(0.0),
		ballMoving:    vars.NewValue(false),
		phase:         vars.NewValue(initial.Phase),
		ball:          vars.NewValue(initial.Ball),
	}
	_ = events.CreateTopic(Topic)

	watch(s, FieldScore, s.score)
	watch(s, FieldBallInHole, s.ballInHole)
	watch(s, FieldDevMode, s.devMode)
	watch(s, FieldWindSpeed, s.windSpeed)
	watch(s, FieldWindDirection, s.windDirection)
	watch(s, FieldBackSpin, s.backSpin)
	watch(s, FieldSideSpin, s.sideSpin)
	watch(s, FieldBallMoving, s.ballMoving)
	watch(s, FieldPhase, s.phase)
	watch(s, FieldBall, s.ball)
	return s
}

func watch[T comparable](s *Store, field string, v *vars.Value[T]) {
	v.OnChange(func(_, newValue T) {
		s.emit(field, newValue)
	})
}

func (s *Store) emit(field string, value any) {
	change := Change{Field: field, Value: value, Version: s.version.Add(1)}

	s.holdMu.Lock()
	if s.held {
		s.pending = append(s.pending, change)
		s.holdMu.Unlock()
		return
	}
	s.holdMu.Unlock()

	s.publish(change)
}

func (s *Store) publish(change Change) {
	if err := s.events.PublishToTopic(Topic, bus.NewEvent(change.Field, "state", change)); err != nil {
		s.log.Warn("state subscriber failed", log.String("field", change.Field), log.Error(err))
	}
}

// Hold defers notifications until Flush. Writes still apply immediately.
func (s *Store) Hold() {
	s.holdMu.Lock()
	s.held = true
	s.holdMu.Unlock()
}

// Flush delivers every change written since Hold, in write order.
func (s *Store) Flush() {
	s.holdMu.Lock()
	pending := s.pending
	s.pending = nil
	s.held = false
	s.holdMu.Unlock()

	for _, change := range pending {
		s.publish(change)
	}
}

// Subscribe registers fn for changes to field, or to every field with AnyField.
func (s *Store) Subscribe(field string, fn func(Change)) (bus.Subscription, error) {
	if _, ok := knownFields[field]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return s.events.SubscribeTopic(Topic, field, func(e bus.Event) error {
		if change, ok := e.Data().(Change); ok {
			fn(change)
		}
		return nil
	})
}

func (s *Store) SetScore(score int) bool {
	return s.score.Set(max(0, score))
}

// IncrementScore adds one atomically and returns the new score.
func (s *Store) IncrementScore() int {
	n, _ := s.score.Update(func(n int) int { return n + 1 })
	return n
}

func (s *Store) SetBallInHole(v bool) bool { return s.ballInHole.Set(v) }

func (s *Store) SetDevMode(v bool) bool { return s.devMode.Set(v) }

// ToggleDevMode flips the flag and returns the new value.
func (s *Store) ToggleDevMode() bool {
	v, _ := s.devMode.Update(func(b bool) bool { return !b })
	return v
}

func (s *Store) SetWindSpeed(speed float64) bool {
	if !finite(speed) {
		return false
	}
	return s.windSpeed.Set(math.Max(0, speed))
}

// SetWindDirection stores dir normalized. Zero-length or non-finite vectors are
// ignored.
func (s *Store) SetWindDirection(dir mgl64.Vec3) bool {
	unit, ok := unitVec(dir)
	if !ok {
		return false
	}
	return s.windDirection.Set(unit)
}

// SetSpinReadouts stores both readouts; a non-finite pair is ignored.
func (s *Store) SetSpinReadouts(back, side float64) bool {
	if !finite(back) || !finite(side) {
		return false
	}
	a := s.backSpin.Set(back)
	b := s.sideSpin.Set(side)
	return a || b
}

func (s *Store) SetBallMoving(v bool) bool { return s.ballMoving.Set(v) }

func (s *Store) SetPhase(phase string) bool { return s.phase.Set(phase) }

// SetBall mirrors the ball transform. Non-finite transforms are ignored.
func (s *Store) SetBall(m BallMirror) bool {
	if !finiteVec(m.Position) || !finiteVec(m.LinearVelocity) || !finiteVec(m.AngularVelocity) {
		return false
	}
	for _, c := range m.Rotation {
		if !finite(c) {
			return false
		}
	}
	return s.ball.Set(m)
}

// SetTick records the last completed tick. It does not notify.
func (s *Store) SetTick(tick uint64) { s.tick.Store(tick) }

func (s *Store) Score() int                         { return s.score.Get() }
func (s *Store) BallInHole() bool                   { return s.ballInHole.Get() }
func (s *Store) DevMode() bool                      { return s.devMode.Get() }
func (s *Store) WindSpeed() float64                 { return s.windSpeed.Get() }
func (s *Store) WindDirection() mgl64.Vec3          { return s.windDirection.Get() }
func (s *Store) BallMoving() bool                   { return s.ballMoving.Get() }
func (s *Store) Phase() string                      { return s.phase.Get() }
func (s *Store) Ball() BallMirror                   { return s.ball.Get() }
func (s *Store) Tick() uint64                       { return s.tick.Load() }
func (s *Store) Version() uint64                    { return s.version.Load() }
func (s *Store) SpinReadouts() (back, side float64) { return s.backSpin.Get(), s.sideSpin.Get() }

func (s *Store) Snapshot() Snapshot {
	back, side := s.SpinReadouts()
	return Snapshot{
		Score:           s.Score(),
		BallInHole:      s.BallInHole(),
		DevMode:         s.DevMode(),
		WindSpeed:       s.WindSpeed(),
		WindDirection:   s.WindDirection(),
		BackSpinReadout: back,
		SideSpinReadout: side,
		IsBallMoving:    s.BallMoving(),
		Phase:           s.Phase(),
		Ball:            s.Ball(),
		Tick:            s.Tick(),
		Version:         s.Version(),
	}
}

// Digest hashes everything a renderer draws. Tick and Version are excluded so
// two identical frames share a digest.
func Digest(snap Snapshot) uint64 {
	bp := digestBuffers.Get()
	defer digestBuffers.Put(bp)

	buf := *bp
	putF := func(f float64) { buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f)) }
	putB := func(b bool) {
		if b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	buf = binary.LittleEndian.AppendUint64(buf, uint64(snap.Score))
	putB(snap.BallInHole)
	putB(snap.DevMode)
	putB(snap.IsBallMoving)
	putF(snap.WindSpeed)
	putF(snap.WindDirection[0])
	putF(snap.WindDirection[1])
	putF(snap.WindDirection[2])
	putF(snap.BackSpinReadout)
	putF(snap.SideSpinReadout)
	for _, v := range [...]mgl64.Vec3{snap.Ball.Position, snap.Ball.LinearVelocity, snap.Ball.AngularVelocity} {
		putF(v[0])
		putF(v[1])
		putF(v[2])
	}
	for _, c := range snap.Ball.Rotation {
		putF(c)
	}
	buf = append(buf, snap.Phase...)
	*bp = buf
	return xxhash.Sum64(buf)
}

var digestBuffers = generic.NewPool(
	func() *[]byte {
		b := make([]byte, 0, 256)
		return &b
	},
	func(b *[]byte) *[]byte {
		*b = (*b)[:0]
		return b
	},
)

func (s *Store) Digest() uint64 {
	return Digest(s.Snapshot())
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finiteVec(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

// DefaultWindDirection points down the fairway.
var DefaultWindDirection = mgl64.Vec3{0, 0, 1}

func unitVec(v mgl64.Vec3) (mgl64.Vec3, bool) {
	if !finiteVec(v) {
		return mgl64.Vec3{}, false
	}
	l := v.Len()
	if l == 0 || !finite(l) {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / l), true
}

func initialWindDirection(v mgl64.Vec3) mgl64.Vec3 {
	if unit, ok := unitVec(v); ok {
		return unit
	}
	return DefaultWindDirection
}
