package state

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/fairway/internal/core/events/bus"
)

// Topic is the bus topic every store change is published on. The event type is
// the field name.
const Topic = "state"

// AnyField subscribes to every field.
const AnyField = bus.AnyType

const (
	FieldScore         = "score"
	FieldBallInHole    = "ballInHole"
	FieldDevMode       = "devMode"
	FieldWindSpeed     = "windSpeed"
	FieldWindDirection = "windDirection"
	FieldBackSpin      = "backSpinReadout"
	FieldSideSpin      = "sideSpinReadout"
	FieldBallMoving    = "isBallMoving"
	FieldPhase         = "phase"
	FieldBall          = "ball"
)

var knownFields = map[string]struct{}{
	FieldScore: {}, FieldBallInHole: {}, FieldDevMode: {}, FieldWindSpeed: {},
	FieldWindDirection: {}, FieldBackSpin: {}, FieldSideSpin: {}, FieldBallMoving: {},
	FieldPhase: {}, FieldBall: {}, AnyField: {},
}

// BallMirror is the read-only copy of the ball transform handed to renderers.
// Rotation is ordered x, y, z, w.
type BallMirror struct {
	Position        mgl64.Vec3 `json:"position"`
	Rotation        [4]float64 `json:"rotation"`
	LinearVelocity  mgl64.Vec3 `json:"linearVelocity"`
	AngularVelocity mgl64.Vec3 `json:"angularVelocity"`
}

// MirrorOf converts a position, orientation and velocities into a BallMirror.
func MirrorOf(position mgl64.Vec3, rotation mgl64.Quat, linear, angular mgl64.Vec3) BallMirror {
	return BallMirror{
		Position:        position,
		Rotation:        [4]float64{rotation.V[0], rotation.V[1], rotation.V[2], rotation.W},
		LinearVelocity:  linear,
		AngularVelocity: angular,
	}
}

// Snapshot is a consistent-enough copy of the game state. Fields are read one at
// a time, so a snapshot taken during a tick may straddle two writes.
type Snapshot struct {
	Score           int        `json:"score"`
	BallInHole      bool       `json:"ballInHole"`
	DevMode         bool       `json:"devMode"`
	WindSpeed       float64    `json:"windSpeed"`
	WindDirection   mgl64.Vec3 `json:"windDirection"`
	BackSpinReadout float64    `json:"backSpinReadout"`
	SideSpinReadout float64    `json:"sideSpinReadout"`
	IsBallMoving    bool       `json:"isBallMoving"`
	Phase           string     `json:"phase"`
	Ball            BallMirror `json:"ball"`
	Tick            uint64     `json:"tick"`
	Version         uint64     `json:"version"`
}

// Change describes one accepted write.
type Change struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Version uint64 `json:"version"`
}
