// Package config loads the simulation settings from YAML or TOML files, a .env
// file and FAIRWAY_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/fairway/internal/core/launch"
)

type Config struct {
	Log        LogConfig         `yaml:"log" toml:"log"`
	Simulation SimulationConfig  `yaml:"simulation" toml:"simulation"`
	Ball       BallConfig        `yaml:"ball" toml:"ball"`
	Course     CourseConfig      `yaml:"course" toml:"course"`
	Hole       HoleConfig        `yaml:"hole" toml:"hole"`
	Aero       AeroConfig        `yaml:"aero" toml:"aero"`
	Lifecycle  LifecycleConfig   `yaml:"lifecycle" toml:"lifecycle"`
	Telemetry  TelemetryConfig   `yaml:"telemetry" toml:"telemetry"`
	Swing      launch.Parameters `yaml:"swing" toml:"swing"`
	Bridge     BridgeConfig      `yaml:"bridge" toml:"bridge"`
	DevMode    bool              `yaml:"dev_mode" toml:"dev_mode"`
}

type LogConfig struct {
	Level    string `yaml:"level" toml:"level"`
	Encoding string `yaml:"encoding" toml:"encoding"`
}

type SimulationConfig struct {
	// TickRate is the number of ticks per second driven by Session.Run.
	TickRate     int        `yaml:"tick_rate" toml:"tick_rate"`
	SubSteps     int        `yaml:"sub_steps" toml:"sub_steps"`
	Gravity      mgl64.Vec3 `yaml:"gravity" toml:"gravity"`
	RestingSpeed float64    `yaml:"resting_speed" toml:"resting_speed"`
}

type BallConfig struct {
	Start          mgl64.Vec3 `yaml:"start" toml:"start"`
	Radius         float64    `yaml:"radius" toml:"radius"`
	Mass           float64    `yaml:"mass" toml:"mass"`
	Restitution    float64    `yaml:"restitution" toml:"restitution"`
	Friction       float64    `yaml:"friction" toml:"friction"`
	LinearDamping  float64    `yaml:"linear_damping" toml:"linear_damping"`
	AngularDamping float64    `yaml:"angular_damping" toml:"angular_damping"`
}

// CourseConfig is the static playing surface, an axis-aligned slab.
type CourseConfig struct {
	Center            mgl64.Vec3 `yaml:"center" toml:"center"`
	HalfExtents       mgl64.Vec3 `yaml:"half_extents" toml:"half_extents"`
	Restitution       float64    `yaml:"restitution" toml:"restitution"`
	Friction          float64    `yaml:"friction" toml:"friction"`
	RollingResistance float64    `yaml:"rolling_resistance" toml:"rolling_resistance"`
}

// HoleConfig places the cup sensor. Position is the centre of the trigger volume.
type HoleConfig struct {
	Position mgl64.Vec3 `yaml:"position" toml:"position"`
	Radius   float64    `yaml:"radius" toml:"radius"`
	Height   float64    `yaml:"height" toml:"height"`
}

type AeroConfig struct {
	LiftCoefficient float64 `yaml:"lift_coefficient" toml:"lift_coefficient"`
	AirDensity      float64 `yaml:"air_density" toml:"air_density"`
	WindEnabled     bool    `yaml:"wind_enabled" toml:"wind_enabled"`
	WindSpeed       float64 `yaml:"wind_speed" toml:"wind_speed"`
	// WindDirection need not be normalized but must have non-zero length.
	WindDirection mgl64.Vec3 `yaml:"wind_direction" toml:"wind_direction"`
}

type LifecycleConfig struct {
	LinearThreshold  float64       `yaml:"linear_threshold" toml:"linear_threshold"`
	AngularThreshold float64       `yaml:"angular_threshold" toml:"angular_threshold"`
	SettleWindow     time.Duration `yaml:"settle_window" toml:"settle_window"`
	KillPlaneY       float64       `yaml:"kill_plane_y" toml:"kill_plane_y"`
}

type TelemetryConfig struct {
	Interval time.Duration `yaml:"interval" toml:"interval"`
}

type BridgeConfig struct {
	Enabled      bool          `yaml:"enabled" toml:"enabled"`
	Addr         string        `yaml:"addr" toml:"addr"`
	Mode         string        `yaml:"mode" toml:"mode"`
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval" toml:"ping_interval"`
	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// Default mirrors the prototype scene: a fairway whose surface sits at y = -5,
// a 0.5 radius ball and the stock 32 m/s, 30 degree swing with light backspin.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Encoding: "json"},
		Simulation: SimulationConfig{
			TickRate:     120,
			SubSteps:     4,
			Gravity:      mgl64.Vec3{0, -9.81, 0},
			RestingSpeed: 0.3,
		},
		Ball: BallConfig{
			Start:          mgl64.Vec3{0, -4.5, -80},
			Radius:         0.5,
			Mass:           1,
			Restitution:    0.4,
			Friction:       0.6,
			LinearDamping:  0.1,
			AngularDamping: 0.1,
		},
		Course: CourseConfig{
			Center:            mgl64.Vec3{0, -5.5, 0},
			HalfExtents:       mgl64.Vec3{10, 0.5, 100},
			Restitution:       0.4,
			Friction:          0.6,
			RollingResistance: 0.3,
		},
		Hole: HoleConfig{
			Position: mgl64.Vec3{0, -4.5, 40},
			Radius:   0.6,
			Height:   1,
		},
		Aero: AeroConfig{
			LiftCoefficient: 0.2,
			AirDensity:      1.225,
			WindDirection:   mgl64.Vec3{0, 0, 1},
		},
		Lifecycle: LifecycleConfig{
			LinearThreshold:  0.05,
			AngularThreshold: 0.05,
			SettleWindow:     time.Second,
			KillPlaneY:       -30,
		},
		Telemetry: TelemetryConfig{Interval: 100 * time.Millisecond},
		Swing: launch.Parameters{
			Speed:          32,
			LaunchAngleDeg: 30,
			DirectionDeg:   90,
			Backspin:       -5,
		},
		Bridge: BridgeConfig{
			Enabled:      true,
			Addr:         ":8080",
			Mode:         "release",
			WriteTimeout: 5 * time.Second,
			PingInterval: 30 * time.Second,
		},
	}
}

// TickInterval is the wall-clock period of one tick.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Simulation.TickRate)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.Simulation.TickRate > 0, "simulation.tick_rate must be positive, got %d", c.Simulation.TickRate)
	check(c.Simulation.SubSteps > 0, "simulation.sub_steps must be positive, got %d", c.Simulation.SubSteps)
	check(c.Ball.Radius > 0, "ball.radius must be positive, got %v", c.Ball.Radius)
	check(c.Ball.Mass > 0, "ball.mass must be positive, got %v", c.Ball.Mass)
	check(c.Course.HalfExtents.X() > 0 && c.Course.HalfExtents.Y() > 0 && c.Course.HalfExtents.Z() > 0,
		"course.half_extents must be positive, got %v", c.Course.HalfExtents)
	check(c.Hole.Radius > 0 && c.Hole.Height > 0, "hole radius and height must be positive")
	check(c.Lifecycle.LinearThreshold > 0 && c.Lifecycle.AngularThreshold > 0, "lifecycle thresholds must be positive")
	check(c.Lifecycle.SettleWindow > 0, "lifecycle.settle_window must be positive, got %s", c.Lifecycle.SettleWindow)
	check(c.Telemetry.Interval > 0, "telemetry.interval must be positive, got %s", c.Telemetry.Interval)
	check(c.Aero.AirDensity >= 0, "aero.air_density must not be negative")
	windLen := c.Aero.WindDirection.Len()
	check(windLen > 0 && !math.IsInf(windLen, 0), "aero.wind_direction must be a finite non-zero vector, got %v", c.Aero.WindDirection)
	check(c.Log.Encoding == "json" || c.Log.Encoding == "console", "log.encoding must be json or console, got %q", c.Log.Encoding)
	if c.Bridge.Enabled {
		check(c.Bridge.Addr != "", "bridge.addr is required when the bridge is enabled")
	}

	return errors.Join(errs...)
}
