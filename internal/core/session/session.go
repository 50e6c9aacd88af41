// Package session assembles one golf simulation: physics world, ball, cup,
// lifecycle, store and sampler, and drives them tick by tick.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/fairway/internal/config"
	"github.com/zeusync/fairway/internal/core/aero"
	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/hole"
	"github.com/zeusync/fairway/internal/core/launch"
	"github.com/zeusync/fairway/internal/core/lifecycle"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/state"
	"github.com/zeusync/fairway/internal/core/systems"
	"github.com/zeusync/fairway/internal/core/systems/physics"
	"github.com/zeusync/fairway/internal/core/telemetry"
	"github.com/zeusync/fairway/pkg/sequence"
)

type Session struct {
	id  string
	cfg *config.Config
	log log.Log

	events    bus.EventBus
	monitor   *deliveryMonitor
	adapter   physics.Adapter
	ball      physics.BodyID
	store     *state.Store
	sensor    *hole.Sensor
	machine   *lifecycle.Machine
	aero      aero.Model
	sampler   *telemetry.Sampler
	scheduler *systems.Scheduler

	commands *sequence.Queue[Command]
	tickMu   sync.Mutex
	tick     uint64
	elapsed  time.Duration

	subsMu sync.Mutex
	subs   []bus.Subscription

	baseLevel log.Level
	running   atomic.Bool
	closed    atomic.Bool
}

// New builds the course, the ball and the cup inside adapter and wires the
// tick systems in order: commands, advance, aero, physics, lifecycle, notify.
func New(cfg *config.Config, logger log.Log, events bus.EventBus, adapter physics.Adapter) (*Session, error) {
	id := uuid.NewString()
	s := &Session{
		id:        id,
		cfg:       cfg,
		log:       logger.Named("session").With(log.String("session", id)),
		events:    events,
		adapter:   adapter,
		commands:  sequence.NewQueue[Command](),
		scheduler: systems.NewScheduler(),
		baseLevel: logger.GetLevel(),
	}

	if err := adapter.AddStaticBox(physics.BoxSpec{
		Center:            cfg.Course.Center,
		HalfExtents:       cfg.Course.HalfExtents,
		Restitution:       cfg.Course.Restitution,
		Friction:          cfg.Course.Friction,
		RollingResistance: cfg.Course.RollingResistance,
	}); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}

	ball, err := adapter.AddSphere(physics.SphereSpec{
		Position:       cfg.Ball.Start,
		Radius:         cfg.Ball.Radius,
		Mass:           cfg.Ball.Mass,
		Restitution:    cfg.Ball.Restitution,
		Friction:       cfg.Ball.Friction,
		LinearDamping:  cfg.Ball.LinearDamping,
		AngularDamping: cfg.Ball.AngularDamping,
	})
	if err != nil {
		return nil, fmt.Errorf("create ball: %w", err)
	}
	s.ball = ball

	s.store = state.New(events, logger, state.Initial{
		DevMode:       cfg.DevMode,
		WindSpeed:     cfg.Aero.WindSpeed,
		WindDirection: cfg.Aero.WindDirection,
	})

	s.sensor, err = hole.NewSensor(adapter, physics.SensorSpec{
		Name:   "cup",
		Center: cfg.Hole.Position,
		Radius: cfg.Hole.Radius,
		Height: cfg.Hole.Height,
	}, ball, logger)
	if err != nil {
		return nil, err
	}

	s.machine = lifecycle.New(lifecycle.Deps{
		Adapter:     adapter,
		Ball:        ball,
		Sensor:      s.sensor,
		Scorekeeper: hole.NewScorekeeper(s.store, logger),
		Store:       s.store,
		Events:      events,
		Log:         logger,
	}, lifecycle.Settings{
		Start:            cfg.Ball.Start,
		LinearThreshold:  cfg.Lifecycle.LinearThreshold,
		AngularThreshold: cfg.Lifecycle.AngularThreshold,
		SettleWindow:     cfg.Lifecycle.SettleWindow,
		KillPlaneY:       cfg.Lifecycle.KillPlaneY,
	})

	s.aero = aero.NewModel(aero.Config{
		LiftCoefficient: cfg.Aero.LiftCoefficient,
		AirDensity:      cfg.Aero.AirDensity,
		WindEnabled:     cfg.Aero.WindEnabled,
	}, cfg.Ball.Radius)

	s.sampler = telemetry.NewSampler(adapter, ball, s.store, cfg.Telemetry.Interval, logger)

	for _, sys := range []systems.System{
		systems.Func{SystemName: "commands", SystemPhase: systems.PhaseInput, Fn: s.applyCommands},
		systems.Func{SystemName: "advance", SystemPhase: systems.PhaseAdvance, Fn: s.advance},
		systems.Func{SystemName: "aero", SystemPhase: systems.PhasePreStep, Fn: s.applyAero},
		systems.Func{SystemName: "physics", SystemPhase: systems.PhaseStep, Fn: s.stepPhysics},
		systems.Func{SystemName: "lifecycle", SystemPhase: systems.PhasePostStep, Fn: s.evaluate},
		systems.Func{SystemName: "notify", SystemPhase: systems.PhaseNotify, Fn: s.notify},
	} {
		if err = s.scheduler.Register(sys); err != nil {
			return nil, err
		}
	}

	s.monitor = newDeliveryMonitor(s.log, cfg.TickInterval())
	events.AddObserver(s.monitor)

	if err = s.mirror(); err != nil {
		events.RemoveObserver(s.monitor)
		return nil, err
	}
	s.applyDevMode(cfg.DevMode)
	s.log.Info("session created",
		log.Vector("start", cfg.Ball.Start),
		log.Vector("hole", cfg.Hole.Position),
		log.Bool("wind", cfg.Aero.WindEnabled),
	)
	return s, nil
}

func (s *Session) ID() string                    { return s.id }
func (s *Session) Store() *state.Store           { return s.store }
func (s *Session) Events() bus.EventBus          { return s.events }
func (s *Session) State() lifecycle.State        { return s.machine.State() }
func (s *Session) Ball() physics.BodyID          { return s.ball }
func (s *Session) Scheduler() *systems.Scheduler { return s.scheduler }
func (s *Session) Snapshot() state.Snapshot      { return s.store.Snapshot() }

// SlowDeliveries counts bus publishes that took longer than one tick.
func (s *Session) SlowDeliveries() uint64 { return s.monitor.SlowDeliveries() }

// RequestSwing queues a swing. Nil overrides use the configured swing.
func (s *Session) RequestSwing(overrides *launch.Overrides) error {
	return s.enqueue(Command{Kind: CommandSwing, Overrides: overrides})
}

func (s *Session) RequestReset(zeroScore bool) error {
	return s.enqueue(Command{Kind: CommandReset, ZeroScore: zeroScore})
}

func (s *Session) ToggleDevMode() error {
	return s.enqueue(Command{Kind: CommandToggleDevMode})
}

func (s *Session) enqueue(cmd Command) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.commands.Push(cmd)
	return nil
}

// Subscribe tracks a store subscription so Close releases it.
func (s *Session) Subscribe(field string, fn func(state.Change)) (bus.Subscription, error) {
	sub, err := s.store.Subscribe(field, fn)
	if err != nil {
		return nil, err
	}
	s.track(sub)
	return sub, nil
}

// SubscribeEvents tracks a lifecycle event subscription so Close releases it.
func (s *Session) SubscribeEvents(eventType string, fn bus.EventHandler) (bus.Subscription, error) {
	sub, err := s.events.SubscribeTopic(lifecycle.Topic, eventType, fn)
	if err != nil {
		return nil, err
	}
	s.track(sub)
	return sub, nil
}

func (s *Session) track(sub bus.Subscription) {
	s.subsMu.Lock()
	s.subs = append(s.subs, sub)
	s.subsMu.Unlock()
}

// Tick runs one simulation tick of dt seconds.
func (s *Session) Tick(dt float64) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.tick++
	s.elapsed += time.Duration(dt * float64(time.Second))
	s.store.Hold()
	return s.scheduler.Run(systems.Tick{Number: s.tick, Delta: dt, Elapsed: s.elapsed})
}

// Run ticks at the configured rate and runs the sampler until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.loop(ctx) })
	group.Go(func() error { return s.sampler.Run(ctx) })
	return group.Wait()
}

func (s *Session) loop(ctx context.Context) error {
	interval := s.cfg.TickInterval()
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("tick loop started", log.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("tick loop stopped", log.Uint64("ticks", s.currentTick()))
			return nil
		case <-ticker.C:
			if err := s.Tick(dt); err != nil {
				if errors.Is(err, ErrClosed) {
					return nil
				}
				s.log.Warn("tick failed", log.Error(err))
			}
		}
	}
}

func (s *Session) currentTick() uint64 {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.tick
}

// Close cancels every tracked subscription and detaches the delivery monitor.
// Queued commands are dropped.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.subsMu.Lock()
	subs := s.subs
	s.subs = nil
	s.subsMu.Unlock()

	for _, sub := range subs {
		_ = sub.Cancel()
	}
	s.events.RemoveObserver(s.monitor)
	s.commands.Clear()
	s.log.Info("session closed")
	return nil
}
