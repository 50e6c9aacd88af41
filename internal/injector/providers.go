package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/fairway/internal/config"
	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/session"
	"github.com/zeusync/fairway/internal/core/systems/physics"
	"github.com/zeusync/fairway/internal/server"
)

// App is everything cmd/fairway runs. Bridge is nil when disabled in config.
type App struct {
	Config  *config.Config
	Log     log.Log
	Session *session.Session
	Bridge  *server.Server
}

// ProviderSet builds an App from a validated config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideBus,
	ProvidePhysics,
	session.New,
	ProvideBridge,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg *config.Config) (log.Log, error) {
	logger, err := log.New(log.Options{
		Level:    log.ParseLevel(cfg.Log.Level),
		Encoding: cfg.Log.Encoding,
	})
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvidePhysics(cfg *config.Config, logger log.Log) physics.Adapter {
	return physics.NewWorld(physics.Config{
		Gravity:      cfg.Simulation.Gravity,
		SubSteps:     cfg.Simulation.SubSteps,
		RestingSpeed: cfg.Simulation.RestingSpeed,
	}, logger)
}

func ProvideBridge(cfg *config.Config, sess *session.Session, logger log.Log) (*server.Server, error) {
	if !cfg.Bridge.Enabled {
		return nil, nil
	}
	return server.New(cfg.Bridge, sess, logger)
}
