package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/fairway/internal/config"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML or TOML config file")
	envFile := flag.String("env", ".env", "Optional dotenv file with FAIRWAY_* overrides")
	devMode := flag.Bool("dev", false, "Start with dev mode enabled")
	flag.Parse()

	if err := run(*configPath, *envFile, *devMode); err != nil {
		fmt.Fprintln(os.Stderr, "fairway:", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string, devMode bool) error {
	started := time.Now()
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if devMode {
		cfg.DevMode = true
	}

	app, err := injector.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() { _ = app.Log.Sync() }()
	defer func() { _ = app.Session.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.Bridge != nil {
		if err = app.Bridge.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = app.Bridge.Close() }()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return app.Session.Run(ctx) })
	if app.Bridge != nil {
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Bridge.WriteTimeout)
			defer cancel()
			if err := app.Bridge.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}

	app.Log.Info("fairway started",
		log.String("session", app.Session.ID()),
		log.Int("tick_rate", cfg.Simulation.TickRate),
		log.Bool("bridge", app.Bridge != nil))

	err = group.Wait()
	app.Log.Info("fairway stopped", log.Duration("uptime", time.Since(started)))
	return err
}
