package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/classify"
	"github.com/runnerr0/tabtime/internal/config"
	"github.com/runnerr0/tabtime/internal/engine"
	"github.com/runnerr0/tabtime/internal/events"
	"github.com/runnerr0/tabtime/internal/logging"
	"github.com/runnerr0/tabtime/internal/metrics"
)

// Execute implements the go-flags Commander interface for RunCommand.
func (c *RunCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.run(ctx, os.Stdin, os.Stdout)
}

// run hosts the engine until the browser closes stdin or ctx is done.
// stdout carries framed replies only.
func (c *RunCommand) run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if c.FlushInterval < 0 {
		return fmt.Errorf("--flush-interval must not be negative")
	}

	s, err := openSession(c.globals, c.cfg, c.store)
	if err != nil {
		return err
	}
	defer s.Close()
	cfg := s.cfg

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		Component: "host",
	}
	if c.globals != nil && c.globals.Verbose {
		logCfg.Level = "debug"
	}
	logger, closer, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	cal, err := calendarFor(cfg)
	if err != nil {
		return err
	}
	classifier, err := engine.NewClassifier(cfg.Tracking)
	if err != nil {
		return err
	}

	interval := cfg.FlushInterval()
	if c.FlushInterval > 0 {
		interval = time.Duration(c.FlushInterval) * time.Second
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	eng, err := engine.New(engine.Options{
		Store:      aggregate.NewStore(s.store, cal, retentionFor(cfg)),
		Classifier: classifier,
		Interval:   interval,
		Logger:     logger,
		Metrics:    m,
		Replies:    events.NewEncoder(stdout),
	})
	if err != nil {
		return err
	}

	dec, err := events.NewDecoder(stdin)
	if err != nil {
		return err
	}

	// Everything stops once the engine returns, including on stdin EOF.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := eng.Start(runCtx); err != nil {
		return err
	}
	logger.Info("host started", "version", c.version, "database", s.dbPath, "flush_interval", interval)

	in := make(chan events.Event, 64)
	// A blocked stdin read cannot be interrupted, so the pump stays outside
	// the group and is abandoned at shutdown.
	go func() {
		err := events.Pump(runCtx, dec, in, func(err error) {
			m.Malformed()
			logger.Warn("skipping malformed message", "error", err)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("reading events failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(runCtx)
	reloads := make(chan *classify.Classifier, 1)

	g.Go(func() error {
		defer cancel()
		return eng.Run(gctx, in, reloads)
	})

	if m != nil {
		g.Go(func() error {
			logger.Info("serving metrics", "listen", cfg.Metrics.Listen)
			return m.Serve(gctx, cfg.Metrics.Listen)
		})
	}

	if s.configPath != "" {
		watcher, err := config.NewWatcher(s.configPath)
		if err != nil {
			logger.Warn("config hot reload disabled", "error", err)
		} else {
			g.Go(func() error { return watcher.Run(gctx) })
			g.Go(func() error { return forwardReloads(gctx, watcher, reloads, logger) })
		}
	}

	return g.Wait()
}

// forwardReloads turns reloaded configs into classifiers for the engine.
// Only the latest classifier is kept when the engine is busy.
func forwardReloads(ctx context.Context, w *config.Watcher, out chan *classify.Classifier, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			logger.Warn("config reload failed", "error", err)
		case cfg := <-w.Changes():
			c, err := engine.NewClassifier(cfg.Tracking)
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				continue
			}
			select {
			case <-out:
			default:
			}
			out <- c
		}
	}
}
