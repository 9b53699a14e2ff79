package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/jserial/cli/options"
	"github.com/nspcc-dev/jserial/pkg/classpath"
	"github.com/nspcc-dev/jserial/pkg/config"
	"github.com/nspcc-dev/jserial/pkg/rewriter"
	"github.com/nspcc-dev/jserial/pkg/services/bridge"
	"github.com/nspcc-dev/jserial/pkg/services/metrics"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCommands returns 'bridge' command.
func NewCommands() []cli.Command {
	return []cli.Command{
		{
			Name:      "bridge",
			Usage:     "Start the hook bridge service",
			UsageText: "jserial bridge [--config-file <file>] [--debug] [--log-components <name>]...",
			Description: `Serves message hooks for an intercepting proxy extension. SIGHUP reloads
   the log level from the configuration file and re-indexes class path
   archives.`,
			Action: startBridge,
			Flags:  []cli.Flag{options.ConfigFile, options.Debug, options.LogComponents},
		},
	}
}

// node is a set of running services.
type node struct {
	cfg      config.Config
	log      *zap.Logger
	level    *zap.AtomicLevel
	debug    bool
	registry *classpath.Registry
	bridge   *bridge.Server
	services []*metrics.Service
}

func newNode(cfg config.Config, log *zap.Logger, level *zap.AtomicLevel, debug bool) (*node, error) {
	if !cfg.Application.Bridge.Enabled {
		return nil, errors.New("Bridge service is disabled in the configuration")
	}
	n := &node{
		cfg:      cfg,
		log:      log,
		level:    level,
		debug:    debug,
		registry: classpath.New(cfg.Application.ClassPath, log.Named("classpath")),
	}
	if err := n.registry.Load(); err != nil {
		log.Warn("class path is not available", zap.Error(err))
	}
	rw, err := rewriter.New(cfg.Rewriter, log.Named("rewriter"), n.registry)
	if err != nil {
		return nil, err
	}
	n.bridge = bridge.New(cfg.Application.Bridge, log.Named("bridge"))
	if err := rewriter.NewHooks(rw, log.Named("hooks")).Register(n.bridge); err != nil {
		return nil, err
	}
	n.services = []*metrics.Service{
		metrics.NewPrometheusService(cfg.Application.Prometheus, log),
		metrics.NewPprofService(cfg.Application.Pprof, log),
	}
	return n, nil
}

func (n *node) start() error {
	if err := n.bridge.Start(); err != nil {
		n.shutdown()
		return fmt.Errorf("failed to start Bridge service: %w", err)
	}
	for _, s := range n.services {
		if err := s.Start(); err != nil {
			n.shutdown()
			return fmt.Errorf("failed to start service: %w", err)
		}
	}
	return nil
}

// reload applies the log level of cfg and re-indexes the class path.
func (n *node) reload(cfg config.Config) {
	if !n.debug && n.level != nil {
		lvl, err := zapcore.ParseLevel(cfg.Application.LogLevel)
		if err != nil {
			n.log.Warn("wrong LogLevel, keeping the old one", zap.Error(err))
		} else if lvl != n.level.Level() {
			n.log.Info("changing log level", zap.Stringer("old", n.level.Level()), zap.Stringer("new", lvl))
			n.level.SetLevel(lvl)
		}
	}
	if cfg.Application.ClassPath != n.cfg.Application.ClassPath {
		n.log.Warn("ClassPath change requires restart, reloading the old one")
	}
	if err := n.registry.Load(); err != nil {
		n.log.Warn("can't reload class path", zap.Error(err))
	}
}

func (n *node) shutdown() {
	n.bridge.ShutDown()
	for _, s := range n.services {
		s.ShutDown()
	}
	_ = n.registry.Close()
}

func startBridge(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, level, logCloser, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.Application)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if logCloser != nil {
		defer func() { _ = logCloser() }()
	}
	defer func() { _ = log.Sync() }()
	log = options.FilterComponents(log, ctx.StringSlice("log-components"))

	n, err := newNode(cfg, log, level, ctx.Bool("debug"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := n.start(); err != nil {
		return cli.NewExitError(err, 1)
	}

	grace, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sighup)
	defer signal.Stop(sigCh)

Main:
	for {
		select {
		case <-sigCh:
			log.Info("SIGHUP received, reloading")
			newCfg, err := options.GetConfigFromContext(ctx)
			if err != nil {
				log.Warn("can't reread the config file", zap.Error(err))
				continue
			}
			n.reload(newCfg)
		case <-grace.Done():
			break Main
		}
	}
	n.shutdown()
	return nil
}
