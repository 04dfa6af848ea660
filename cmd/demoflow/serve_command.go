package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"demoflow/internal/daemon"
	"demoflow/internal/logging"
	"demoflow/internal/metrics"
	"demoflow/internal/preflight"
	"demoflow/internal/services/backend"
	"demoflow/internal/session"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, unix.SIGINT, unix.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	rec := metrics.New()
	opts := session.OptionsFromConfig(cfg)
	opts.Logger = logger
	opts.Metrics = rec
	registry := session.NewRegistry(opts)

	client := backend.NewFromConfig(cfg,
		backend.WithLogger(logger),
		backend.WithMetrics(rec),
	)

	for _, failed := range preflight.Failed(preflight.RunAll(signalCtx, cfg, client)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "sessions that depend on this check will not progress"),
			logging.String(logging.FieldErrorHint, "run `demoflow check` for details"),
		)
	}

	d, err := daemon.New(cfg, registry, logger,
		daemon.WithBackend(client),
		daemon.WithMetrics(rec),
	)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "demoflow.pid")
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("write pid file", logging.Error(err))
	} else {
		defer os.Remove(pidPath)
	}

	<-signalCtx.Done()
	logger.Info("demoflow daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
