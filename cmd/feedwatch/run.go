package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"

	"meridian-hq/feedwatch/pkg/cli"
	"meridian-hq/feedwatch/pkg/config"
	"meridian-hq/feedwatch/pkg/telemetry/logging"
	"meridian-hq/feedwatch/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	mode          string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the failover coordinator",
	Long: `Start the failover coordinator with the specified configuration.

In streaming mode the coordinator tracks provider health, applies the failover
rules and serves the failover API. In backfill mode no streaming session is
active and the failover endpoints answer with simulated payloads.

Examples:
  # Start with default config
  feedwatch run

  # Start with custom config
  feedwatch run --config /etc/feedwatch/feedwatch.yaml

  # Override listen address
  feedwatch run --listen 0.0.0.0:8090

  # Validate config without starting
  feedwatch run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.mode, "mode", "", "override session mode (streaming, backfill)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if runFlags.mode != "" {
		cfg.Failover.Mode = runFlags.mode
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Redact:    cfg.Telemetry.Logging.Redact,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger.Slog())

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.OTLP.Timeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	a, err := newApp(cfg, cfgFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			slog.Error("shutdown incomplete", "error", err)
		}
	}()

	if a.service != nil {
		fmt.Fprintf(out, "✓ Streaming session active (%d rules, %s overrides)\n",
			len(a.service.Rules()), a.service.OverridePolicy())
	} else {
		fmt.Fprintf(out, "✓ Session mode %s: failover endpoints are simulated\n", cfg.Failover.Mode)
	}
	if a.store != nil {
		fmt.Fprintf(out, "✓ Event log initialized (%s)\n", cfg.Events.Backend)
	}
	if a.publisher != nil {
		fmt.Fprintf(out, "✓ Publishing events to NATS (%s)\n", cfg.Publisher.NATS.SubjectPrefix)
	}
	if p := a.probes(); p != nil {
		fmt.Fprintf(out, "✓ Probing %d providers\n", len(p.Targets()))
	}
	if tracer.Enabled() {
		fmt.Fprintf(out, "✓ Exporting traces to %s\n", cfg.Telemetry.Tracing.Endpoint)
	}

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	a.start(ctx)

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.server.Start(ctx)
	}()

	addr, err := waitForServerReady(a, errChan, 5*time.Second)
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Server listening on %s\n", addr)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s/health\n", addr)
	if a.collector != nil {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	if err := <-errChan; err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// waitForServerReady waits until the server has bound its listener or failed.
func waitForServerReady(a *app, errChan chan error, wait time.Duration) (net.Addr, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if addr := a.server.Addr(); addr != nil {
			return addr, nil
		}
		select {
		case err := <-errChan:
			if err == nil {
				err = fmt.Errorf("server exited before listening")
			}
			return nil, err
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for server to listen on %s", a.cfg.Server.ListenAddress)
		}
	}
}
