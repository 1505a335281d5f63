package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"meridian-hq/feedwatch/pkg/api"
	"meridian-hq/feedwatch/pkg/cli"
	"meridian-hq/feedwatch/pkg/config"
	"meridian-hq/feedwatch/pkg/events"
	"meridian-hq/feedwatch/pkg/events/recorder"
	"meridian-hq/feedwatch/pkg/events/retention"
	"meridian-hq/feedwatch/pkg/events/storage"
	"meridian-hq/feedwatch/pkg/failover"
	"meridian-hq/feedwatch/pkg/probe"
	"meridian-hq/feedwatch/pkg/publisher"
	"meridian-hq/feedwatch/pkg/server"
	"meridian-hq/feedwatch/pkg/telemetry/health"
	"meridian-hq/feedwatch/pkg/telemetry/metrics"
)

// configReloadDebounce coalesces editor write bursts into one reload.
const configReloadDebounce = 500 * time.Millisecond

// app holds every component of a running coordinator.
type app struct {
	cfg     *config.Config
	cfgPath string
	current atomic.Pointer[config.Config]
	logger  *slog.Logger

	registry  *failover.Registry
	service   *failover.Service
	collector *metrics.Collector
	store     events.Store
	recorder  *recorder.Recorder
	pruner    *retention.Pruner
	publisher *publisher.Publisher
	staleness *failover.StalenessMonitor
	watcher   *config.Watcher
	stream    *api.StreamHub
	checker   *health.Checker
	server    *server.Server

	// probeMu guards prober, which reload replaces, and probeCtx, the
	// context probes run under once started.
	probeMu  sync.Mutex
	prober   *probe.Prober
	probeCtx context.Context

	watchDone chan struct{}
	closeOnce sync.Once
}

// newApp builds the components described by cfg. Nothing runs in the
// background until start, apart from the recorder and publisher workers.
// cfgPath is only used to watch the file for rule changes.
func newApp(cfg *config.Config, cfgPath string) (*app, error) {
	a := &app{
		cfg:      cfg,
		cfgPath:  cfgPath,
		logger:   slog.Default().With("component", "app"),
		registry: failover.NewRegistry(),
	}
	a.current.Store(cfg)

	if cfg.Failover.Streaming() {
		svc, err := failover.NewService(cfg.Failover.ServiceConfig(), cfg.Failover.FailoverRules())
		if err != nil {
			return nil, cli.NewConfigError("failover.rules", err.Error())
		}
		a.service = svc
		a.registry.Set(svc)
	}

	if err := a.initEvents(); err != nil {
		a.close()
		return nil, err
	}
	if err := a.initPublisher(); err != nil {
		a.close()
		return nil, err
	}
	a.initMetrics()
	a.initProbes()

	if a.service != nil && cfg.Failover.Staleness.Enabled {
		a.staleness = failover.NewStalenessMonitor(a.service,
			cfg.Failover.Staleness.CheckInterval, cfg.Failover.Staleness.MaxSilence)
	}

	if cfg.Failover.Watch && cfgPath != "" {
		w, err := config.NewWatcher(cfgPath, configReloadDebounce, slog.Default())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create config watcher: %w", err)
		}
		a.watcher = w
	}

	a.stream = api.NewStreamHub(a.registry, api.StreamConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	if a.service != nil {
		a.service.AddEventSink(a.stream)
	}

	a.initHealth()

	handlers := api.NewHandlers(a.registry, api.Options{
		Mode:              cfg.Failover.Mode,
		OverridePolicy:    failover.OverridePolicy(cfg.Failover.OverridePolicy),
		ConfiguredRules:   a.configuredRules,
		Events:            a.store,
		QueryDefaultLimit: cfg.Events.QueryDefaultLimit,
		QueryMaxLimit:     cfg.Events.QueryMaxLimit,
		Stream:            a.stream,
	})

	routes := server.Routes{
		Failover: handlers,
		Health:   a.checker,
		Version:  health.NewVersionInfo(Version, GitCommit, BuildDate),
	}
	if a.collector != nil {
		routes.Metrics = a.collector.Handler()
		routes.MetricsPath = cfg.Telemetry.Metrics.Path
		routes.Recorder = a.collector
	}
	a.server = server.NewServer(&cfg.Server, routes)

	return a, nil
}

func (a *app) initEvents() error {
	ec := a.cfg.Events
	if !ec.Enabled {
		return nil
	}

	switch ec.Backend {
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:        ec.SQLite.Path,
			WALMode:     true,
			BusyTimeout: ec.SQLite.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create SQLite event store: %w", err)
		}
		a.store = store
	case config.BackendMemory:
		a.store = storage.NewMemoryStorage(ec.Memory.MaxRecords)
	default:
		return cli.NewConfigError("events.backend", fmt.Sprintf("unsupported backend %q", ec.Backend))
	}

	if a.service != nil {
		a.recorder = recorder.NewRecorder(a.store, &recorder.Config{AsyncBuffer: ec.BufferSize})
		a.service.AddEventSink(a.recorder)
	}

	if ec.Retention.PruneSchedule != "" {
		a.pruner = retention.NewPruner(a.store, &retention.Config{
			RetentionDays: ec.Retention.Days,
			PruneSchedule: ec.Retention.PruneSchedule,
			MaxRecords:    ec.Retention.MaxRecords,
		})
	}
	return nil
}

func (a *app) initPublisher() error {
	nc := a.cfg.Publisher.NATS
	if !nc.Enabled || a.service == nil {
		return nil
	}
	pub, err := publisher.Connect(nc)
	if err != nil {
		return fmt.Errorf("failed to create NATS publisher: %w", err)
	}
	a.publisher = pub
	a.service.AddEventSink(pub)
	return nil
}

func (a *app) initMetrics() {
	mc := &a.cfg.Telemetry.Metrics
	if !mc.Enabled {
		return
	}
	a.collector = metrics.NewCollector(mc, prometheus.NewRegistry())
	if a.service != nil {
		a.service.AddEventSink(a.collector)
		a.service.AddReportObserver(a.collector)
	}

	reg := a.registry
	err := a.collector.WatchState(metrics.StateSourceFunc(func() (metrics.StateSource, bool) {
		svc, ok := reg.Service()
		if !ok {
			return nil, false
		}
		return svc, true
	}))
	if err != nil {
		a.logger.Warn("failed to register rule state metrics", "error", err)
	}
}

func (a *app) initProbes() {
	if a.service == nil {
		return
	}
	targets := probe.TargetsFromConfig(a.cfg.Providers)
	if len(targets) == 0 {
		return
	}
	a.prober = probe.NewProber(nil, a.service, targets)
}

func (a *app) initHealth() {
	a.checker = health.New(5 * time.Second)
	a.checker.RegisterCheck("failover", health.ServiceCheck(a.registry, a.cfg.Failover.Streaming()))
	a.checker.RegisterOptionalCheck("rules", health.DegradedRulesCheck(a.registry))
	if a.store != nil {
		a.checker.RegisterCheck("events", health.PingCheck(a.store))
	}
	if a.publisher != nil {
		a.checker.RegisterOptionalCheck("nats", health.ConnectedCheck("nats", a.publisher))
	}
}

// configuredRules reports the rule definitions of the current configuration,
// which follows reloads.
func (a *app) configuredRules() []failover.Rule {
	return a.current.Load().Failover.FailoverRules()
}

// reload applies a reloaded configuration file to the running service: the rule
// set is synced and the probes are replaced when their targets changed.
func (a *app) reload(cfg *config.Config) error {
	if a.service != nil {
		if err := a.service.SyncRules(cfg.Failover.FailoverRules()); err != nil {
			return err
		}
		a.reloadProbes(cfg)
	}
	a.current.Store(cfg)
	return nil
}

// reloadProbes swaps the prober for one built from cfg when the probe targets
// differ. The replacement starts right away if the app is running.
func (a *app) reloadProbes(cfg *config.Config) {
	next := probe.NewProber(nil, a.service, probe.TargetsFromConfig(cfg.Providers))

	a.probeMu.Lock()
	defer a.probeMu.Unlock()

	var current []probe.Target
	if a.prober != nil {
		current = a.prober.Targets()
	}
	if reflect.DeepEqual(current, next.Targets()) {
		return
	}

	if a.prober != nil {
		a.prober.Stop()
	}
	a.prober = nil
	if len(next.Targets()) > 0 {
		a.prober = next
		if a.probeCtx != nil {
			a.prober.Start(a.probeCtx)
		}
	}
	a.logger.Info("provider probes reloaded", "targets", len(next.Targets()))
}

// probes returns the current prober, nil when no provider is probed.
func (a *app) probes() *probe.Prober {
	a.probeMu.Lock()
	defer a.probeMu.Unlock()
	return a.prober
}

// start launches the background loops. The HTTP server is started separately.
func (a *app) start(ctx context.Context) {
	if a.pruner != nil {
		if err := a.pruner.Start(ctx); err != nil {
			a.logger.Warn("failed to start retention scheduler", "error", err)
			a.pruner = nil
		} else if next := a.pruner.NextPruning(); next != nil {
			a.logger.Debug("event retention scheduler started", "next_pruning", next)
		}
	}
	a.probeMu.Lock()
	a.probeCtx = ctx
	if a.prober != nil {
		a.prober.Start(ctx)
	}
	a.probeMu.Unlock()
	if a.staleness != nil {
		a.staleness.Start(ctx)
	}
	if a.watcher != nil {
		a.watchDone = make(chan struct{})
		go func() {
			defer close(a.watchDone)
			if err := a.watcher.Watch(ctx, a.reload); err != nil {
				a.logger.Error("config watcher stopped", "error", err)
			}
		}()
	}
}

// close stops every component in reverse dependency order. It is safe to call
// more than once.
func (a *app) close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.watcher != nil {
			if err := a.watcher.Stop(); err != nil {
				errs = append(errs, err)
			}
			if a.watchDone != nil {
				<-a.watchDone
			}
		}
		if a.staleness != nil {
			a.staleness.Stop()
		}
		a.probeMu.Lock()
		if a.prober != nil {
			a.prober.Stop()
		}
		a.probeCtx = nil
		a.probeMu.Unlock()
		if a.pruner != nil {
			a.pruner.Stop()
		}
		if a.stream != nil {
			a.stream.Close()
		}
		if a.publisher != nil {
			if err := a.publisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("publisher: %w", err))
			}
		}
		if a.recorder != nil {
			if err := a.recorder.Close(); err != nil {
				errs = append(errs, fmt.Errorf("recorder: %w", err))
			}
		}
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("event store: %w", err))
			}
		}
	})
	return errors.Join(errs...)
}
