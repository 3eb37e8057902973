// Package bot assembles the transport-independent core shared by the binaries.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/keshon/rickbot/internal/command"
	"github.com/keshon/rickbot/internal/commands"
	"github.com/keshon/rickbot/internal/config"
	"github.com/keshon/rickbot/internal/cooldown"
	"github.com/keshon/rickbot/internal/dispatch"
	"github.com/keshon/rickbot/internal/metrics"
	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/internal/storage"
	"github.com/keshon/rickbot/pkg/jobmgr"
)

// App owns the long-lived state: permissions, cooldowns, storage and the dispatcher.
type App struct {
	Config      *config.Config
	Permissions *permission.Resolver
	Cooldowns   *cooldown.Ledger
	Storage     *storage.Storage
	Registry    *command.Registry
	Dispatcher  *dispatch.Dispatcher
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Jobs        *jobmgr.Manager
	Log         *zap.Logger
}

// New wires every component from cfg. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log}

	a.Permissions = permission.NewResolver(cfg.OwnerID, log.Named("permission"))
	seeds, err := cfg.ModeratorRoleSeeds()
	if err != nil {
		return nil, err
	}
	for _, s := range seeds {
		a.Permissions.AddModeratorRole(s.ServerID, s.RoleID)
	}

	if cfg.StoragePath != "" {
		if a.Storage, err = storage.New(cfg.StoragePath); err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	a.Cooldowns = cooldown.New()

	var policies map[string]command.Policy
	if cfg.PolicyFile != "" {
		if policies, err = command.LoadPolicies(cfg.PolicyFile); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Registry, err = commands.Build(commands.Deps{
		Permissions: a.Permissions,
		Cooldowns:   a.Cooldowns,
		Storage:     a.Storage,
		Log:         log.Named("commands"),
	}, policies)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build command registry: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.Metrics, err = metrics.New(metrics.Options{Registerer: reg}); err != nil {
		a.Close()
		return nil, err
	}
	a.Gatherer = reg

	a.Dispatcher, err = dispatch.New(dispatch.Config{
		Prefix:      cfg.Prefix,
		Registry:    a.Registry,
		Permissions: a.Permissions,
		Cooldowns:   a.Cooldowns,
		Metrics:     a.Metrics,
		Log:         log.Named("dispatch"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	jobLog := log.Named("jobs")
	a.Jobs = jobmgr.NewManager(ctx, func(ev jobmgr.Event) {
		if ev.Err != nil {
			jobLog.Error("job failed", zap.String("job", ev.Job), zap.Error(ev.Err))
			return
		}
		jobLog.Debug("job state", zap.String("job", ev.Job), zap.String("state", string(ev.State)))
	})

	log.Info("command registry ready", zap.Int("commands", a.Registry.Len()), zap.String("prefix", cfg.Prefix))
	return a, nil
}

// StartJobs launches the cooldown sweeper and, when configured, the metrics server.
func (a *App) StartJobs() error {
	interval := a.Config.CooldownSweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	err := a.Jobs.StartAsync("cooldown-sweeper", func(ctx context.Context) error {
		return cooldown.RunCleaner(ctx, a.Cooldowns, interval, a.Log.Named("cooldown"))
	})
	if err != nil {
		return err
	}
	if a.Config.MetricsAddr != "" {
		addr := a.Config.MetricsAddr
		err = a.Jobs.StartAsync("metrics-server", func(ctx context.Context) error {
			a.Log.Info("serving metrics", zap.String("addr", addr))
			return metrics.Serve(ctx, addr, a.Gatherer)
		})
	}
	return err
}

// Close stops jobs and flushes storage.
func (a *App) Close() error {
	var errs []error
	if a.Jobs != nil {
		a.Jobs.StopAll()
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
