package app

import (
	"context"
	"fmt"
	"time"

	"bishop/internal/config"
	logx "bishop/pkg/logx"
)

// Start launches the scheduler, the HTTP surface, and the config watcher.
// It returns once everything is running; the components keep going until
// ctx is cancelled or Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(vctx context.Context, cfg *config.Config) error {
		if err := a.registry.Validate(cfg.Endpoints); err != nil {
			return err
		}
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.orch.Start(ctx); err != nil {
		return fmt.Errorf("app: start orchestrator: %w", err)
	}

	if a.http != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.http.Start(ctx); err != nil {
				a.log.Error("http server exited", logx.Err(err))
			}
		}()
	}

	updates := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(updates)
		a.reloadLoop(ctx, updates)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(ctx); err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	a.log.Info("started")
	return nil
}

// Stop shuts components down in reverse dependency order.
func (a *App) Stop() {
	a.orch.Stop()
	a.wg.Wait()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

// reloadLoop applies committed config updates. Consecutive updates are
// coalesced: only the newest pending config is applied.
func (a *App) reloadLoop(ctx context.Context, updates chan *config.Config) {
	prev := a.cfgm.Get()
	for {
		var cfg *config.Config
		select {
		case <-ctx.Done():
			return
		case cfg = <-updates:
		}
	drain:
		for {
			select {
			case next := <-updates:
				cfg = next
			default:
				break drain
			}
		}
		if cfg == nil {
			continue
		}
		a.applyConfig(prev, cfg)
		prev = cfg
	}
}

func (a *App) applyConfig(prev, cfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		return
	}
	a.log.Info("config updated", append(attrs, logx.Any("sections", sections))...)

	changed := func(name string) bool {
		for _, s := range sections {
			if s == name {
				return true
			}
		}
		return false
	}

	if changed("logging") {
		a.logs.Apply(logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: cfg.Logging.File.Enabled,
				Path:    cfg.Logging.File.Path,
			},
		})
	}

	if changed("scheduler") || changed("endpoints") {
		orchCfg, err := mapSchedulerConfig(cfg)
		if err != nil {
			// The validator runs before commit, so this only trips when
			// a programmatic commit bypassed it.
			a.log.Error("scheduler config rejected", logx.Err(err))
		} else {
			a.orch.SetEndpoints(cfg.Endpoints)
			if err := a.orch.Apply(orchCfg); err != nil {
				a.log.Error("scheduler restart failed", logx.Err(err))
			}
		}
	}

	for _, section := range sections {
		switch section {
		case "http", "storage", "model", "weather", "mapbox", "gemini", "calendar", "push", "notifications":
			a.log.Warn("config change requires restart", logx.String("section", section))
		}
	}
}

// RunOnce triggers a single orchestration cycle, bounded by timeout.
// Used by the CLI's one-shot mode.
func (a *App) RunOnce(ctx context.Context, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	a.orch.RunCycle(ctx)
}
