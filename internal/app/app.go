// Package app constructs and owns every component of the daemon.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bishop/internal/clients/expo"
	"bishop/internal/clients/gemini"
	"bishop/internal/clients/mapbox"
	"bishop/internal/clients/openweather"
	"bishop/internal/clients/predictor"
	"bishop/internal/config"
	"bishop/internal/eventbus"
	"bishop/internal/httpapi"
	"bishop/internal/integration"
	"bishop/internal/notify"
	"bishop/internal/orchestrator"
	"bishop/internal/storage"
	logx "bishop/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    storage.Store
	registry *integration.Registry

	predictor *predictor.Client
	notifySvc *notify.Service
	orch      *orchestrator.Service
	http      *httpapi.Server // nil when disabled

	wg sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	// Upstream clients
	predictorClient := predictor.New(predictor.Config{BaseURL: cfg.Model.BaseURL})
	weatherClient := openweather.New(openweather.Config{
		APIKey:  cfg.Weather.APIKey,
		BaseURL: cfg.Weather.BaseURL,
		Units:   cfg.Weather.Units,
	})
	geocodeTTL, err := config.ParseDurationField("mapbox.geocode_cache_ttl", cfg.Mapbox.GeocodeCacheTTL)
	if err != nil {
		return nil, err
	}
	mapboxClient := mapbox.New(mapbox.Config{
		AccessToken:     cfg.Mapbox.APIKey,
		GeocodeCacheTTL: geocodeTTL,
	})
	geminiClient := gemini.New(gemini.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	})
	expoClient := expo.New(expo.Config{GatewayURL: cfg.Push.GatewayURL})

	// Notification service (+ optional Telegram mirror)
	notifySvc := notify.New(notify.Config{
		MaxHistory: cfg.Notifications.MaxHistory,
		RatePerSec: cfg.Push.RatePerSec,
	}, expoClient, bus, log)
	if cfg.Push.Telegram.Enabled {
		mirror, err := notify.NewTelegramMirror(cfg.Push.Telegram.Token, cfg.Push.Telegram.ChatID)
		if err != nil {
			// The mirror is a convenience channel; a bad token must not
			// keep pushes from working.
			log.Warn("telegram mirror disabled", logx.Err(err))
		} else {
			notifySvc.SetMirror(mirror)
			log.Info("telegram mirror enabled")
		}
	}

	registry := integration.NewRegistry(log.With(logx.String("comp", "registry")))
	registerIntegrations(registry, integrationDeps{
		Weather:  weatherClient,
		Mapbox:   mapboxClient,
		Gemini:   geminiClient,
		Calendar: cfg.Calendar,
		Log:      log,
	})

	orchCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	orch := orchestrator.New(orchCfg, predictorClient, registry, notifySink{notifySvc}, bus,
		log.With(logx.String("comp", "orchestrator")))
	orch.SetEndpoints(cfg.Endpoints)

	var httpSrv *httpapi.Server
	if cfg.HTTP.Enabled {
		httpSrv = httpapi.New(httpapi.Config{Addr: cfg.HTTP.Addr},
			notifySvc, predictorClient, store,
			func() []integration.EndpointConfig {
				if c := cfgm.Get(); c != nil {
					return c.Endpoints
				}
				return nil
			},
			log.With(logx.String("comp", "httpapi")))
	}

	return &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		registry:  registry,
		predictor: predictorClient,
		notifySvc: notifySvc,
		orch:      orch,
		http:      httpSrv,
	}, nil
}

// notifySink adapts the notify service to the orchestrator's sink.
type notifySink struct {
	svc *notify.Service
}

func (s notifySink) Notify(ctx context.Context, title, body string) error {
	_, err := s.svc.Send(ctx, title, body)
	return err
}

func mapSchedulerConfig(cfg *config.Config) (orchestrator.Config, error) {
	pluginTimeout, err := config.ParseDurationField("scheduler.plugin_timeout", cfg.Scheduler.PluginTimeout)
	if err != nil {
		return orchestrator.Config{}, err
	}
	predictAhead, err := config.ParseDurationField("scheduler.predict_ahead", cfg.Scheduler.PredictAhead)
	if err != nil {
		return orchestrator.Config{}, err
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return orchestrator.Config{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return orchestrator.Config{
		Enabled:       cfg.Scheduler.Enabled,
		Spec:          cfg.Scheduler.Spec,
		Timezone:      cfg.Scheduler.Timezone,
		PluginTimeout: pluginTimeout,
		PredictAhead:  predictAhead,
		DispatchAll:   cfg.Scheduler.DispatchAll,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}
