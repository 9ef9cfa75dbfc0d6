package config

import (
	"fmt"
	"strings"

	"bishop/internal/integration"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`

	HTTP HTTPConfig `json:"http"`

	// Scheduler controls the orchestration cycle trigger.
	Scheduler SchedulerConfig `json:"scheduler"`

	Model    ModelConfig    `json:"model"`
	Weather  WeatherConfig  `json:"weather"`
	Mapbox   MapboxConfig   `json:"mapbox"`
	Gemini   GeminiConfig   `json:"gemini"`
	Calendar CalendarConfig `json:"calendar"`

	Push          PushConfig          `json:"push"`
	Notifications NotificationsConfig `json:"notifications"`

	Storage *StorageConfig `json:"storage,omitempty"`

	// Endpoints lists the integrations to evaluate each cycle, in
	// dispatch priority order.
	Endpoints []integration.EndpointConfig `json:"endpoints"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: ":3000"
}

// SchedulerConfig controls the orchestration cycle trigger.
//
// All durations are Go duration strings (e.g. "30s", "1m").
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	// Spec is a cron expression with an optional seconds field, or a
	// descriptor like "@every 1m" (the default).
	Spec     string `json:"spec,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	// PluginTimeout bounds each integration's evaluation per cycle.
	PluginTimeout string `json:"plugin_timeout,omitempty"`

	// PredictAhead is how far into the future the model is queried.
	PredictAhead string `json:"predict_ahead,omitempty"`

	// DispatchAll sends every candidate instead of only the first.
	DispatchAll bool `json:"dispatch_all,omitempty"`
}

type ModelConfig struct {
	BaseURL string `json:"base_url"`
}

type WeatherConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Units   string `json:"units,omitempty"` // default: "metric"
}

type MapboxConfig struct {
	APIKey string `json:"api_key"`
	// GeocodeCacheTTL is a Go duration string; empty disables the
	// reverse-geocode cache.
	GeocodeCacheTTL string `json:"geocode_cache_ttl,omitempty"`
}

type GeminiConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model,omitempty"`
}

type CalendarConfig struct {
	CredentialsFile string `json:"credentials_file"`
	CalendarID      string `json:"calendar_id,omitempty"` // default: "primary"
}

type PushConfig struct {
	GatewayURL string  `json:"gateway_url,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`

	Telegram TelegramMirrorConfig `json:"telegram"`
}

// TelegramMirrorConfig enables an operator copy of every alert in a
// Telegram chat.
type TelegramMirrorConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

type NotificationsConfig struct {
	// MaxHistory bounds the in-memory notification history.
	MaxHistory int `json:"max_history,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./bishop_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Validate performs structural checks that don't need live components.
// Registry membership of endpoint paths is checked by the app's
// validator hook.
func (c *Config) Validate() error {
	for i, ec := range c.Endpoints {
		if strings.TrimSpace(ec.Path) == "" {
			return fmt.Errorf("endpoints[%d]: path is required", i)
		}
		switch ec.Method {
		case integration.MethodGet, integration.MethodDirections:
		default:
			return fmt.Errorf("endpoints[%d] (%s): unknown method %q", i, ec.Path, ec.Method)
		}
	}
	if c.Push.Telegram.Enabled && strings.TrimSpace(c.Push.Telegram.Token) == "" {
		return fmt.Errorf("push.telegram: token is required when enabled")
	}
	if _, err := ParseDurationField("scheduler.plugin_timeout", c.Scheduler.PluginTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("scheduler.predict_ahead", c.Scheduler.PredictAhead); err != nil {
		return err
	}
	if _, err := ParseDurationField("mapbox.geocode_cache_ttl", c.Mapbox.GeocodeCacheTTL); err != nil {
		return err
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
