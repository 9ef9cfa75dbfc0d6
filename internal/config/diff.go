package config

import (
	"reflect"
	"sort"
	"strings"

	logx "bishop/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and
// safe structured attrs for logging. Secrets (API keys, tokens) are
// never included, only whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 20)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", strings.TrimSpace(newCfg.HTTP.Addr)),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.spec", strings.TrimSpace(newCfg.Scheduler.Spec)),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.Bool("scheduler.dispatch_all", newCfg.Scheduler.DispatchAll),
		)
	}

	// Upstream clients (never log keys, only key presence).
	if oldCfg.Model != newCfg.Model {
		changed = append(changed, "model")
		attrs = append(attrs, logx.String("model.base_url", strings.TrimSpace(newCfg.Model.BaseURL)))
	}
	if oldCfg.Weather != newCfg.Weather {
		changed = append(changed, "weather")
		attrs = append(attrs,
			logx.Bool("weather.key_set", strings.TrimSpace(newCfg.Weather.APIKey) != ""),
			logx.String("weather.units", strings.TrimSpace(newCfg.Weather.Units)),
		)
	}
	if oldCfg.Mapbox != newCfg.Mapbox {
		changed = append(changed, "mapbox")
		attrs = append(attrs,
			logx.Bool("mapbox.key_set", strings.TrimSpace(newCfg.Mapbox.APIKey) != ""),
			logx.String("mapbox.geocode_cache_ttl", strings.TrimSpace(newCfg.Mapbox.GeocodeCacheTTL)),
		)
	}
	if oldCfg.Gemini != newCfg.Gemini {
		changed = append(changed, "gemini")
		attrs = append(attrs,
			logx.Bool("gemini.key_set", strings.TrimSpace(newCfg.Gemini.APIKey) != ""),
			logx.String("gemini.model", strings.TrimSpace(newCfg.Gemini.Model)),
		)
	}
	if oldCfg.Calendar != newCfg.Calendar {
		changed = append(changed, "calendar")
		attrs = append(attrs,
			logx.Bool("calendar.credentials_set", strings.TrimSpace(newCfg.Calendar.CredentialsFile) != ""),
			logx.String("calendar.id", strings.TrimSpace(newCfg.Calendar.CalendarID)),
		)
	}

	if oldCfg.Push != newCfg.Push {
		changed = append(changed, "push")
		attrs = append(attrs,
			logx.Float64("push.rate_per_sec", newCfg.Push.RatePerSec),
			logx.Bool("push.telegram_enabled", newCfg.Push.Telegram.Enabled),
			logx.Bool("push.telegram_token_set", strings.TrimSpace(newCfg.Push.Telegram.Token) != ""),
		)
	}

	if oldCfg.Notifications != newCfg.Notifications {
		changed = append(changed, "notifications")
		attrs = append(attrs, logx.Int("notifications.max_history", newCfg.Notifications.MaxHistory))
	}

	// Storage: nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
		)
	}

	if !reflect.DeepEqual(oldCfg.Endpoints, newCfg.Endpoints) {
		changed = append(changed, "endpoints")
		attrs = append(attrs, logx.Int("endpoints.count", len(newCfg.Endpoints)))
	}

	sort.Strings(changed)
	return changed, attrs
}
