package app

import (
	"context"

	"bishop/internal/clients/gcal"
	"bishop/internal/clients/gemini"
	"bishop/internal/clients/mapbox"
	"bishop/internal/clients/openweather"
	"bishop/internal/config"
	"bishop/internal/integration"
	logx "bishop/pkg/logx"
	"bishop/plugins/aisuggest"
	"bishop/plugins/calendar"
	"bishop/plugins/traffic"
	"bishop/plugins/weatherdelta"
)

type integrationDeps struct {
	Weather  *openweather.Client
	Mapbox   *mapbox.Client
	Gemini   *gemini.Client
	Calendar config.CalendarConfig
	Log      logx.Logger
}

// registerIntegrations installs the built-in integration set. The
// calendar factory defers Google credential loading to first use so a
// missing credentials file only breaks the calendar endpoint, never
// startup.
func registerIntegrations(r *integration.Registry, deps integrationDeps) {
	r.Register("weather", func() (any, error) {
		return weatherdelta.New(deps.Weather, deps.Mapbox, deps.Log), nil
	})
	r.Register("traffic", func() (any, error) {
		return traffic.New(deps.Mapbox, deps.Mapbox, deps.Log), nil
	})
	r.Register("calendar", func() (any, error) {
		events, err := gcal.New(context.Background(), gcal.Config{
			CredentialsFile: deps.Calendar.CredentialsFile,
			CalendarID:      deps.Calendar.CalendarID,
		})
		if err != nil {
			return nil, err
		}
		return calendar.New(events, deps.Mapbox, deps.Mapbox, deps.Log), nil
	})
	r.Register("ai", func() (any, error) {
		return aisuggest.New(deps.Gemini, deps.Mapbox, deps.Log), nil
	})
}
