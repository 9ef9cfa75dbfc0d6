// Package httpapi exposes the device-facing HTTP surface: notification
// history, device registration, and location sample intake.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"bishop/internal/geo"
	"bishop/internal/integration"
	"bishop/internal/notify"
	"bishop/internal/storage"
	logx "bishop/pkg/logx"
)

const defaultAddr = ":3000"

// Notifier is the slice of the notification service the routes use.
type Notifier interface {
	RegisterDevice(token string) error
	Send(ctx context.Context, title, body string) (*notify.Notification, error)
	Pending() []notify.Notification
	MarkDelivered(id string) (*notify.Notification, error)
}

// Recorder forwards location samples to the prediction model.
type Recorder interface {
	Record(ctx context.Context, at geo.Coordinate) error
}

type Config struct {
	Addr string
}

type Server struct {
	log      logx.Logger
	echo     *echo.Echo
	addr     string
	notifier Notifier
	recorder Recorder
	store    storage.Store // may be nil

	endpoints func() []integration.EndpointConfig
}

func New(cfg Config, notifier Notifier, recorder Recorder, store storage.Store, endpoints func() []integration.EndpointConfig, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		log:       log.With(logx.String("component", "httpapi")),
		echo:      e,
		addr:      cfg.Addr,
		notifier:  notifier,
		recorder:  recorder,
		store:     store,
		endpoints: endpoints,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)
	s.echo.GET("/settings", s.settings)

	s.echo.POST("/coordinates", s.recordCoordinates)

	s.echo.POST("/notifications", s.sendNotification)
	s.echo.POST("/notifications/register", s.registerDevice)
	s.echo.GET("/notifications/pending", s.pendingNotifications)
	s.echo.POST("/notifications/:id/delivered", s.markDelivered)
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.addr)
	}()
	s.log.Info("http server started", logx.String("addr", s.addr))

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(sctx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// response is the envelope every route answers with.
type response struct {
	Success       bool                  `json:"success"`
	Notifications []notify.Notification `json:"notifications"`
	Message       string                `json:"message,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, response{Success: true})
}

func (s *Server) settings(c echo.Context) error {
	var eps []integration.EndpointConfig
	if s.endpoints != nil {
		eps = s.endpoints()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"endpoints": eps,
	})
}

type sendRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *Server) sendNotification(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
	}

	n, err := s.notifier.Send(c.Request().Context(), req.Title, req.Body)
	if err != nil {
		s.log.Error("send failed", logx.Err(err))
		return c.JSON(http.StatusOK, response{Success: false, Message: "Failed to send notification"})
	}
	return c.JSON(http.StatusOK, response{Success: true, Notifications: []notify.Notification{*n}})
}

type registerRequest struct {
	Token string `json:"token"`
	Body  string `json:"body"`
}

// legacyTokenRe matches the registration format older clients send as a
// free-text body instead of a token field.
var legacyTokenRe = regexp.MustCompile(`Device registered with token: (.*)`)

func (s *Server) registerDevice(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
	}

	token := strings.TrimSpace(req.Token)
	if token == "" && req.Body != "" {
		if m := legacyTokenRe.FindStringSubmatch(req.Body); m != nil {
			token = strings.TrimSpace(m[1])
		}
	}
	if token == "" {
		return c.JSON(http.StatusOK, response{Success: false, Message: "No valid token provided"})
	}

	if err := s.notifier.RegisterDevice(token); err != nil {
		return c.JSON(http.StatusOK, response{Success: false, Message: "No valid token provided"})
	}
	return c.JSON(http.StatusOK, response{Success: true, Message: "Device registered with token: " + token})
}

func (s *Server) pendingNotifications(c echo.Context) error {
	pending := s.notifier.Pending()
	if pending == nil {
		pending = []notify.Notification{}
	}
	return c.JSON(http.StatusOK, response{Success: true, Notifications: pending})
}

func (s *Server) markDelivered(c echo.Context) error {
	id := c.Param("id")
	n, err := s.notifier.MarkDelivered(id)
	if err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			return c.JSON(http.StatusOK, response{Success: false, Message: "Notification not found"})
		}
		s.log.Error("mark delivered failed", logx.String("id", id), logx.Err(err))
		return c.JSON(http.StatusInternalServerError, response{Success: false, Message: "internal error"})
	}
	return c.JSON(http.StatusOK, response{Success: true, Notifications: []notify.Notification{*n}})
}

type coordinatesRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// NoPredict is accepted for older clients; recording never triggers
	// a prediction fetch here either way.
	NoPredict bool `json:"no_predict"`
}

// recordCoordinates stores a location sample and forwards it to the
// prediction model. It never triggers a cycle; the scheduler polls
// independently.
func (s *Server) recordCoordinates(c echo.Context) error {
	var req coordinatesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
	}

	coord := geo.Coordinate{Lat: req.Latitude, Lon: req.Longitude}
	if !coord.Valid() {
		return c.JSON(http.StatusBadRequest, response{Success: false, Message: "coordinate out of range"})
	}

	ctx := c.Request().Context()
	if s.store != nil {
		if err := s.store.AppendSample(ctx, storage.Sample{At: time.Now(), Lat: coord.Lat, Lon: coord.Lon}); err != nil {
			s.log.Warn("sample persist failed", logx.Err(err))
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, coord); err != nil {
			s.log.Error("model record failed", logx.Err(err))
			return c.JSON(http.StatusInternalServerError, response{Success: false, Message: "An error occurred while processing the request."})
		}
	}
	return c.JSON(http.StatusOK, response{Success: true, Message: "Coordinates recorded"})
}
