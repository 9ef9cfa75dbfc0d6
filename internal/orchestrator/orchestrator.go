// Package orchestrator drives the periodic fetch→evaluate→dispatch
// cycle: pull current and predicted coordinates, fan them out to every
// configured integration, and hand accepted candidates to notify.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bishop/internal/eventbus"
	"bishop/internal/geo"
	"bishop/internal/integration"
	logx "bishop/pkg/logx"
)

const (
	defaultSpec          = "@every 1m"
	defaultPluginTimeout = 30 * time.Second
	defaultPredictAhead  = time.Hour
)

// Fetcher supplies the coordinate pair a cycle operates on.
type Fetcher interface {
	Current(ctx context.Context) (geo.Coordinate, error)
	Predict(ctx context.Context, at time.Time) (geo.Coordinate, error)
}

// Sink accepts candidates selected for dispatch.
type Sink interface {
	Notify(ctx context.Context, title, body string) error
}

type Config struct {
	Enabled  bool
	Spec     string // cron expression, seconds field optional
	Timezone string

	// PluginTimeout bounds each integration's Evaluate call.
	PluginTimeout time.Duration

	// PredictAhead is how far into the future the model is asked to
	// predict.
	PredictAhead time.Duration

	// DispatchAll sends every collected candidate instead of only the
	// first.
	DispatchAll bool
}

func (c *Config) normalize() {
	if c.Spec == "" {
		c.Spec = defaultSpec
	}
	if c.PluginTimeout <= 0 {
		c.PluginTimeout = defaultPluginTimeout
	}
	if c.PredictAhead <= 0 {
		c.PredictAhead = defaultPredictAhead
	}
}

type Service struct {
	log      logx.Logger
	fetch    Fetcher
	registry *integration.Registry
	sink     Sink
	bus      eventbus.Bus

	// SecondOptional allows both 5-field and 6-field cron specs.
	parser cron.Parser

	mu        sync.Mutex
	cfg       Config
	endpoints []integration.EndpointConfig
	c         *cron.Cron
	runCtx    context.Context
}

func New(cfg Config, fetch Fetcher, registry *integration.Registry, sink Sink, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg.normalize()
	return &Service{
		log:      log.With(logx.String("component", "orchestrator")),
		fetch:    fetch,
		registry: registry,
		sink:     sink,
		bus:      bus,
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		cfg:      cfg,
	}
}

// SetEndpoints replaces the endpoint list used by subsequent cycles.
func (s *Service) SetEndpoints(endpoints []integration.EndpointConfig) {
	s.mu.Lock()
	s.endpoints = append([]integration.EndpointConfig(nil), endpoints...)
	s.mu.Unlock()
}

// Start registers the cycle job and starts the cron loop. Overlapping
// ticks are skipped, not queued: a cycle slower than the interval delays
// the next cycle instead of stacking work.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}

	loc := time.Local
	if tz := s.cfg.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("orchestrator: load timezone %q: %w", tz, err)
		}
		loc = l
	}

	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() { s.RunCycle(s.runCtx) }); err != nil {
		return fmt.Errorf("orchestrator: schedule %q: %w", s.cfg.Spec, err)
	}

	s.runCtx = ctx
	s.c = c
	c.Start()
	s.log.Info("scheduler started",
		logx.String("spec", s.cfg.Spec),
		logx.String("tz", loc.String()),
	)
	return nil
}

// Stop halts the cron loop and waits for a running cycle to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.log.Info("scheduler stopped")
	}
}

// Apply updates the configuration. A changed spec or timezone restarts
// the cron loop; the endpoint list and dispatch mode take effect on the
// next cycle either way.
func (s *Service) Apply(cfg Config) error {
	cfg.normalize()

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.c != nil
	ctx := s.runCtx
	s.mu.Unlock()

	restart := running && (prev.Spec != cfg.Spec || prev.Timezone != cfg.Timezone || !cfg.Enabled)
	if !restart && !running && cfg.Enabled && ctx != nil {
		restart = true
	}
	if !restart {
		return nil
	}
	s.Stop()
	return s.Start(ctx)
}

// RunCycle executes one fetch→evaluate→dispatch pass. Exported so the
// HTTP surface can trigger an out-of-band cycle.
func (s *Service) RunCycle(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	cfg := s.cfg
	endpoints := s.endpoints
	s.mu.Unlock()

	if len(endpoints) == 0 {
		s.log.Warn("no endpoints configured")
		return
	}

	started := time.Now()
	s.publish(eventbus.EventCycleStart, nil)

	current, predicted, err := s.fetchPair(ctx, cfg.PredictAhead)
	if err != nil {
		s.log.Error("coordinate fetch failed, cycle aborted", logx.Err(err))
		s.publish(eventbus.EventCycleAborted, err.Error())
		return
	}

	candidates := s.evaluate(ctx, cfg, endpoints, current, predicted)

	dispatched := 0
	for _, cand := range candidates {
		if err := s.sink.Notify(ctx, cand.Title, cand.Body); err != nil {
			s.log.Error("dispatch failed", logx.String("title", cand.Title), logx.Err(err))
			continue
		}
		dispatched++
		if !cfg.DispatchAll {
			break
		}
	}

	s.log.Info("cycle complete",
		logx.Int("candidates", len(candidates)),
		logx.Int("dispatched", dispatched),
		logx.Duration("took", time.Since(started)),
	)
	s.publish(eventbus.EventCycleDone, dispatched)
}

// fetchPair requests both coordinates concurrently; either failure
// aborts the cycle.
func (s *Service) fetchPair(ctx context.Context, ahead time.Duration) (current, predicted geo.Coordinate, err error) {
	var (
		wg      sync.WaitGroup
		curErr  error
		predErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		current, curErr = s.fetch.Current(ctx)
	}()
	go func() {
		defer wg.Done()
		predicted, predErr = s.fetch.Predict(ctx, time.Now().Add(ahead))
	}()
	wg.Wait()

	if curErr != nil {
		return current, predicted, fmt.Errorf("current: %w", curErr)
	}
	if predErr != nil {
		return current, predicted, fmt.Errorf("predicted: %w", predErr)
	}
	return current, predicted, nil
}

// evaluate runs every loaded evaluator concurrently and returns the
// non-nil candidates in endpoint config order.
func (s *Service) evaluate(ctx context.Context, cfg Config, endpoints []integration.EndpointConfig, current, predicted geo.Coordinate) []integration.Candidate {
	results := s.registry.LoadAll(endpoints)

	slots := make([]*integration.Candidate, len(results))
	var wg sync.WaitGroup
	for i, res := range results {
		if res.Err != nil || res.Evaluator == nil {
			continue
		}
		wg.Add(1)
		go func(i int, res integration.LoadResult) {
			defer wg.Done()

			ectx, cancel := context.WithTimeout(ctx, cfg.PluginTimeout)
			defer cancel()

			cand, err := safeEvaluate(ectx, res.Evaluator, current, predicted)
			if err != nil {
				s.log.Error("evaluation failed",
					logx.String("path", res.Config.Path),
					logx.Err(err),
				)
				return
			}
			slots[i] = cand
		}(i, res)
	}
	wg.Wait()

	var out []integration.Candidate
	for _, cand := range slots {
		if cand != nil {
			out = append(out, *cand)
		}
	}
	return out
}

func safeEvaluate(ctx context.Context, ev integration.Evaluator, current, predicted geo.Coordinate) (cand *integration.Candidate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return ev.Evaluate(ctx, current, predicted)
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}

// cronLogger adapts logx to the cron.Logger interface so skipped
// overlapping runs show up in our logs.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, logx.Any("detail", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, logx.Err(err), logx.Any("detail", keysAndValues))
}
