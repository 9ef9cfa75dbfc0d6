package integration

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	logx "bishop/pkg/logx"
)

var (
	ErrUnknownPath   = errors.New("no integration registered for path")
	ErrUnknownMethod = errors.New("unsupported endpoint method")
	ErrNoCapability  = errors.New("integration does not implement requested capability")
)

// Factory builds one integration instance. Factories run at most once per
// path for the process lifetime; the instance is cached afterwards.
type Factory func() (any, error)

// LoadResult pairs one endpoint config with either a resolved capability or
// the error that prevented resolution. LoadAll always returns exactly one
// result per config.
type LoadResult struct {
	Config    EndpointConfig
	Evaluator Evaluator // set when Config.Method == "get" and load succeeded
	Router    Router    // set when Config.Method == "directions" and load succeeded
	Err       error
}

// Registry maps endpoint path identifiers to integration factories.
//
// Paths are static and explicitly registered at startup; there is no
// runtime module resolution. Membership is checked when the config is
// validated, not on first use.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]any
	failed    map[string]error

	log logx.Logger
}

func NewRegistry(log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		factories: map[string]Factory{},
		instances: map[string]any{},
		failed:    map[string]error{},
		log:       log,
	}
}

// Register installs a factory under a path identifier. Later registrations
// for the same path replace earlier ones (and clear any cached instance).
func (r *Registry) Register(path string, f Factory) {
	path = strings.TrimSpace(path)
	if path == "" || f == nil {
		return
	}
	r.mu.Lock()
	r.factories[path] = f
	delete(r.instances, path)
	delete(r.failed, path)
	r.mu.Unlock()
}

// Paths returns the registered path identifiers, sorted.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// Validate checks endpoint configs against the registry without
// instantiating anything. Used by the config manager before committing a
// new config, so typos surface at reload time rather than mid-cycle.
func (r *Registry) Validate(configs []EndpointConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ec := range configs {
		if _, ok := r.factories[strings.TrimSpace(ec.Path)]; !ok {
			return fmt.Errorf("endpoints[%d]: %w: %q", i, ErrUnknownPath, ec.Path)
		}
		switch ec.Method {
		case MethodGet, MethodDirections:
		default:
			return fmt.Errorf("endpoints[%d] (%s): %w: %q", i, ec.Path, ErrUnknownMethod, ec.Method)
		}
	}
	return nil
}

// LoadAll resolves every endpoint config to an instance, one result per
// entry. A failure to resolve one entry never aborts the others. A path
// whose factory failed once stays failed until re-registered; retrying a
// broken constructor every cycle would just spam the same error.
func (r *Registry) LoadAll(configs []EndpointConfig) []LoadResult {
	out := make([]LoadResult, 0, len(configs))
	for _, ec := range configs {
		res := LoadResult{Config: ec}

		inst, err := r.instance(ec.Path)
		if err != nil {
			res.Err = err
			r.log.Error("integration load failed",
				logx.String("path", ec.Path),
				logx.Err(err),
			)
			out = append(out, res)
			continue
		}

		switch ec.Method {
		case MethodGet:
			ev, ok := inst.(Evaluator)
			if !ok {
				res.Err = fmt.Errorf("%s: %w (method %q)", ec.Path, ErrNoCapability, ec.Method)
			} else {
				res.Evaluator = ev
			}
		case MethodDirections:
			rt, ok := inst.(Router)
			if !ok {
				res.Err = fmt.Errorf("%s: %w (method %q)", ec.Path, ErrNoCapability, ec.Method)
			} else {
				res.Router = rt
			}
		default:
			res.Err = fmt.Errorf("%s: %w: %q", ec.Path, ErrUnknownMethod, ec.Method)
		}

		if res.Err != nil {
			r.log.Error("integration capability mismatch",
				logx.String("path", ec.Path),
				logx.String("method", string(ec.Method)),
				logx.Err(res.Err),
			)
		}
		out = append(out, res)
	}
	return out
}

func (r *Registry) instance(path string) (any, error) {
	path = strings.TrimSpace(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[path]; ok {
		return inst, nil
	}
	if err, ok := r.failed[path]; ok {
		return nil, err
	}
	f, ok := r.factories[path]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}

	inst, err := safeConstruct(path, f)
	if err != nil {
		wrapped := fmt.Errorf("construct %s: %w", path, err)
		r.failed[path] = wrapped
		return nil, wrapped
	}
	r.instances[path] = inst
	return inst, nil
}

func safeConstruct(path string, f Factory) (inst any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in factory for %s: %v", path, rec)
		}
	}()
	inst, err = f()
	if err == nil && inst == nil {
		err = errors.New("factory returned nil instance")
	}
	return inst, err
}
