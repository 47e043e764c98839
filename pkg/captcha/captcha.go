// Package captcha solves the slider challenges the companion API returns
// when it suspects automated traffic. Solvers are looked up by provider
// name in an explicit Registry.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

var (
	ErrUnknownProvider = errors.New("unknown captcha provider")
	ErrNotConfigured   = errors.New("captcha solver is not configured")
)

// Solver returns the payload the API expects in the geeTestData field.
type Solver interface {
	Name() string
	Solve(ctx context.Context) (string, error)
}

// SolveError is returned when the provider rejects or fails a solve.
type SolveError struct {
	Provider string
	Message  string
	Err      error
}

func (e *SolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s solve failed: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s solve failed: %s", e.Provider, e.Message)
}

func (e *SolveError) Unwrap() error {
	return e.Err
}

// Config holds what a provider needs to build a solver.
type Config struct {
	AppKey    string
	CaptchaID string
	Endpoint  string
	Timeout   time.Duration
	Client    *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Factory builds a solver from configuration.
type Factory func(cfg Config) (Solver, error)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding every built-in provider.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TTOCRProvider, NewTTOCRSolver)
	return r
}

func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the solver registered under name. An empty name means no
// solver is configured and returns (nil, nil).
func (r *Registry) New(name string, cfg Config) (Solver, error) {
	if name == "" {
		return nil, nil
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	return factory(cfg)
}
