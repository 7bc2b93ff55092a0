// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package compose runs the feature-gated composition of a miniservice.
//
// Composition is a fixed, ordered list of steps. Each step has a guard over
// the feature set and an effect on the service registry; a step whose guard
// is false is skipped and leaves no trace in the registry. The host supplies
// a pre-hook, run before any built-in step, and a post-hook, run once the
// persistence backend is known. A fatal step error aborts composition: no
// later step runs and no registry is returned.
package compose

import (
	"context"
	"fmt"
	"time"

	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/feature"
	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/metrics"
	"github.com/MKhiriev/go-miniservice/internal/module"
	"github.com/MKhiriev/go-miniservice/internal/registry"
	"github.com/MKhiriev/go-miniservice/internal/restclient"
)

// Hook lets the host bind its own capabilities during composition. A nil
// Hook is skipped.
type Hook func(ctx context.Context, reg *registry.Registry) error

// StepOutcome describes one evaluated step.
type StepOutcome struct {
	Position int
	Name     string
	Skipped  bool
	Elapsed  time.Duration
	Err      error
}

// PlannedStep is one entry of Plan.
type PlannedStep struct {
	Position int
	Name     string
	Runs     bool
}

// Engine composes registries from one configuration. It holds no state
// between Compose calls.
type Engine struct {
	cfg        config.StructuredConfig
	log        *logger.Logger
	modules    []module.Module
	metrics    *metrics.Metrics
	observer   func(StepOutcome)
	clientOpts []restclient.Option
	steps      []Step
}

type Option func(*Engine)

// WithModules supplies the modules scanned by the clean-arch, router,
// versioning and documentation steps.
func WithModules(mods ...module.Module) Option {
	return func(e *Engine) { e.modules = append(e.modules, mods...) }
}

// WithMetrics makes the REST client report to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithObserver is called after every step, skipped steps included.
func WithObserver(fn func(StepOutcome)) Option {
	return func(e *Engine) { e.observer = fn }
}

// WithRESTClientOptions appends options to those derived from configuration.
func WithRESTClientOptions(opts ...restclient.Option) Option {
	return func(e *Engine) { e.clientOpts = append(e.clientOpts, opts...) }
}

func NewEngine(cfg config.StructuredConfig, log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		cfg:   cfg,
		log:   log.WithComponent("compose"),
		steps: Steps(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.modules = module.Select(e.modules, cfg.Modules)

	return e
}

// Plan reports, in order, which steps would run for features.
func (e *Engine) Plan(features feature.Set) []PlannedStep {
	st := e.newState(features, nil, nil)

	out := make([]PlannedStep, 0, len(e.steps))
	for i, s := range e.steps {
		out = append(out, PlannedStep{Position: i + 1, Name: s.Name, Runs: s.runs(st)})
	}
	return out
}

// Compose runs every step in order against a new registry and seals it.
// Errors are wrapped in *StepError and keep their cause for errors.Is.
func (e *Engine) Compose(ctx context.Context, features feature.Set, pre, post Hook) (*registry.Registry, error) {
	st := e.newState(features, pre, post)

	e.log.Info().
		Strs("features", features.Enabled()).
		Strs("modules", module.Names(e.modules)).
		Msg("composing service")

	for i, s := range e.steps {
		outcome := StepOutcome{Position: i + 1, Name: s.Name}

		if !s.runs(st) {
			outcome.Skipped = true
			e.report(outcome)
			continue
		}

		start := time.Now()
		err := s.Apply(ctx, st)
		outcome.Elapsed = time.Since(start)
		outcome.Err = err
		e.report(outcome)

		if err != nil {
			return nil, &StepError{Step: s.Name, Err: err}
		}
		if err = ctx.Err(); err != nil {
			return nil, &StepError{Step: s.Name, Err: fmt.Errorf("composition cancelled: %w", err)}
		}
	}

	st.reg.Seal()
	e.log.Info().
		Int("capabilities", len(st.reg.Capabilities())).
		Msg("service composed")

	return st.reg, nil
}

func (e *Engine) report(o StepOutcome) {
	ev := e.log.Debug()
	switch {
	case o.Err != nil:
		ev = e.log.Error().Err(o.Err)
	case !o.Skipped:
		ev = e.log.Info()
	}
	ev.Int("position", o.Position).
		Str("step", o.Name).
		Bool("skipped", o.Skipped).
		Dur("elapsed", o.Elapsed).
		Msg("compose step")

	if e.observer != nil {
		e.observer(o)
	}
}

func (e *Engine) newState(features feature.Set, pre, post Hook) *State {
	cfg := e.cfg
	// modules see the feature set composition actually runs with
	cfg.Features = make(map[string]bool, len(features.Names()))
	for _, name := range features.Names() {
		cfg.Features[name] = features.IsEnabled(name)
	}

	return &State{
		Features: features,
		Config:   cfg,
		reg:      registry.New(),
		log:      e.log,
		modules:  e.modules,
		metrics:  e.metrics,
		clientOp: e.clientOpts,
		pre:      pre,
		post:     post,
	}
}
