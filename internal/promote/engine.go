// Package promote decides whether a freshly trained model version should
// replace the one currently marked production.
package promote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mlserved/internal/registry"
)

// Decision is the transient outcome of one register-and-decide call.
// It is derived purely from the two metrics and never persisted.
type Decision struct {
	Name     string
	Version  int
	Promoted bool
	Metric   float64
	Baseline float64
}

// Engine runs the promotion decision against a registry.
type Engine struct {
	reg registry.Client
	log zerolog.Logger
}

// New returns an Engine backed by reg.
func New(reg registry.Client, log zerolog.Logger) *Engine {
	return &Engine{reg: reg, log: log}
}

// CurrentProductionMetric returns the metric of the version holding the
// production alias, or 0.0 when no version does. Any first model beats
// an empty registry.
func (e *Engine) CurrentProductionMetric(ctx context.Context, name string) (float64, error) {
	v, err := e.reg.GetVersionByAlias(ctx, name, registry.AliasProduction)
	if err != nil {
		if registry.IsNotFound(err) {
			e.log.Info().Str("model", name).Msg("no production version, baseline 0.0")
			return 0, nil
		}
		return 0, err
	}
	metric, err := e.reg.GetVersionMetric(ctx, name, v.Version)
	if err != nil {
		if registry.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return metric, nil
}

// RegisterAndDecide registers the artifact as a new version, compares its
// metric against the current production baseline and assigns exactly one
// alias: production when strictly better, challenger otherwise. Ties never
// promote, so an equal-quality retrain causes no alias churn or reload.
//
// When the alias step fails after registration succeeded, the version
// stays registered with no alias. That is a valid inert state, not an
// inconsistency; the returned error reports only the alias failure.
func (e *Engine) RegisterAndDecide(ctx context.Context, name, artifactRef string, metric float64, description string) (Decision, error) {
	v, err := e.reg.RegisterVersion(ctx, name, artifactRef, metric, description)
	if err != nil {
		return Decision{}, fmt.Errorf("register version: %w", err)
	}

	baseline, err := e.CurrentProductionMetric(ctx, name)
	if err != nil {
		return Decision{}, fmt.Errorf("fetch baseline: %w", err)
	}

	d := Decision{
		Name:     name,
		Version:  v.Version,
		Promoted: metric > baseline,
		Metric:   metric,
		Baseline: baseline,
	}

	alias := registry.AliasChallenger
	if d.Promoted {
		alias = registry.AliasProduction
	}
	if err := e.reg.SetAlias(ctx, name, alias, v.Version); err != nil {
		return Decision{}, fmt.Errorf("set alias %q on version %d: %w", string(alias), v.Version, err)
	}

	e.log.Info().
		Str("model", name).
		Int("version", d.Version).
		Bool("promoted", d.Promoted).
		Float64("metric", d.Metric).
		Float64("baseline", d.Baseline).
		Msg("promotion decision")
	return d, nil
}
