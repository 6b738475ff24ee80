package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"clientpulse/pkg/domain"
)

// Stage is one derivation layer. Stages run in a fixed order and may read the
// outputs of earlier stages through the pass sink, never those of later ones.
type Stage interface {
	Name() string
	Compute(p *Pass)
}

// Engine orchestrates the staged recomputation of every derived value. It is
// single-threaded; callers serialize passes.
type Engine struct {
	policy DerivationPolicy
	stages []Stage
}

// NewEngine constructs an engine with the built-in stage set in dependency order.
func NewEngine(policy DerivationPolicy) *Engine {
	return &Engine{
		policy: policy,
		stages: []Stage{
			outcomeStage{},
			workstreamStage{},
			milestoneStage{},
			engagementStage{},
			accountStage{},
		},
	}
}

// Policy returns the weighting policy the engine derives with.
func (e *Engine) Policy() DerivationPolicy { return e.policy }

// Pass carries the shared inputs of one recomputation: the entity view, the
// join indexes (rebuilt per pass), the policy, the pass timestamp, and the
// sink that accumulates derived values stage by stage.
type Pass struct {
	View    RuleView
	Indexes Indexes
	Policy  DerivationPolicy
	Now     time.Time

	sink *domain.DerivedStore
}

// Emit upserts a derived value into the pass sink.
func (p *Pass) Emit(objectType EntityType, objectID string, field DerivedField, value any, explanation Explanation) {
	p.sink.Upsert(DerivedValue{
		ObjectType:  objectType,
		ObjectID:    objectID,
		Field:       field,
		Value:       value,
		ComputedAt:  p.Now,
		Explanation: explanation,
	})
}

// Lookup reads a value emitted by an earlier stage of the same pass.
func (p *Pass) Lookup(objectType EntityType, objectID string, field DerivedField) (DerivedValue, bool) {
	return p.sink.Lookup(DerivedKey{ObjectType: objectType, ObjectID: objectID, Field: field})
}

// Number reads an earlier-stage numeric output, defaulting to 0 when absent
// or non-numeric.
func (p *Pass) Number(objectType EntityType, objectID string, field DerivedField) float64 {
	value, ok := p.Lookup(objectType, objectID, field)
	if !ok {
		return 0
	}
	switch v := value.Value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// Run executes all stages against a fresh sink and returns the resulting
// ordered derived-value collection.
func (e *Engine) Run(ctx context.Context, view RuleView, now time.Time) ([]DerivedValue, error) {
	sink := domain.NewDerivedStore()
	if err := e.RunInto(ctx, view, sink, now); err != nil {
		return nil, err
	}
	return sink.Records(), nil
}

// RunInto executes all stages against the supplied sink.
func (e *Engine) RunInto(ctx context.Context, view RuleView, sink *domain.DerivedStore, now time.Time) error {
	pass := &Pass{
		View:    view,
		Indexes: BuildIndexes(view),
		Policy:  e.policy,
		Now:     now,
		sink:    sink,
	}
	for _, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		stage.Compute(pass)
	}
	return nil
}

// RunStage executes a single named stage against an existing sink, reusing
// whatever earlier-stage values the sink already holds.
func (e *Engine) RunStage(ctx context.Context, name string, view RuleView, sink *domain.DerivedStore, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, stage := range e.stages {
		if stage.Name() != name {
			continue
		}
		stage.Compute(&Pass{
			View:    view,
			Indexes: BuildIndexes(view),
			Policy:  e.policy,
			Now:     now,
			sink:    sink,
		})
		return nil
	}
	return fmt.Errorf("unknown derivation stage %q", name)
}

// clamp01 bounds a ratio to [0,1]. NaN collapses to 0 so a bad input can
// never leak into a stored value.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// roundClamp100 rounds to the nearest integer and bounds to [0,100].
func roundClamp100(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}
