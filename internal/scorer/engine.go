package scorer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/model"
)

// Engine scores merged regions against every segment in a registry.
type Engine struct {
	registry    *Registry
	incomeField model.IncomeField
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithIncomeField selects which income attribute is normalized and scored.
func WithIncomeField(f model.IncomeField) EngineOption {
	return func(e *Engine) {
		if f != "" {
			e.incomeField = f
		}
	}
}

// NewEngine creates an Engine. A nil registry uses DefaultRegistry.
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	e := &Engine{registry: registry, incomeField: model.IncomePerCapita}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Registry returns the engine's segment registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Score normalizes income across merged, then evaluates each segment for
// each region. proximity maps a point-set name to weights positionally
// aligned with merged. A term whose input is missing is dropped and the
// remaining weights are rescaled; a segment with no usable term gets a nil
// weight. Output order matches merged.
func (e *Engine) Score(ctx context.Context, merged []model.MergedRegion, proximity map[string][]float64) ([]model.ScoredRegion, error) {
	for name, weights := range proximity {
		if len(weights) != len(merged) {
			return nil, eris.Errorf("scorer: proximity %q has %d weights for %d regions", name, len(weights), len(merged))
		}
	}

	incomes := make([]*float64, len(merged))
	for i := range merged {
		incomes[i] = merged[i].Income(e.incomeField)
	}
	normalized := Normalize(incomes)

	segments := e.registry.Segments()
	out := make([]model.ScoredRegion, len(merged))
	var renormalized, ineligible int

	for i := range merged {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "scorer: score regions")
		}

		sr := model.ScoredRegion{
			MergedRegion: merged[i],
			Proximity:    make(map[string]float64, len(proximity)),
			Scores:       make(map[string]model.SegmentScore, len(segments)),
		}
		sr.IncomeNormalized = normalized[i]
		for name, weights := range proximity {
			sr.Proximity[name] = weights[i]
		}

		for _, seg := range segments {
			score := evaluate(seg, sr.ID, sr.IncomeNormalized, sr.Proximity)
			if score.Renormalized {
				renormalized++
			}
			if score.Weight == nil {
				ineligible++
			}
			sr.Scores[seg.ID] = score
		}
		out[i] = sr
	}

	zap.L().Info("scorer: regions scored",
		zap.Int("regions", len(out)),
		zap.Int("segments", len(segments)),
		zap.Int("renormalized", renormalized),
		zap.Int("ineligible", ineligible),
	)

	return out, nil
}

func evaluate(seg Segment, regionID string, income *float64, proximity map[string]float64) model.SegmentScore {
	score := model.SegmentScore{
		RegionID:   regionID,
		Segment:    seg.ID,
		Components: make(map[string]float64, len(seg.Terms)),
	}

	var sum, present, total float64
	for _, t := range seg.Terms {
		total += t.Weight

		v, ok := termValue(t, income, proximity)
		if !ok {
			score.Renormalized = true
			continue
		}
		score.Components[t.Component()] = v
		sum += t.Weight * v
		present += t.Weight
	}

	if present <= 0 {
		score.Renormalized = false
		return score
	}

	// Present terms take over the weight of missing ones. The result is not
	// clamped: segments whose weights sum above 1 can score above 1.
	w := sum
	if score.Renormalized {
		w = sum * total / present
	}
	score.Weight = &w
	return score
}

func termValue(t Term, income *float64, proximity map[string]float64) (float64, bool) {
	switch t.Kind {
	case KindIncomeBell:
		if income == nil {
			return 0, false
		}
		return Bell(*income, t.Target), true
	case KindIncome:
		if income == nil {
			return 0, false
		}
		return *income, true
	case KindProximity:
		v, ok := proximity[t.Source]
		return v, ok
	default:
		return 0, false
	}
}
