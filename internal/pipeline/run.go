package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/geospatial"
	"github.com/sells-group/geomarketing-cli/internal/loader"
	"github.com/sells-group/geomarketing-cli/internal/merge"
	"github.com/sells-group/geomarketing-cli/internal/model"
	"github.com/sells-group/geomarketing-cli/internal/scorer"
)

// Stage names, in execution order.
const (
	StageFilter    = "filter"
	StageMerge     = "merge"
	StageProximity = "proximity"
	StageScore     = "score"
	StageRank      = "rank"
)

// StageResult records how long one stage took.
type StageResult struct {
	Name     string `json:"name"`
	Duration int64  `json:"duration_ms"`
}

// Diagnostics collects every recoverable condition of a run.
type Diagnostics struct {
	merge.Diagnostics
	Regions         int            `json:"regions"`
	Matched         int            `json:"matched"`
	MissingGeometry []string       `json:"missing_geometry,omitempty"`
	MissingSources  []string       `json:"missing_sources,omitempty"`
	Ineligible      map[string]int `json:"ineligible,omitempty"`
}

// Result is the output of one scoring run.
type Result struct {
	RunID       string                     `json:"run_id"`
	Digest      string                     `json:"digest,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	Regions     []model.ScoredRegion       `json:"regions"`
	Segments    []scorer.Segment           `json:"segments"`
	Statistics  map[string][]scorer.Ranked `json:"statistics"`
	Diagnostics Diagnostics                `json:"diagnostics"`
	Stages      []StageResult              `json:"stages"`
}

// Pipeline runs merge, proximity, scoring, and ranking over a Dataset.
type Pipeline struct {
	engine *scorer.Engine
	opts   Options
}

// New creates a Pipeline. A nil registry uses the built-in segments.
func New(registry *scorer.Registry, opts Options) *Pipeline {
	return &Pipeline{
		engine: scorer.NewEngine(registry, scorer.WithIncomeField(opts.IncomeField)),
		opts:   opts,
	}
}

// Registry returns the segment registry used for scoring.
func (p *Pipeline) Registry() *scorer.Registry { return p.engine.Registry() }

// Options returns the run options.
func (p *Pipeline) Options() Options { return p.opts }

// Run scores every region of ds. Regions without geometry are excluded and
// reported; all other regions appear in the result in input order.
func (p *Pipeline) Run(ctx context.Context, ds *loader.Dataset) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Digest:    ds.Digest,
		CreatedAt: time.Now().UTC(),
		Segments:  p.engine.Registry().Segments(),
	}
	log := zap.L().With(zap.String("run_id", result.RunID))
	log.Info("pipeline: starting run", zap.Int("regions", len(ds.Regions)))

	trackStage := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		duration := time.Since(start).Milliseconds()
		if err != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
			return err
		}
		result.Stages = append(result.Stages, StageResult{Name: name, Duration: duration})
		log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", duration),
		)
		return nil
	}

	// ===== Filter: drop regions without geometry =====
	var regions []model.Region
	if err := trackStage(StageFilter, func() error {
		regions, result.Diagnostics.MissingGeometry = withGeometry(ds.Regions)
		if len(regions) == 0 {
			return eris.Wrap(merge.ErrNoRegions, "pipeline: no region has geometry")
		}
		return nil
	}); err != nil {
		return nil, err
	}
	for _, name := range result.Diagnostics.MissingGeometry {
		log.Warn("pipeline: region excluded, no geometry", zap.String("region", name))
	}

	// ===== Merge: reconcile names and join attributes =====
	var merged *merge.Result
	if err := trackStage(StageMerge, func() error {
		mopts, err := p.opts.mergeOptions()
		if err != nil {
			return err
		}
		merged, err = merge.MergeRaw(regions, ds.Income, mopts)
		return err
	}); err != nil {
		return nil, err
	}
	result.Diagnostics.Diagnostics = merged.Diagnostics
	result.Diagnostics.Regions = len(merged.Regions)
	result.Diagnostics.Matched = merged.MatchedCount()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled after merge")
	}

	// ===== Proximity: distance weights per point set =====
	result.Diagnostics.MissingSources = missingSources(p.engine.Registry().Sources(), ds.Sets)
	for _, src := range result.Diagnostics.MissingSources {
		log.Warn("pipeline: point set referenced by a segment was not loaded", zap.String("set", src))
	}

	var proximity map[string][]float64
	if err := trackStage(StageProximity, func() error {
		var err error
		proximity, err = geospatial.ComputeAll(ctx, regions, ds.Sets, p.opts.Proximity)
		return err
	}); err != nil {
		return nil, err
	}

	// ===== Score: evaluate segment formulas =====
	if err := trackStage(StageScore, func() error {
		var err error
		result.Regions, err = p.engine.Score(ctx, merged.Regions, proximity)
		return err
	}); err != nil {
		return nil, err
	}

	// ===== Rank: top-k per segment =====
	if err := trackStage(StageRank, func() error {
		if p.opts.TopK < 1 {
			return eris.Errorf("pipeline: rank: top_k must be >= 1, got %d", p.opts.TopK)
		}
		result.Statistics = scorer.Statistics(result.Regions, result.Segments, p.opts.TopK)
		result.Diagnostics.Ineligible = ineligible(result.Regions, result.Segments)
		return nil
	}); err != nil {
		return nil, err
	}

	log.Info("pipeline: run complete",
		zap.Int("scored", len(result.Regions)),
		zap.Int("matched", result.Diagnostics.Matched),
		zap.Int("missing_geometry", len(result.Diagnostics.MissingGeometry)),
	)
	return result, nil
}

// withGeometry splits regions into those that can be scored and the names
// of those that cannot.
func withGeometry(regions []model.Region) (kept []model.Region, missing []string) {
	kept = make([]model.Region, 0, len(regions))
	for _, r := range regions {
		if r.HasGeometry() {
			kept = append(kept, r)
			continue
		}
		missing = append(missing, r.Name)
	}
	return kept, missing
}

func missingSources(referenced []string, sets []model.PointOfInterestSet) []string {
	loaded := make(map[string]bool, len(sets))
	for _, s := range sets {
		loaded[s.Name] = true
	}
	var missing []string
	for _, src := range referenced {
		if !loaded[src] {
			missing = append(missing, src)
		}
	}
	sort.Strings(missing)
	return missing
}

// ineligible counts regions with no weight, per segment ID.
func ineligible(regions []model.ScoredRegion, segments []scorer.Segment) map[string]int {
	out := make(map[string]int)
	for _, s := range segments {
		for i := range regions {
			if regions[i].Weight(s.ID) == nil {
				out[s.ID]++
			}
		}
	}
	return out
}
