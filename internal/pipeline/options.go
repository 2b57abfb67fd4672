package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geomarketing-cli/internal/config"
	"github.com/sells-group/geomarketing-cli/internal/geospatial"
	"github.com/sells-group/geomarketing-cli/internal/matcher"
	"github.com/sells-group/geomarketing-cli/internal/merge"
	"github.com/sells-group/geomarketing-cli/internal/model"
	"github.com/sells-group/geomarketing-cli/internal/scorer"
)

// Options holds the scoring-relevant settings of a run.
type Options struct {
	Threshold   int
	ScorerName  string
	Proximity   geospatial.Options
	IncomeField model.IncomeField
	TopK        int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:   matcher.DefaultThreshold,
		ScorerName:  matcher.ScorerWRatio,
		Proximity:   geospatial.DefaultOptions(),
		IncomeField: model.IncomePerCapita,
		TopK:        scorer.DefaultTopK,
	}
}

// OptionsFromConfig derives run options from cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()

	metric, err := geospatial.ParseMetric(cfg.Proximity.Metric)
	if err != nil {
		return opts, err
	}
	if _, err := matcher.ScorerByName(cfg.Matcher.Scorer); err != nil {
		return opts, err
	}

	opts.Threshold = cfg.Matcher.Threshold
	opts.ScorerName = cfg.Matcher.Scorer
	opts.Proximity.MaxDistance = cfg.Proximity.MaxDistance
	opts.Proximity.Metric = metric
	if cfg.Proximity.Workers > 0 {
		opts.Proximity.Workers = cfg.Proximity.Workers
	}
	if cfg.Data.Income.Field != "" {
		opts.IncomeField = model.IncomeField(cfg.Data.Income.Field)
	}
	if cfg.Report.TopK > 0 {
		opts.TopK = cfg.Report.TopK
	}
	return opts, nil
}

// mergeOptions builds the matcher settings for the merge stage.
func (o Options) mergeOptions() (merge.Options, error) {
	s, err := matcher.ScorerByName(o.ScorerName)
	if err != nil {
		return merge.Options{}, eris.Wrap(err, "pipeline: merge options")
	}
	return merge.Options{Threshold: o.Threshold, Scorer: s}, nil
}

// fingerprint renders the settings that change scoring output. Workers is
// left out since it never changes results.
func (o Options) fingerprint() string {
	return fmt.Sprintf("threshold=%d;scorer=%s;max=%g;metric=%s;income=%s;top=%d",
		o.Threshold, o.ScorerName, o.Proximity.MaxDistance, o.Proximity.Metric, o.IncomeField, o.TopK)
}
