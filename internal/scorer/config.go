// Package scorer normalizes regional attributes, evaluates segment formulas,
// and ranks regions per segment.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geomarketing-cli/internal/config"
)

// RegistryFromConfig builds the segment registry for a run. Without
// configured segments the built-in six are used.
func RegistryFromConfig(c config.ScoringConfig) (*Registry, error) {
	if len(c.Segments) == 0 {
		return DefaultRegistry(), nil
	}
	if err := ValidateConfig(c); err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, len(c.Segments))
	for _, sc := range c.Segments {
		seg := Segment{ID: sc.ID, Label: sc.Label, Description: sc.Description}
		for _, tc := range sc.Terms {
			seg.Terms = append(seg.Terms, Term{
				Kind:   TermKind(tc.Kind),
				Weight: tc.Weight,
				Target: tc.Target,
				Source: tc.Source,
			})
		}
		segments = append(segments, seg)
	}
	return NewRegistry(segments...)
}

// ValidateConfig checks that configured segments are internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	for i, sc := range c.Segments {
		name := sc.ID
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("segments[%d].id is required", i))
			name = fmt.Sprintf("segments[%d]", i)
		}
		if len(sc.Terms) == 0 {
			errs = append(errs, fmt.Sprintf("%s needs at least one term", name))
		}

		var sum float64
		for j, tc := range sc.Terms {
			t := Term{Kind: TermKind(tc.Kind), Weight: tc.Weight, Target: tc.Target, Source: tc.Source}
			if err := t.validate(); err != nil {
				errs = append(errs, fmt.Sprintf("%s.terms[%d]: %s", name, j, err.Error()))
			}
			sum += tc.Weight
		}
		if len(sc.Terms) > 0 && sum <= 0 {
			errs = append(errs, fmt.Sprintf("%s weights must sum to > 0", name))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
