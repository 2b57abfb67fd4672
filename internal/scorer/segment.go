package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geomarketing-cli/internal/model"
)

// TermKind identifies what a segment term reads.
type TermKind string

// Term kinds.
const (
	// KindIncomeBell applies Bell to the normalized income.
	KindIncomeBell TermKind = "income_bell"
	// KindIncome uses the normalized income as is.
	KindIncome TermKind = "income"
	// KindProximity uses the proximity weight to a named point set.
	KindProximity TermKind = "proximity"
)

// Term is one weighted input of a segment formula.
type Term struct {
	Kind   TermKind `json:"kind"`
	Weight float64  `json:"weight"`
	Target float64  `json:"target,omitempty"`
	Source string   `json:"source,omitempty"`
}

// IncomeBell prefers regions whose normalized income is close to target.
func IncomeBell(weight, target float64) Term {
	return Term{Kind: KindIncomeBell, Weight: weight, Target: target}
}

// IncomeRaw rewards normalized income linearly.
func IncomeRaw(weight float64) Term {
	return Term{Kind: KindIncome, Weight: weight}
}

// Proximity rewards closeness to the point set named source.
func Proximity(weight float64, source string) Term {
	return Term{Kind: KindProximity, Weight: weight, Source: source}
}

// Component returns the key under which the term's value is reported.
func (t Term) Component() string {
	switch t.Kind {
	case KindIncomeBell:
		return "income_weight"
	case KindProximity:
		return t.Source + "_proximity"
	default:
		return string(t.Kind)
	}
}

func (t Term) validate() error {
	if t.Weight < 0 || math.IsNaN(t.Weight) {
		return eris.Errorf("weight must be >= 0, got %v", t.Weight)
	}
	switch t.Kind {
	case KindIncomeBell:
		if t.Target < 0 || t.Target > 1 {
			return eris.Errorf("bell target must be in [0,1], got %v", t.Target)
		}
	case KindIncome:
	case KindProximity:
		if strings.TrimSpace(t.Source) == "" {
			return eris.New("proximity term needs a source")
		}
	default:
		return eris.Errorf("unknown term kind %q", t.Kind)
	}
	return nil
}

// Segment is a business-customer category with its own scoring formula.
type Segment struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Terms       []Term `json:"terms"`
}

// Formula renders the segment as a human-readable expression.
func (s Segment) Formula() string {
	parts := make([]string, 0, len(s.Terms))
	for _, t := range s.Terms {
		var expr string
		switch t.Kind {
		case KindIncomeBell:
			expr = fmt.Sprintf("bell(income, %g)", t.Target)
		case KindIncome:
			expr = "income"
		case KindProximity:
			expr = t.Source
		}
		parts = append(parts, fmt.Sprintf("%g*%s", t.Weight, expr))
	}
	return strings.Join(parts, " + ")
}

// Default segment IDs.
const (
	SegmentKMU          = "kmu"
	SegmentHandwerk     = "handwerk"
	SegmentRetailGastro = "retail_gastro"
	SegmentService      = "service"
	SegmentTourism      = "tourism"
	SegmentStartup      = "startup"
)

// DefaultSegments returns the six built-in segments in display order.
func DefaultSegments() []Segment {
	hot := model.SetHotspots
	return []Segment{
		{
			ID: SegmentKMU, Label: "KMU",
			Description: "Small and medium enterprises: upper-middle income near hotspots",
			Terms:       []Term{IncomeBell(0.5, 0.7), Proximity(0.5, hot)},
		},
		{
			ID: SegmentHandwerk, Label: "Handwerk",
			Description: "Trades: middle income, moderate hotspot proximity",
			Terms:       []Term{IncomeBell(0.6, 0.5), Proximity(0.4, hot)},
		},
		{
			ID: SegmentRetailGastro, Label: "Retail & Gastro",
			Description: "Retail and hospitality: footfall first",
			Terms:       []Term{Proximity(0.7, hot), IncomeRaw(0.3)},
		},
		{
			ID: SegmentService, Label: "Dienstleistungen",
			Description: "Services: purchasing power first",
			Terms:       []Term{IncomeRaw(0.6), Proximity(0.4, hot)},
		},
		{
			ID: SegmentTourism, Label: "Tourismus",
			Description: "Tourism: hotspots dominate",
			Terms:       []Term{Proximity(0.8, hot), IncomeRaw(0.2)},
		},
		{
			ID: SegmentStartup, Label: "Startups",
			Description: "Startups: hotspots and slightly above-median income",
			Terms:       []Term{Proximity(0.5, hot), IncomeBell(0.5, 0.6)},
		},
	}
}

// Registry holds segments in display order, addressable by ID or label.
type Registry struct {
	segments []Segment
	byKey    map[string]int
}

// NewRegistry validates segments and indexes them. IDs and labels must be
// unique; every segment needs at least one term and a positive weight sum.
func NewRegistry(segments ...Segment) (*Registry, error) {
	if len(segments) == 0 {
		return nil, eris.New("scorer: no segments defined")
	}

	r := &Registry{byKey: make(map[string]int, 2*len(segments))}
	for _, s := range segments {
		if strings.TrimSpace(s.ID) == "" {
			return nil, eris.New("scorer: segment with blank id")
		}
		if s.Label == "" {
			s.Label = s.ID
		}
		if len(s.Terms) == 0 {
			return nil, eris.Errorf("scorer: segment %q has no terms", s.ID)
		}

		var sum float64
		for _, t := range s.Terms {
			if err := t.validate(); err != nil {
				return nil, eris.Wrapf(err, "scorer: segment %q", s.ID)
			}
			sum += t.Weight
		}
		if sum <= 0 {
			return nil, eris.Errorf("scorer: segment %q weights sum to zero", s.ID)
		}

		for _, key := range []string{strings.ToLower(s.ID), strings.ToLower(s.Label)} {
			if _, dup := r.byKey[key]; dup {
				return nil, eris.Errorf("scorer: duplicate segment key %q", key)
			}
		}
		r.byKey[strings.ToLower(s.ID)] = len(r.segments)
		r.byKey[strings.ToLower(s.Label)] = len(r.segments)
		r.segments = append(r.segments, s)
	}
	return r, nil
}

// DefaultRegistry returns a registry of DefaultSegments.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSegments()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Segments returns all segments in display order.
func (r *Registry) Segments() []Segment {
	return append([]Segment(nil), r.segments...)
}

// Lookup finds a segment by ID or label, case-insensitively.
func (r *Registry) Lookup(key string) (Segment, bool) {
	i, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Segment{}, false
	}
	return r.segments[i], true
}

// Sources returns the distinct point-set names referenced by any segment.
func (r *Registry) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range r.segments {
		for _, t := range s.Terms {
			if t.Kind == KindProximity && !seen[t.Source] {
				seen[t.Source] = true
				out = append(out, t.Source)
			}
		}
	}
	return out
}
