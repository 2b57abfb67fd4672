// Package matcher reconciles free-text region names against a canonical
// name list using approximate string similarity.
package matcher

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geomarketing-cli/internal/model"
)

// DefaultThreshold is the minimum confidence for a name to count as matched.
const DefaultThreshold = 80

// ErrEmptyQuery is returned when Match is called with a blank name.
var ErrEmptyQuery = eris.New("matcher: empty query")

// Candidate is one scored canonical name.
type Candidate struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
	Score int    `json:"score"`
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the minimum confidence for a match.
func WithThreshold(threshold int) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithScorer sets the similarity backend.
func WithScorer(s Scorer) Option {
	return func(m *Matcher) {
		if s != nil {
			m.scorer = s
		}
	}
}

// Matcher matches queries against a fixed candidate list. Candidates are
// folded once at construction; a Matcher is safe for concurrent use.
type Matcher struct {
	candidates []string
	folded     []string
	scorer     Scorer
	threshold  int
}

// NewMatcher creates a Matcher over the given canonical names. The order of
// candidates is significant: on equal scores the earliest candidate wins.
func NewMatcher(candidates []string, opts ...Option) *Matcher {
	m := &Matcher{
		candidates: append([]string(nil), candidates...),
		folded:     make([]string, len(candidates)),
		scorer:     WRatio,
		threshold:  DefaultThreshold,
	}
	for i, c := range candidates {
		m.folded[i] = Fold(c)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured minimum confidence.
func (m *Matcher) Threshold() int {
	return m.threshold
}

// Match returns the best-scoring candidate for query. If the best score is
// below the threshold, or there are no candidates, the zero MatchResult is
// returned. Ties go to the first candidate in list order.
func (m *Matcher) Match(query string) (model.MatchResult, error) {
	best, ok, err := m.best(query)
	if err != nil {
		return model.MatchResult{}, err
	}
	if !ok || best.Score < m.threshold {
		return model.MatchResult{}, nil
	}
	return model.MatchResult{MatchedName: best.Name, Confidence: best.Score}, nil
}

// Best returns the highest-scoring candidate regardless of threshold.
// ok is false when there are no candidates.
func (m *Matcher) Best(query string) (Candidate, bool, error) {
	return m.best(query)
}

func (m *Matcher) best(query string) (Candidate, bool, error) {
	if strings.TrimSpace(query) == "" {
		return Candidate{}, false, ErrEmptyQuery
	}
	if len(m.candidates) == 0 {
		return Candidate{}, false, nil
	}

	q := Fold(query)
	best := Candidate{Index: -1, Score: -1}
	for i, c := range m.folded {
		s := m.scorer(q, c)
		// Strictly greater keeps the first occurrence on ties.
		if s > best.Score {
			best = Candidate{Name: m.candidates[i], Index: i, Score: s}
		}
	}
	return best, true, nil
}

// Rank scores every candidate and returns up to limit of them, best first.
// Equal scores keep candidate list order. limit <= 0 returns all.
func (m *Matcher) Rank(query string, limit int) ([]Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	q := Fold(query)
	results := make([]Candidate, len(m.folded))
	for i, c := range m.folded {
		results[i] = Candidate{Name: m.candidates[i], Index: i, Score: m.scorer(q, c)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Match is a convenience wrapper that matches a single query with the
// default scorer.
func Match(query string, candidates []string, threshold int) (model.MatchResult, error) {
	return NewMatcher(candidates, WithThreshold(threshold)).Match(query)
}
