package matcher

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/rotisserie/eris"
	"github.com/xrash/smetrics"
)

// Scorer rates the similarity of two folded names on a 0-100 scale.
type Scorer func(a, b string) int

// Scorer names accepted by ScorerByName.
const (
	ScorerRatio       = "ratio"
	ScorerTokenSet    = "token_set"
	ScorerJaroWinkler = "jaro_winkler"
	ScorerWRatio      = "wratio"
)

// tokenScale discounts token-based matches so that an exact spelling always
// outranks a mere word-subset match ("Affoltern" vs "Affoltern am Albis").
const tokenScale = 0.95

// ScorerByName returns the named similarity backend.
func ScorerByName(name string) (Scorer, error) {
	switch name {
	case ScorerRatio:
		return Ratio, nil
	case ScorerTokenSet:
		return TokenSetRatio, nil
	case ScorerJaroWinkler:
		return JaroWinkler, nil
	case ScorerWRatio, "":
		return WRatio, nil
	default:
		return nil, eris.Errorf("matcher: unknown scorer %q", name)
	}
}

// Ratio is the normalized Levenshtein similarity: 100 * (1 - distance/maxLen),
// measured in runes.
func Ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := levenshtein.ComputeDistance(a, b)
	return toPercent(1 - float64(d)/float64(maxLen))
}

// TokenSetRatio compares the shared words of both names against each name's
// full word set, so reordered or partially qualified names still score high.
func TokenSetRatio(a, b string) int {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for w := range ta {
		if tb[w] {
			inter = append(inter, w)
		} else {
			onlyA = append(onlyA, w)
		}
	}
	for w := range tb {
		if !ta[w] {
			onlyB = append(onlyB, w)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))

	return max(Ratio(t0, t1), Ratio(t0, t2), Ratio(t1, t2))
}

// JaroWinkler scores with the Jaro-Winkler metric (boost threshold 0.7,
// prefix size 4).
func JaroWinkler(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return toPercent(smetrics.JaroWinkler(a, b, 0.7, 4))
}

// WRatio is the default backend: the better of Ratio and a discounted
// TokenSetRatio.
func WRatio(a, b string) int {
	r := Ratio(a, b)
	if r == 100 {
		return r
	}
	ts := toPercent(float64(TokenSetRatio(a, b)) * tokenScale / 100)
	return max(r, ts)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range tokens(s) {
		set[w] = true
	}
	return set
}

func toPercent(v float64) int {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 100
	}
	return int(math.Round(v * 100))
}
