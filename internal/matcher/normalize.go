package matcher

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

var multiSpaceRe = regexp.MustCompile(`\s+`)

// punctuation is replaced by a space so that "Affoltern a.A." and
// "Affoltern a A" fold to the same tokens.
var punctuation = strings.NewReplacer(
	",", " ",
	".", " ",
	"'", " ",
	"’", " ",
	"\"", " ",
	"-", " ",
	"/", " ",
	"(", " ",
	")", " ",
	"*", " ",
)

// Fold standardizes a region name for comparison by:
//  1. Trimming whitespace
//  2. Composing Unicode to NFC so "u" + combining diaeresis equals "ü"
//  3. Transliterating to ASCII ("Zürich" -> "Zurich", "Neuchâtel" -> "Neuchatel")
//  4. Lowercasing
//  5. Replacing punctuation with spaces and collapsing runs of whitespace
func Fold(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = norm.NFC.String(name)
	name = unidecode.Unidecode(name)
	name = strings.ToLower(name)
	name = punctuation.Replace(name)
	name = multiSpaceRe.ReplaceAllString(name, " ")

	return strings.TrimSpace(name)
}

// tokens splits a folded name into its words.
func tokens(folded string) []string {
	return strings.Fields(folded)
}
