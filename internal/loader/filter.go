package loader

import (
	"strconv"
	"strings"
)

// IDRange is an inclusive range of numeric region identifiers.
type IDRange struct {
	Min int
	Max int
}

// Contains reports whether id lies within the range.
func (r IDRange) Contains(id int) bool {
	return id >= r.Min && id <= r.Max
}

// regionFilter drops source rows outside the configured country and id
// ranges. A zero filter keeps everything.
type regionFilter struct {
	countryField string
	country      string
	ranges       []IDRange
	excluded     int
}

func newRegionFilter(opts RegionOptions) *regionFilter {
	f := &regionFilter{ranges: opts.IDRanges}
	if opts.CountryField != "" && opts.Country != "" {
		f.countryField = opts.CountryField
		f.country = strings.TrimSpace(opts.Country)
	}
	return f
}

func (f *regionFilter) checksCountry() bool {
	return f.countryField != ""
}

// keep reports whether a row with the given id and country value passes.
// Rows with a non-numeric id never match a configured range.
func (f *regionFilter) keep(id, country string) bool {
	if f.checksCountry() && !strings.EqualFold(strings.TrimSpace(country), f.country) {
		f.excluded++
		return false
	}
	if len(f.ranges) == 0 {
		return true
	}
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err == nil {
		for _, r := range f.ranges {
			if r.Contains(n) {
				return true
			}
		}
	}
	f.excluded++
	return false
}
