package model

import (
	"github.com/twpayne/go-geom"
)

// Well-known point-of-interest set names.
const (
	SetHotspots    = "hotspots"
	SetPublicity   = "publicity"
	SetCompetitors = "competitors"
)

// PointOfInterest is a single feature such as a public hotspot, an
// advertising location, or a competitor.
type PointOfInterest struct {
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Address  string   `json:"address,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
	Geometry geom.T   `json:"-"`
}

// PointOfInterestSet is a named collection of point features.
type PointOfInterestSet struct {
	Name   string            `json:"name"`
	Points []PointOfInterest `json:"points"`
}

// Len returns the number of features in the set.
func (s PointOfInterestSet) Len() int {
	return len(s.Points)
}
