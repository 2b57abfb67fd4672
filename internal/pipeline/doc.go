// Package pipeline runs a complete scoring pass: geometry filtering, name
// reconciliation and attribute merge, proximity weighting, segment scoring,
// and ranking. Results are cached by input content.
package pipeline
