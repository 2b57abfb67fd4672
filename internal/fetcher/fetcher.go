// Package fetcher mirrors remote datasets to local files and decodes the
// tabular formats the loaders read.
package fetcher

import "context"

// Fetcher copies a remote dataset to a local path.
type Fetcher interface {
	// Mirror downloads url to path. When path already holds a copy that the
	// server reports as unchanged, the existing file is kept.
	Mirror(ctx context.Context, url, path string) (Mirrored, error)
}

// Mirrored describes the local copy produced by Mirror.
type Mirrored struct {
	Path      string
	Bytes     int64
	Unchanged bool
}
