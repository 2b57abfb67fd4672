package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

// EachJSON decodes a top-level JSON array one element at a time and calls
// fn for each. Empty input is treated as an empty array.
func EachJSON[T any](ctx context.Context, r io.Reader, fn func(i int, item T) error) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "json: read opening token")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return eris.Errorf("json: expected '[', got %v", tok)
	}

	for i := 0; dec.More(); i++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "json: cancelled")
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return eris.Wrapf(err, "json: decode element %d", i)
		}
		if err := fn(i, item); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "json: read closing token")
	}
	return nil
}

// ReadJSONArray collects the elements of a top-level JSON array.
func ReadJSONArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	var items []T
	err := EachJSON(ctx, r, func(_ int, item T) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
