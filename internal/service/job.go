package service

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
)

// toItems turns parsed records into batch items. A *ParseError becomes a
// failed item; any other error is yielded as a stream failure.
func toItems[T any](records iter.Seq2[T, error], item func(T) Item) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for rec, err := range records {
			if err != nil {
				var pe *ParseError
				if errors.As(err, &pe) {
					if !yield(Item{Err: err}, nil) {
						return
					}
					continue
				}
				yield(Item{}, err)
				return
			}
			if !yield(item(rec), nil) {
				return
			}
		}
	}
}

func openLocal(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

func constant(s string) func() string {
	return func() string { return s }
}
