// Package eventcache stores raw fetched events in one flat file per
// scope (repository or tracker project). Scopes are independently
// rebuildable from upstream, so the store never merges or patches:
// a save replaces the whole scope artifact.
package eventcache

import (
	"fmt"
	"strings"

	"github.com/devpulse/devpulse/internal/persist"
)

// scopeSeparatorReplacement substitutes path and column separators in
// scope names so file identity stays deterministic and CSV-safe.
const scopeSeparatorReplacement = "__"

var scopeSanitizer = strings.NewReplacer(
	"/", scopeSeparatorReplacement,
	"\\", scopeSeparatorReplacement,
	";", scopeSeparatorReplacement,
)

// Store persists raw event slices keyed by scope name.
// Concurrent writers to the same scope are not supported; refreshes
// are serialized upstream.
type Store[T any] struct {
	dir   string
	codec persist.Codec
}

// NewStore creates a store rooted at dir using the given codec.
func NewStore[T any](dir string, codec persist.Codec) *Store[T] {
	return &Store[T]{dir: dir, codec: codec}
}

// Filename returns the artifact basename for a scope.
func (s *Store[T]) Filename(scope string) string {
	return scopeSanitizer.Replace(scope)
}

// Has reports whether a cache artifact exists for the scope.
func (s *Store[T]) Has(scope string) bool {
	return persist.Exists(s.dir, s.Filename(scope), s.codec)
}

// Load reads the scope's events. A missing artifact is reported with
// an error satisfying persist.IsNotExist.
func (s *Store[T]) Load(scope string) ([]T, error) {
	var events []T

	err := persist.Load(s.dir, s.Filename(scope), s.codec, &events)
	if err != nil {
		return nil, fmt.Errorf("load scope %s: %w", scope, err)
	}

	return events, nil
}

// Save replaces the scope's events wholesale.
func (s *Store[T]) Save(scope string, events []T) error {
	err := persist.Save(s.dir, s.Filename(scope), s.codec, events)
	if err != nil {
		return fmt.Errorf("save scope %s: %w", scope, err)
	}

	return nil
}

// Scopes lists the scopes currently cached, in filename order.
func (s *Store[T]) Scopes() ([]string, error) {
	names, err := persist.List(s.dir, s.codec)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	return names, nil
}
