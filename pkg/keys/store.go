// Package keys is a load-once credential store backed by a line-oriented
// NAME=value configuration resource.
package keys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is returned when the configuration resource cannot be
// fetched. The store stays unloaded, so a later call retries.
var ErrUnavailable = errors.New("credential configuration unavailable")

// Store maps credential names to secrets, loaded at most once from a Source.
// Concurrent loads converge to a single fetch.
type Store struct {
	source Source
	group  singleflight.Group

	mu      sync.RWMutex
	loaded  bool
	entries map[string]string
}

// NewStore creates an unloaded Store reading from source.
func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Load fetches and parses the configuration. It is idempotent: once a load
// succeeds, later calls are no-ops. N concurrent callers share one fetch.
func (s *Store) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := s.group.Do("load", func() (any, error) {
		// A caller that queued behind a successful load has nothing to do.
		s.mu.RLock()
		loaded := s.loaded
		s.mu.RUnlock()
		if loaded {
			return nil, nil
		}

		text, err := s.source.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		entries := parse(text)

		s.mu.Lock()
		s.entries = entries
		s.loaded = true
		s.mu.Unlock()

		return nil, nil
	})
	return err
}

// Get returns the secret for name, loading the store first if needed.
// Absence is not an error: a name that was never loaded returns ok=false.
func (s *Store) Get(ctx context.Context, name string) (string, bool, error) {
	if err := s.Load(ctx); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.entries[name]
	return secret, ok, nil
}

// Entries returns a snapshot of everything currently loaded. Mutating the
// snapshot does not affect the store.
func (s *Store) Entries() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]string, len(s.entries))
	for name, secret := range s.entries {
		snapshot[name] = secret
	}
	return snapshot
}

// parse reads the line-oriented NAME=value format: blank and #-prefixed
// lines are skipped, lines without "=" are ignored, both sides are trimmed,
// and duplicate names overwrite (last wins). Casing is preserved.
func parse(text string) map[string]string {
	entries := make(map[string]string)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, secret, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		entries[strings.TrimSpace(name)] = strings.TrimSpace(secret)
	}

	return entries
}
