package store

import (
	"context"
	"log/slog"
	"sync"
)

// Snapshot is what a page renders: the last aggregated value for its query
// key plus loading/error flags.
type Snapshot[T any] struct {
	Items   T
	Loading bool
	Err     error
}

// Loader produces the aggregated value for a query key.
type Loader[T any] func(ctx context.Context, key string) (T, error)

// Store holds the last aggregation result per query key and re-runs the
// pipeline only when the key changes or a confirmation invalidates it —
// never on read. At most one aggregation is current per key: a newer
// Refresh supersedes an outstanding one by logical submission order, and the
// superseded result is discarded when it arrives.
type Store[T any] struct {
	loader Loader[T]
	logger *slog.Logger

	mu    sync.Mutex
	gen   map[string]uint64
	snaps map[string]*Snapshot[T]
}

// New creates a store over the given loader.
func New[T any](loader Loader[T], logger *slog.Logger) *Store[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store[T]{
		loader: loader,
		logger: logger,
		gen:    make(map[string]uint64),
		snaps:  make(map[string]*Snapshot[T]),
	}
}

// Get returns the current snapshot for key. Reading never triggers a fetch;
// an unknown key yields a zero snapshot.
func (s *Store[T]) Get(key string) Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.snaps[key]; ok {
		return *snap
	}
	return Snapshot[T]{}
}

// Refresh runs a new aggregation for key, superseding any outstanding one.
// The previous items stay visible (with Loading set) until the new result
// lands, so the UI never flashes empty on re-aggregation.
func (s *Store[T]) Refresh(ctx context.Context, key string) {
	s.mu.Lock()
	s.gen[key]++
	gen := s.gen[key]
	prev, ok := s.snaps[key]
	if ok {
		s.snaps[key] = &Snapshot[T]{Items: prev.Items, Loading: true}
	} else {
		s.snaps[key] = &Snapshot[T]{Loading: true}
	}
	s.mu.Unlock()

	items, err := s.loader(ctx, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[key] != gen {
		s.logger.Debug("discarding superseded aggregation", "key", key, "generation", gen)
		return
	}
	s.snaps[key] = &Snapshot[T]{Items: items, Err: err}
}

// Invalidate re-runs the aggregation for key in the background. Used after a
// confirmed transaction may have changed the underlying records.
func (s *Store[T]) Invalidate(key string) {
	go s.Refresh(context.Background(), key)
}

// InvalidateAll re-runs the aggregation for every key the store has seen.
func (s *Store[T]) InvalidateAll() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.snaps))
	for key := range s.snaps {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.Invalidate(key)
	}
}
