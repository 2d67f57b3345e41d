package cache

import (
	"context"
	"fmt"
	"maps"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Backend persists a whole name -> remote id mapping.
type Backend interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, entries map[string]int) error
}

// Outcome tells how FindOrCreate resolved a name.
type Outcome int

const (
	OutcomeCached Outcome = iota
	OutcomeFound
	OutcomeCreated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCached:
		return "cached"
	case OutcomeFound:
		return "found"
	case OutcomeCreated:
		return "created"
	default:
		return "unknown"
	}
}

// LookupFunc searches the remote system for an entity by exact name.
type LookupFunc func(ctx context.Context, name string) (id int, found bool, err error)

// CreateFunc creates the entity remotely and returns its id.
type CreateFunc func(ctx context.Context) (int, error)

// Store maps display names to remote ids for one entity kind. It is loaded
// once and every new mapping is written through to the backend immediately.
type Store struct {
	kind    string
	backend Backend

	mu      sync.Mutex
	entries map[string]int
}

func Open(ctx context.Context, kind string, backend Backend) (*Store, error) {
	entries, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s cache: %w", kind, err)
	}
	if entries == nil {
		entries = make(map[string]int)
	}

	log.Infof("📒 Loaded %d cached %s ids", len(entries), kind)
	return &Store{
		kind:    kind,
		backend: backend,
		entries: entries,
	}, nil
}

func (s *Store) Get(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[name]
	return id, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of all mappings.
func (s *Store) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.entries)
}

// Put records a mapping and persists the whole cache.
func (s *Store) Put(ctx context.Context, name string, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, name, id)
}

// Forget drops every name mapped to one of ids and persists the cache if
// anything changed. It returns how many names were dropped.
func (s *Store) Forget(ctx context.Context, ids []int) (int, error) {
	gone := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.entries)
	maps.DeleteFunc(s.entries, func(_ string, id int) bool {
		_, ok := gone[id]
		return ok
	})
	dropped := before - len(s.entries)
	if dropped == 0 {
		return 0, nil
	}

	if err := s.backend.Save(ctx, s.entries); err != nil {
		return 0, fmt.Errorf("failed to persist %s cache: %w", s.kind, err)
	}
	return dropped, nil
}

func (s *Store) put(ctx context.Context, name string, id int) error {
	s.entries[name] = id
	if err := s.backend.Save(ctx, s.entries); err != nil {
		return fmt.Errorf("failed to persist %s cache entry %q: %w", s.kind, name, err)
	}
	return nil
}

// FindOrCreate resolves name from the cache, then from the remote listing,
// and only then creates it. The store lock is held for the whole call, so
// one name is never created twice by the same process.
func (s *Store) FindOrCreate(ctx context.Context, name string, lookup LookupFunc, create CreateFunc) (int, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		return id, OutcomeCached, nil
	}

	id, found, err := lookup(ctx, name)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to look up %s %q: %w", s.kind, name, err)
	}
	outcome := OutcomeFound

	if !found {
		id, err = create(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to create %s %q: %w", s.kind, name, err)
		}
		outcome = OutcomeCreated
	}

	if err := s.put(ctx, name, id); err != nil {
		return 0, 0, err
	}
	return id, outcome, nil
}
