package registry

import (
	"context"
	"fmt"
	"strings"
)

// Store loads and replaces the registry. Writes are whole-registry replaces;
// a single writer per invocation is assumed.
type Store interface {
	Load(ctx context.Context) (*Registry, error)
	Save(ctx context.Context, reg *Registry) error
	Close() error
}

// Open creates a Store for the given backend ("json" or "sqlite").
func Open(backend, path string) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path is required")
	}
	switch strings.ToLower(backend) {
	case "", "json":
		return NewFileStore(path), nil
	case "sqlite", "sqlite3":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported registry backend: %s", backend)
	}
}

// Upsert loads the registry, merges candidates into it and saves it back.
func Upsert(ctx context.Context, store Store, candidates []Candidate, meta RunMeta) (*Registry, error) {
	reg, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	reg.Merge(candidates, meta)
	if err := store.Save(ctx, reg); err != nil {
		return nil, fmt.Errorf("save registry: %w", err)
	}
	return reg, nil
}
