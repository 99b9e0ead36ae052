// Package cache provides the metadata object cache. The metadata subsystem
// caches every key of an object as one entry per (group, object id), and
// invalidates the entry on any write to that object.
package cache

import (
	"context"
)

// Cache stores all metadata of one object under (group, id). Groups scope
// entries per site and object type, e.g. "wp_2_term_meta".
type Cache interface {
	// Get returns the cached metadata and whether the entry was present.
	Get(ctx context.Context, group string, id int64) (map[string][]string, bool, error)

	// Set replaces the entry for (group, id).
	Set(ctx context.Context, group string, id int64, meta map[string][]string) error

	// Delete removes the entries for the given ids.
	Delete(ctx context.Context, group string, ids ...int64) error

	// Flush removes every entry of group.
	Flush(ctx context.Context, group string) error

	// Close releases the cache connection.
	Close() error
}

// Nop is a Cache that stores nothing.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(context.Context, string, int64) (map[string][]string, bool, error) {
	return nil, false, nil
}

func (Nop) Set(context.Context, string, int64, map[string][]string) error { return nil }

func (Nop) Delete(context.Context, string, ...int64) error { return nil }

func (Nop) Flush(context.Context, string) error { return nil }

func (Nop) Close() error { return nil }
