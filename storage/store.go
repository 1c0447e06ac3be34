// Package storage is the object store facade the whole pipeline writes
// through: a flat key/blob contract with prefix listing and cursor-based
// pagination, backed by MinIO in production and by an in-memory map in tests.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("object not found")

const listPageSize = 1000

// ListPage is one page of a prefix listing. NextCursor is only meaningful
// when HasMore is set.
type ListPage struct {
	Keys       []string
	NextCursor string
	HasMore    bool
}

type ObjectStore interface {
	// Put writes data at key. Writes are atomic and immediately visible to a
	// subsequent Get of the same key; overwriting an existing key is allowed.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the object at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns up to limit keys under prefix, lexically ordered,
	// starting strictly after cursor.
	List(ctx context.Context, prefix string, limit int, cursor string) (*ListPage, error)
}

// ListAll drains every page under prefix before returning. Grouping logic
// must never act on a partial listing (it would undercount a session's
// chunks), so this is the only listing entry point the services use.
func ListAll(ctx context.Context, store ObjectStore, prefix string) ([]string, error) {
	var keys []string
	cursor := ""
	for {
		page, err := store.List(ctx, prefix, listPageSize, cursor)
		if err != nil {
			return nil, err
		}
		keys = append(keys, page.Keys...)
		if !page.HasMore {
			return keys, nil
		}
		cursor = page.NextCursor
	}
}
