// Package repo holds a small generic repository over Neo4j nodes.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entity has the requested ID.
var ErrNotFound = errors.New("repo: not found")

// Repository reads and appends entities of one kind.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
}

// ListOpts pages and orders List.
type ListOpts struct {
	Offset  int
	Limit   int    // <= 0 means 100
	OrderBy string // property name; empty keeps storage order
	Desc    bool
}
