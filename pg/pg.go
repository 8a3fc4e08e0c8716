// Package pg is the boundary to the catalog store. The store is a pgstac
// database reached through its native procedures; everything above this
// package treats it as an RPC target.
package pg

import (
	"context"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
	"github.com/TechTraverse/stac-fastapi-pgstac/cql"
)

// SearchPage is one page of search output: the matching records in store
// order plus the store's raw continuation markers. The marker encodes the
// last-seen sort key tuple; the server wraps it into an opaque token.
type SearchPage struct {
	Features []api.Item
	Next     string
	Prev     string
	Matched  *int64
}

type Store interface {
	Ping(ctx context.Context) error
	Close()

	// Search runs one native search-procedure call. The payload is the
	// lowered search request; output order is the store's, never re-sorted.
	Search(ctx context.Context, req map[string]interface{}) (*SearchPage, error)

	AllCollections(ctx context.Context) ([]api.Collection, error)
	GetCollection(ctx context.Context, id string) (*api.Collection, error)
	CreateCollection(ctx context.Context, c *api.Collection) error
	UpdateCollection(ctx context.Context, c *api.Collection) error
	DeleteCollection(ctx context.Context, id string) error

	GetItem(ctx context.Context, collection string, id string) (*api.Item, error)
	CreateItem(ctx context.Context, item *api.Item) error
	UpdateItem(ctx context.Context, item *api.Item) error
	DeleteItem(ctx context.Context, collection string, id string) error

	// Queryables returns the catalog-defined allowlist of filterable
	// properties for a collection.
	Queryables(ctx context.Context, collection string) (cql.Queryables, error)
}
