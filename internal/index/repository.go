// Package index provides the relational index of stores and packages that
// mirrors the physical store tree on disk, plus the users and API tokens
// of the service. Identity assignment happens here and nowhere else.
package index

import "context"

// Filter selects records whose columns equal the given values. An empty
// filter matches everything.
type Filter map[string]any

// StoreRecord is the persisted shape of a store. A record exists exactly
// when the store's root directory was provisioned; the two are kept in
// sync by the service layer, not transactionally.
type StoreRecord struct {
	ID      int64
	Name    string
	OwnerID int64
}

// PackageRecord is the persisted shape of a package. It implies the
// package was materialized into its store at some point, not that its
// paths are still present.
type PackageRecord struct {
	ID      int64
	Name    string
	StoreID int64
}

// UserRecord is a registered principal.
type UserRecord struct {
	ID       int64
	Username string
}

// Repo is the minimal filter-based persistence surface consumed by the
// service layer.
type Repo[T any] interface {
	// Insert persists a record and returns its assigned id.
	Insert(ctx context.Context, record T) (int64, error)

	// SelectAll returns every record matching the filter, ordered by id.
	SelectAll(ctx context.Context, filter Filter) ([]T, error)

	// SelectOne returns the first record matching the filter, or nil
	// without error when none does.
	SelectOne(ctx context.Context, filter Filter) (*T, error)

	// Delete removes every record matching the filter.
	Delete(ctx context.Context, filter Filter) error
}
