// Package models defines the data structures shared across NSE:
// stores, packages, closures, and the derived difference values.
package models

// Store is an isolated, per-owner root directory backing one instance of
// the nix package tool, indexed by a persistence record.
type Store struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	OwnerID int64  `json:"owner_id"`
}

// Package is a named unit installed into a store. The closure is computed
// from the store's physical contents on demand and never persisted.
type Package struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	StoreID int64   `json:"store_id"`
	Closure Closure `json:"closure"`
}

// Closure is the full transitive set of content-addressed paths a package
// depends on, including the package itself. Paths are sorted so output is
// deterministic regardless of how the set was produced.
type Closure struct {
	Paths []string `json:"paths"`
}

// PackageMeta reports whether a package's paths are still valid in its
// store. Present is false exactly when the paths have been invalidated
// (for example by an external garbage collection), independent of whether
// the package is still indexed.
type PackageMeta struct {
	Present     bool  `json:"present"`
	ClosureSize int64 `json:"closure_size"`
}

// PathsDifference holds the two one-sided differences between the
// materialized paths of two stores.
type PathsDifference struct {
	OnlyInStore1 []string `json:"only_in_store_1"`
	OnlyInStore2 []string `json:"only_in_store_2"`
}

// ClosuresDifference holds the two one-sided differences between the
// closures of two packages.
type ClosuresDifference struct {
	AbsentInPackage1 []string `json:"absent_in_package_1"`
	AbsentInPackage2 []string `json:"absent_in_package_2"`
}

// User is an authenticated principal. Stores are scoped by the owner's id.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
