package nix

import "context"

// ClientInterface is the narrow surface the rest of NSE uses to talk to
// the external nix tool. Keeping it this small isolates the stderr
// matching logic so a change in the tool's message format stays contained
// in this package. Failures carry an ErrorKind via *ToolError.
type ClientInterface interface {
	// InstallPackage builds a package into the store and returns the
	// primary output path.
	InstallPackage(ctx context.Context, storeRoot, name string) (string, error)

	// RemovePackage deletes a package's paths from the store. Fails with
	// KindStillAlive while another installed package references them.
	RemovePackage(ctx context.Context, storeRoot, name string) error

	// GetClosure returns the deduplicated, sorted set of store paths in the
	// package's transitive closure, the package's own path included. Fails
	// with KindPackageNotInstalled when any closure path is no longer valid.
	GetClosure(ctx context.Context, storeRoot, name string) ([]string, error)

	// GetClosureSize returns the aggregate size in bytes of the package's
	// closure, with the same validity rule as GetClosure.
	GetClosureSize(ctx context.Context, storeRoot, name string) (int64, error)
}
