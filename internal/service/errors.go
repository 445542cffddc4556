package service

import (
	"errors"
	"fmt"

	"github.com/lukasberz/nse/internal/nix"
)

// Kind discriminates the domain failures the service layer reports.
// Each kind carries its own user-facing message; two different conditions
// never share one.
type Kind int

const (
	// KindAlreadyExists — the store's root directory is already present.
	KindAlreadyExists Kind = iota + 1
	// KindNotFound — no persistence record for the named store or package.
	KindNotFound
	// KindNotFoundLocally — the record existed (or was never consulted)
	// but the backing directory is absent on disk.
	KindNotFoundLocally
	// KindAlreadyAdded — the package is already indexed in the store.
	KindAlreadyAdded
	// KindPackageRejected — the nix tool refused to build the package
	// (insecure, broken, unfree, unavailable, or unknown attribute).
	KindPackageRejected
	// KindNotInstalled — a closure query hit paths no longer valid.
	KindNotInstalled
	// KindConflict — deletion blocked because another package still
	// references the paths.
	KindConflict
	// KindToolFailure — unclassified failure of the external tool.
	KindToolFailure
	// KindInvalidName — the store or package name cannot be used safely.
	KindInvalidName
)

// Error is a typed domain failure, distinct from the raw subprocess or
// filesystem error it originated from.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the domain kind from an error produced by this package.
// The second return is false for errors from elsewhere, including
// persistence failures, which pass through this layer unclassified.
func KindOf(err error) (Kind, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}
	return 0, false
}

// packageError translates a classified nix failure into a domain error
// naming the offending package.
func packageError(pkgName string, err error) error {
	kind, ok := nix.KindOf(err)
	if !ok {
		return err
	}

	switch kind {
	case nix.KindInsecurePackage:
		return newError(KindPackageRejected, err, "package %s is marked as insecure", pkgName)
	case nix.KindBrokenPackage:
		return newError(KindPackageRejected, err, "package %s is marked as broken", pkgName)
	case nix.KindNotAvailableOnHostPlatform:
		return newError(KindPackageRejected, err, "package %s is not available on your host platform", pkgName)
	case nix.KindAttributeNotProvided:
		return newError(KindPackageRejected, err, "the registry does not provide attribute %s", pkgName)
	case nix.KindUnfreeLicence:
		return newError(KindPackageRejected, err, "package %s has an unfree license", pkgName)
	case nix.KindStillAlive:
		return newError(KindConflict, err, "cannot delete package %s since it is used by another one", pkgName)
	case nix.KindPackageNotInstalled:
		return newError(KindNotInstalled, err, "package %s is not installed", pkgName)
	default:
		return newError(KindToolFailure, err, "operation on package %s failed: %v", pkgName, err)
	}
}
