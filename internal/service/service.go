// Package service implements the store orchestrator: the coordinating
// layer that sequences filesystem operations, nix tool invocations, and
// persistence-index writes. It exclusively owns the mapping from
// (owner, store name) pairs to filesystem roots.
//
// The filesystem and the index are two independently-consistent resources
// with no two-phase coordination: every state-changing method performs its
// filesystem side effect and its persistence side effect sequentially and
// does not roll back the first when the second fails. See the per-method
// comments for the resulting edge cases.
package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lukasberz/nse/internal/diff"
	"github.com/lukasberz/nse/internal/index"
	"github.com/lukasberz/nse/internal/models"
	"github.com/lukasberz/nse/internal/nix"
	"github.com/lukasberz/nse/internal/storefs"
)

// Service coordinates stores, packages, and their physical backing.
type Service struct {
	storesBase string
	stores     index.Repo[index.StoreRecord]
	packages   index.Repo[index.PackageRecord]
	nix        nix.ClientInterface
	logger     *slog.Logger
}

// New creates a service. storesBase is the directory under which per-owner
// store roots live.
func New(storesBase string, stores index.Repo[index.StoreRecord], packages index.Repo[index.PackageRecord], client nix.ClientInterface, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storesBase: storesBase,
		stores:     stores,
		packages:   packages,
		nix:        client,
		logger:     logger,
	}
}

// storeRoot resolves the filesystem root backing a store:
// <storesBase>/<ownerID>/<name>.
func (s *Service) storeRoot(ownerID int64, name string) string {
	return filepath.Join(s.storesBase, strconv.FormatInt(ownerID, 10), name)
}

// checkName rejects names that would escape the stores tree when joined
// into a filesystem path. what is "store" or "package" for the message.
func checkName(what, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return newError(KindInvalidName, nil, "invalid %s name %q", what, name)
	}
	return nil
}

// AddStore provisions a store: directory first, index record second. A
// pre-existing directory rejects the name as a duplicate. If the record
// insert fails after the directory was created, the directory is left
// behind; a retry then reports KindAlreadyExists until it is removed.
func (s *Service) AddStore(ctx context.Context, name string, ownerID int64) (*models.Store, error) {
	if err := checkName("store", name); err != nil {
		return nil, err
	}
	root := s.storeRoot(ownerID, name)

	if err := storefs.CreateRoot(root); err != nil {
		if errors.Is(err, storefs.ErrRootExists) {
			return nil, newError(KindAlreadyExists, err, "store %s already exists", name)
		}
		return nil, err
	}

	id, err := s.stores.Insert(ctx, index.StoreRecord{Name: name, OwnerID: ownerID})
	if err != nil {
		return nil, err
	}

	s.logger.Info("store created", "store", name, "owner", ownerID)
	return &models.Store{ID: id, Name: name, OwnerID: ownerID}, nil
}

// GetStore looks up a store by name, scoped to its owner.
func (s *Service) GetStore(ctx context.Context, name string, ownerID int64) (*models.Store, error) {
	record, err := s.stores.SelectOne(ctx, index.Filter{"owner_id": ownerID, "name": name})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, newError(KindNotFound, nil, "store %s was not found", name)
	}
	return &models.Store{ID: record.ID, Name: record.Name, OwnerID: record.OwnerID}, nil
}

// GetStores returns every store owned by the given principal.
func (s *Service) GetStores(ctx context.Context, ownerID int64) ([]models.Store, error) {
	records, err := s.stores.SelectAll(ctx, index.Filter{"owner_id": ownerID})
	if err != nil {
		return nil, err
	}

	stores := make([]models.Store, 0, len(records))
	for _, record := range records {
		stores = append(stores, models.Store{ID: record.ID, Name: record.Name, OwnerID: record.OwnerID})
	}
	return stores, nil
}

// DeleteStore removes a store: index record first, directory tree second.
// A directory already missing at that point surfaces as KindNotFoundLocally,
// distinct from the record-level KindNotFound.
func (s *Service) DeleteStore(ctx context.Context, name string, ownerID int64) (*models.Store, error) {
	store, err := s.GetStore(ctx, name, ownerID)
	if err != nil {
		return nil, err
	}

	if err := s.stores.Delete(ctx, index.Filter{"owner_id": ownerID, "name": name}); err != nil {
		return nil, err
	}

	if err := storefs.RemoveRoot(s.storeRoot(ownerID, name)); err != nil {
		if errors.Is(err, storefs.ErrRootMissing) {
			return nil, newError(KindNotFoundLocally, err, "store %s was not found locally", name)
		}
		return nil, err
	}

	s.logger.Info("store deleted", "store", name, "owner", ownerID)
	return store, nil
}

// AddPackage installs a package into a store and indexes it. The returned
// Package carries the freshly computed closure.
func (s *Service) AddPackage(ctx context.Context, storeName, pkgName string, ownerID int64) (*models.Package, error) {
	store, err := s.GetStore(ctx, storeName, ownerID)
	if err != nil {
		return nil, err
	}

	if err := checkName("package", pkgName); err != nil {
		return nil, err
	}

	existing, err := s.packages.SelectOne(ctx, index.Filter{"name": pkgName, "store_id": store.ID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, newError(KindAlreadyAdded, nil, "package %s is already added to the store %s", pkgName, storeName)
	}

	root := s.storeRoot(ownerID, storeName)
	if _, err := s.nix.InstallPackage(ctx, root, pkgName); err != nil {
		return nil, packageError(pkgName, err)
	}

	id, err := s.packages.Insert(ctx, index.PackageRecord{Name: pkgName, StoreID: store.ID})
	if err != nil {
		return nil, err
	}

	closure, err := s.nix.GetClosure(ctx, root, pkgName)
	if err != nil {
		return nil, packageError(pkgName, err)
	}

	s.logger.Info("package added", "store", storeName, "package", pkgName, "owner", ownerID)
	return &models.Package{
		ID:      id,
		Name:    pkgName,
		StoreID: store.ID,
		Closure: models.Closure{Paths: closure},
	}, nil
}

// DeletePackage removes a package. The index record is deleted before the
// physical paths: when the physical delete is blocked by a live reference
// (KindConflict), the record stays gone. Index cleanliness is favored over
// strict transactionality here.
func (s *Service) DeletePackage(ctx context.Context, storeName, pkgName string, ownerID int64) (*models.Package, error) {
	store, err := s.GetStore(ctx, storeName, ownerID)
	if err != nil {
		return nil, err
	}

	filter := index.Filter{"name": pkgName, "store_id": store.ID}
	record, err := s.packages.SelectOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, newError(KindNotFound, nil, "package %s was not found", pkgName)
	}

	if err := s.packages.Delete(ctx, filter); err != nil {
		return nil, err
	}

	if err := s.nix.RemovePackage(ctx, s.storeRoot(ownerID, storeName), pkgName); err != nil {
		return nil, packageError(pkgName, err)
	}

	s.logger.Info("package deleted", "store", storeName, "package", pkgName, "owner", ownerID)
	return &models.Package{ID: record.ID, Name: record.Name, StoreID: record.StoreID}, nil
}

// GetPathsDifference diffs the materialized paths of two stores. A store
// whose root is missing on disk is reported as KindNotFoundLocally, a
// different condition from the index-level existence check.
func (s *Service) GetPathsDifference(ctx context.Context, store1Name, store2Name string, ownerID int64) (*models.PathsDifference, error) {
	for _, name := range []string{store1Name, store2Name} {
		if err := checkName("store", name); err != nil {
			return nil, err
		}
	}

	paths1, err := storefs.ListPaths(s.storeRoot(ownerID, store1Name))
	if err != nil {
		if errors.Is(err, storefs.ErrRootMissing) {
			return nil, newError(KindNotFoundLocally, err, "store %s does not exist", store1Name)
		}
		return nil, err
	}

	paths2, err := storefs.ListPaths(s.storeRoot(ownerID, store2Name))
	if err != nil {
		if errors.Is(err, storefs.ErrRootMissing) {
			return nil, newError(KindNotFoundLocally, err, "store %s does not exist", store2Name)
		}
		return nil, err
	}

	only1, only2 := diff.PathsDifference(paths1, paths2)
	return &models.PathsDifference{OnlyInStore1: only1, OnlyInStore2: only2}, nil
}

// GetClosuresDifference diffs the closures of two packages, possibly from
// different stores of the same owner.
func (s *Service) GetClosuresDifference(ctx context.Context, store1Name, pkg1Name, store2Name, pkg2Name string, ownerID int64) (*models.ClosuresDifference, error) {
	for _, name := range []string{store1Name, store2Name} {
		if err := checkName("store", name); err != nil {
			return nil, err
		}
	}

	closure1, err := s.nix.GetClosure(ctx, s.storeRoot(ownerID, store1Name), pkg1Name)
	if err != nil {
		return nil, packageError(pkg1Name, err)
	}

	closure2, err := s.nix.GetClosure(ctx, s.storeRoot(ownerID, store2Name), pkg2Name)
	if err != nil {
		return nil, packageError(pkg2Name, err)
	}

	only1, only2 := diff.ClosuresDifference(closure1, closure2)
	return &models.ClosuresDifference{
		AbsentInPackage1: only2,
		AbsentInPackage2: only1,
	}, nil
}

// GetPackageMeta reports whether a package's paths are still valid and how
// large its closure is. A KindPackageNotInstalled failure from the tool is
// absorbed into PackageMeta{Present: false} — the single place where a
// tool failure becomes a normal result instead of an error.
func (s *Service) GetPackageMeta(ctx context.Context, storeName, pkgName string, ownerID int64) (*models.PackageMeta, error) {
	if err := checkName("store", storeName); err != nil {
		return nil, err
	}

	size, err := s.nix.GetClosureSize(ctx, s.storeRoot(ownerID, storeName), pkgName)
	if err != nil {
		if kind, ok := nix.KindOf(err); ok && kind == nix.KindPackageNotInstalled {
			return &models.PackageMeta{Present: false, ClosureSize: 0}, nil
		}
		return nil, packageError(pkgName, err)
	}

	return &models.PackageMeta{Present: true, ClosureSize: size}, nil
}
