// Package storefs manages the on-disk root directories backing per-owner
// package stores and lists the content-addressed paths materialized
// inside them.
package storefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrRootExists is returned when a store root to be created is already present.
var ErrRootExists = errors.New("store root already exists")

// ErrRootMissing is returned when a store root expected on disk is absent.
var ErrRootMissing = errors.New("store root missing")

const (
	// innerStoreDir is where the nix tool materializes paths inside a root.
	innerStoreDir = "nix/store"

	// linksEntry is nix's deduplication bookkeeping directory, not a store path.
	linksEntry = ".links"

	// pathPrefix is the canonical prefix store paths are reported under.
	pathPrefix = "/nix/store"
)

// CreateRoot creates the root directory for a store, including missing
// parents. Returns ErrRootExists if the leaf directory is already present;
// this is the signal used to reject duplicate store names.
func CreateRoot(root string) error {
	if err := os.MkdirAll(filepath.Dir(root), 0755); err != nil {
		return fmt.Errorf("create store parents: %w", err)
	}
	if err := os.Mkdir(root, 0755); err != nil {
		if os.IsExist(err) {
			return ErrRootExists
		}
		return fmt.Errorf("create store root: %w", err)
	}
	return nil
}

// RemoveRoot recursively deletes a store root. Content-addressed stores
// mark materialized paths immutable, so a permission error is retried
// once after restoring the permission it needs: read on the directory
// being listed, write on the parent of the entry being unlinked.
// Returns ErrRootMissing if the root does not exist.
func RemoveRoot(root string) error {
	if _, err := os.Lstat(root); err != nil {
		if os.IsNotExist(err) {
			return ErrRootMissing
		}
		return fmt.Errorf("stat store root: %w", err)
	}
	if err := removeTree(root); err != nil {
		return fmt.Errorf("remove store root: %w", err)
	}
	return nil
}

// removeTree deletes path and everything under it, tolerating read-only
// entries left behind by the nix tool.
func removeTree(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			// Listing needs read permission on the directory itself.
			if err = os.Chmod(path, 0755); err != nil {
				return fmt.Errorf("chmod %s: %w", path, err)
			}
			if entries, err = os.ReadDir(path); err != nil {
				return err
			}
		}
		for _, entry := range entries {
			if err := removeTree(filepath.Join(path, entry.Name())); err != nil {
				return err
			}
		}
	}

	if err := os.Remove(path); err != nil {
		if err := makeParentWritable(path); err != nil {
			return err
		}
		return os.Remove(path)
	}
	return nil
}

// makeParentWritable chmods the parent directory of path writable. Entries
// cannot be unlinked while their containing directory is read-only.
func makeParentWritable(path string) error {
	if err := os.Chmod(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Dir(path), err)
	}
	return nil
}

// ListPaths returns the canonical store paths materialized under a root,
// sorted and with nix's bookkeeping entry excluded. A root without an
// inner store directory is a freshly created, never-used store and yields
// an empty set. Returns ErrRootMissing if the root itself does not exist.
func ListPaths(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRootMissing
		}
		return nil, fmt.Errorf("stat store root: %w", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, innerStoreDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read store contents: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() == linksEntry {
			continue
		}
		paths = append(paths, pathPrefix+"/"+entry.Name())
	}
	sort.Strings(paths)
	return paths, nil
}
