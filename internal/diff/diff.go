// Package diff implements set algebra over content-addressed path
// collections. Everything here is pure: no I/O, no mutation of inputs.
package diff

import "sort"

// PathsDifference returns the one-sided differences between two path
// collections: paths only in a, then paths only in b. Inputs may contain
// duplicates and arrive in any order; both outputs are sorted and
// duplicate-free, so results are stable under re-ordering of input
// iteration.
func PathsDifference(a, b []string) (onlyA, onlyB []string) {
	setA := toSet(a)
	setB := toSet(b)

	onlyA = make([]string, 0)
	for path := range setA {
		if _, ok := setB[path]; !ok {
			onlyA = append(onlyA, path)
		}
	}

	onlyB = make([]string, 0)
	for path := range setB {
		if _, ok := setA[path]; !ok {
			onlyB = append(onlyB, path)
		}
	}

	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return onlyA, onlyB
}

// ClosuresDifference diffs two package closures. Semantically identical to
// PathsDifference, applied to closures rather than whole-store contents.
func ClosuresDifference(a, b []string) (onlyA, onlyB []string) {
	return PathsDifference(a, b)
}

func toSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		set[path] = struct{}{}
	}
	return set
}
