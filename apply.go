// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// Patch is a flat set of changes: absolute paths mapped to new values.
// A null value clears the item at that path to an empty object.
type Patch map[string]Value

// SortedPaths returns the paths of p in the order they are applied:
// ascending under an ASCII case-insensitive comparison, with exact ties broken
// by an ordinal comparison so the order never depends on map iteration.
func SortedPaths(p Patch) []string {
	paths := slices.Collect(maps.Keys(p))
	slices.SortFunc(paths, comparePaths)
	return paths
}

func comparePaths(a, b string) int {
	if c := compareFold(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// compareFold compares a and b byte by byte with ASCII upper case folded to lower case.
func compareFold(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ca, cb := lowerASCII(a[i]), lowerASCII(b[i])
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// SkippedEntry is a patch entry that could not be applied.
type SkippedEntry struct {
	// Path is the patch key.
	Path string
	// Err tells why; it matches [ErrIllegalPath] or [ErrInvalidArgument].
	Err error
}

// Report describes the outcome of applying a patch.
type Report struct {
	// Applied lists the paths that were written, in application order.
	Applied []string
	// Skipped lists the entries whose path could not be resolved.
	Skipped []SkippedEntry
}

// Err returns a [*PatchError] listing the skipped entries, or nil if every
// entry was applied. Skipped entries are warnings, not failures of the patch.
func (r Report) Err() error {
	if len(r.Skipped) == 0 {
		return nil
	}
	return &PatchError{Skipped: slices.Clone(r.Skipped)}
}

// Merge appends the entries of other to r.
func (r *Report) Merge(other Report) {
	r.Applied = append(r.Applied, other.Applied...)
	r.Skipped = append(r.Skipped, other.Skipped...)
}

// ApplyOptions configures an [Applier].
//
// The zero value is valid and logs skipped entries to [slog.Default].
type ApplyOptions struct {
	// Logger receives a warning for every skipped entry.
	Logger *slog.Logger

	// NullRemovesSubitems makes a null entry also tombstone every live item
	// below its path, so the path reads back as {}. By default null only
	// clears the item's own value and keeps its children.
	NullRemovesSubitems bool
}

// Applier applies flat patches to inventories.
//
// An Applier can be reused for many patches and inventories. It is not safe
// for concurrent use on the same inventory.
type Applier struct {
	log        *slog.Logger
	removeNull bool
}

// NewApplier creates an [Applier] with the given options.
func NewApplier(opts ApplyOptions) *Applier {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Applier{log: log, removeNull: opts.NullRemovesSubitems}
}

// Apply applies patch to inv with a default [Applier]. See [Applier.Apply].
func Apply(inv *Inventory, patch Patch) (Report, error) {
	return NewApplier(ApplyOptions{}).Apply(inv, patch)
}

// Apply writes every entry of patch into inv, in [SortedPaths] order.
//
// Each path is resolved with [Inventory.FindOrCreateItem] and its item is
// forcibly given the entry's value. Because an object value evicts children
// named by its keys, a later patch can remove items an earlier one created.
//
// With [ApplyOptions.NullRemovesSubitems], a null entry also tombstones the
// item's descendants.
//
// An entry whose path is malformed or collides with a value is logged,
// recorded in the report and skipped; the rest of the patch is still applied.
// Any other error means the tree is being misused and stops the patch.
func (a *Applier) Apply(inv *Inventory, patch Patch) (Report, error) {
	if inv == nil {
		return Report{}, fmt.Errorf("%w: nil inventory", ErrInvalidArgument)
	}

	var report Report
	for _, path := range SortedPaths(patch) {
		item, err := inv.FindOrCreateItem(path)
		if err != nil {
			if !skippable(err) {
				return report, err
			}
			a.log.Warn("unable to set item at illegal path", "path", path, "error", err)
			report.Skipped = append(report.Skipped, SkippedEntry{Path: path, Err: err})
			continue
		}
		value := patch[path]
		if err := item.UpdateValue(value, true); err != nil {
			return report, fmt.Errorf("update %s: %w", path, err)
		}
		if a.removeNull && value.IsNull() {
			if err := item.RemoveAllSubitems(); err != nil {
				return report, fmt.Errorf("clear %s: %w", path, err)
			}
		}
		report.Applied = append(report.Applied, path)
	}
	return report, nil
}

// ApplyAll applies patches in order. It stops at the first hard error.
func (a *Applier) ApplyAll(inv *Inventory, patches ...Patch) (Report, error) {
	var report Report
	for i, patch := range patches {
		r, err := a.Apply(inv, patch)
		report.Merge(r)
		if err != nil {
			return report, fmt.Errorf("patch %d: %w", i, err)
		}
	}
	return report, nil
}

// skippable reports whether err only concerns one patch entry. Relative and
// empty keys are malformed input from the patch, not a misuse of the tree.
func skippable(err error) bool {
	return errors.Is(err, ErrIllegalPath) || errors.Is(err, ErrInvalidArgument)
}
