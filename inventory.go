// SPDX-License-Identifier: Apache-2.0

// Package inventory provides a path-addressed overlay store for JSON documents.
//
// An [Inventory] is a sparse tree of items addressed by slash-separated paths
// such as "/player/currency/gold". Each item holds its own value, and items
// below it refine that value. Flat patches mapping paths to values are applied
// in a deterministic order, and [Item.ConstructDocument] folds the tree back
// into one nested document: the most specific explicit value wins, and
// subtrees addressed separately merge into the objects above them.
//
// Removed subtrees are kept as tombstones. Addressing a removed name again
// resurrects the old subtree rather than building a new one.
//
// An Inventory is not safe for concurrent use.
package inventory

import (
	"fmt"
	"log/slog"
	"slices"
)

// Options configures an [Inventory].
//
// The zero value is valid: evictions are not reported and nothing is logged.
type Options struct {
	// OnEvict is called for every item that is tombstoned, after it has been
	// moved out of its parent's live children. It is not called when an item
	// is merely given a new value.
	OnEvict func(item *Item)

	// Logger receives debug records for evictions. If nil, nothing is logged.
	Logger *slog.Logger
}

// Inventory owns the root [Item] of a tree.
type Inventory struct {
	opts Options
	root *Item
}

// New creates an empty [Inventory].
func New(opts Options) *Inventory {
	inv := &Inventory{opts: opts}
	inv.root = newItem(inv, "", "")
	return inv
}

// Root returns the root item. Its path and name are empty, and it is never deleted.
func (inv *Inventory) Root() *Item {
	return inv.root
}

// FindOrCreateItem resolves an absolute path, creating items as needed.
// "/" returns the root. See [Item.FindOrCreateItem].
//
// An empty or relative path is [ErrInvalidArgument].
func (inv *Inventory) FindOrCreateItem(path string) (*Item, error) {
	rel, err := relativePath(path)
	if err != nil {
		return nil, err
	}
	if rel == "" {
		return inv.root, nil
	}
	item, err := inv.root.FindOrCreateItem(rel)
	if err != nil {
		return nil, fmt.Errorf("find or create %s: %w", path, err)
	}
	return item, nil
}

// FindItem resolves an absolute path against live items only.
// "/" returns the root. See [Item.FindItem].
func (inv *Inventory) FindItem(path string) (*Item, error) {
	rel, err := relativePath(path)
	if err != nil {
		return nil, err
	}
	if rel == "" {
		return inv.root, nil
	}
	item, err := inv.root.FindItem(rel)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", path, err)
	}
	return item, nil
}

// Document constructs the merged document of the whole inventory.
func (inv *Inventory) Document() (Value, error) {
	return inv.root.ConstructDocument()
}

// Walk calls fn for every live item, parents before children and siblings in
// name order. Returning false from fn skips the item's children.
func (inv *Inventory) Walk(fn func(item *Item) bool) {
	walk(inv.root, fn)
}

func walk(item *Item, fn func(*Item) bool) {
	if !fn(item) {
		return
	}
	for _, name := range item.Children() {
		walk(item.children[name], fn)
	}
}

// Flatten returns the inventory as a flat patch: one entry per live item
// that holds a value of its own or has no live children. Applying the
// result to a new inventory yields the same document.
func (inv *Inventory) Flatten() Patch {
	flat := Patch{}
	inv.Walk(func(item *Item) bool {
		empty := IsObject(item.value) && item.value.Len() == 0
		if empty && (item == inv.root || len(item.children) > 0) {
			return true
		}
		path := item.path
		if path == "" {
			path = Separator
		}
		flat[path] = item.value.Clone()
		return true
	})
	return flat
}

// Paths returns the paths of every live item except the root, in walk order.
func (inv *Inventory) Paths() []string {
	var paths []string
	inv.Walk(func(item *Item) bool {
		if item != inv.root {
			paths = append(paths, item.path)
		}
		return true
	})
	return slices.Clip(paths)
}

func (inv *Inventory) flagAsDirty(item *Item) {
	if inv.opts.Logger != nil {
		inv.opts.Logger.Debug("evicted item", "path", item.path)
	}
	if inv.opts.OnEvict != nil {
		inv.opts.OnEvict(item)
	}
}
