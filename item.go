// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"fmt"
	"maps"
	"slices"
)

// Item is one node of an inventory tree.
//
// An item carries its own value (an empty object by default) and live child
// items that refine it. Children removed from the tree are kept as
// tombstones so that addressing the same name again brings the old subtree
// back. The tree owns every item; an item holds no pointer to its parent.
//
// Once an item is tombstoned every method that reads or writes through it
// fails with [ErrDeleted] until it is resurrected.
type Item struct {
	inv        *Inventory
	name       string
	path       string
	value      Value
	children   map[string]*Item
	tombstones map[string]*Item
	deleted    bool
}

func newItem(inv *Inventory, path, name string) *Item {
	return &Item{
		inv:        inv,
		name:       name,
		path:       path,
		value:      EmptyObject(),
		children:   map[string]*Item{},
		tombstones: map[string]*Item{},
	}
}

// Name returns the last segment of the item's path. The root's name is empty.
func (it *Item) Name() string { return it.name }

// Path returns the absolute path of the item. The root's path is empty.
func (it *Item) Path() string { return it.path }

// IsDeleted reports whether the item is currently tombstoned.
func (it *Item) IsDeleted() bool { return it.deleted }

// Value returns a copy of the value assigned to this exact path.
func (it *Item) Value() Value { return it.value.Clone() }

// Children returns the names of the live children in sorted order.
func (it *Item) Children() []string {
	return slices.Sorted(maps.Keys(it.children))
}

// Tombstoned returns the names of the tombstoned children in sorted order.
func (it *Item) Tombstoned() []string {
	return slices.Sorted(maps.Keys(it.tombstones))
}

// Child returns the live child called name.
func (it *Item) Child(name string) (*Item, bool) {
	child, ok := it.children[name]
	return child, ok
}

func (it *Item) checkLive() error {
	if it.deleted {
		return fmt.Errorf("%w: %s", ErrDeleted, it.displayPath())
	}
	return nil
}

func (it *Item) displayPath() string {
	if it.path == "" {
		return Separator
	}
	return it.path
}

// FindItem resolves a path relative to this item, such as "a/b", against
// live children only.
//
// It returns an [*IllegalPathError] if a segment is malformed and
// [ErrNotFound] if a segment names no live child.
func (it *Item) FindItem(path string) (*Item, error) {
	if err := it.checkLive(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty item path", ErrInvalidArgument)
	}
	return it.findItem(path, SplitPath(path))
}

func (it *Item) findItem(path string, segments []string) (*Item, error) {
	segment := segments[0]
	if !IsLegalSegment(segment, false) {
		return nil, &IllegalPathError{Path: path, Segment: segment, Reason: IllegalSegment}
	}
	child, ok := it.children[segment]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, joinPath(it.path, segment))
	}
	if len(segments) > 1 {
		return child.findItem(path, segments[1:])
	}
	return child, nil
}

// FindOrCreateItem resolves a path relative to this item, creating or
// resurrecting items on the way.
//
// For each segment a live child is used if there is one. Otherwise, if this
// item's own object value already holds a field with that name, the path
// collides with a value and an [*IllegalPathError] is returned. Otherwise a
// tombstoned child of that name is resurrected with its old subtree, or a new
// child holding an empty object is created.
//
// A malformed segment stops the walk before anything is created at that level.
func (it *Item) FindOrCreateItem(path string) (*Item, error) {
	if err := it.checkLive(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty item path", ErrInvalidArgument)
	}
	return it.findOrCreateItem(path, SplitPath(path))
}

func (it *Item) findOrCreateItem(path string, segments []string) (*Item, error) {
	segment := segments[0]
	if !IsLegalSegment(segment, false) {
		return nil, &IllegalPathError{Path: path, Segment: segment, Reason: IllegalSegment}
	}

	item, ok := it.children[segment]
	if !ok {
		if _, taken := it.value.Get(segment); taken {
			return nil, &IllegalPathError{Path: path, Segment: segment, Reason: ValueCollision}
		}
		if dead, ok := it.tombstones[segment]; ok {
			delete(it.tombstones, segment)
			dead.deleted = false
			item = dead
		} else {
			item = newItem(it.inv, joinPath(it.path, segment), segment)
		}
		it.children[segment] = item
	}

	if len(segments) > 1 {
		return item.findOrCreateItem(path, segments[1:])
	}
	return item, nil
}

// UpdateValue assigns v to this item.
//
// Null clears the item's own value to an empty object without touching its
// children. Unless force is set, a value [Equal] to the current one is
// ignored. When the new value is an object, every live child named by one of
// its keys is tombstoned along with its subtree: the explicit value wins.
func (it *Item) UpdateValue(v Value, force bool) error {
	if err := it.checkLive(); err != nil {
		return err
	}

	if v.IsNull() {
		it.value = EmptyObject()
		return nil
	}
	if !force && Equal(it.value, v) {
		return nil
	}

	it.value = v.Clone()
	fields, ok := it.value.AsObject()
	if !ok || len(it.children) == 0 {
		return nil
	}
	for _, name := range it.Children() {
		if _, collides := fields[name]; !collides {
			continue
		}
		child := it.children[name]
		if err := child.RemoveAllSubitems(); err != nil {
			return err
		}
		it.onSubitemRemoved(child)
	}
	return nil
}

// RemoveAllSubitems tombstones every live descendant of this item.
func (it *Item) RemoveAllSubitems() error {
	if err := it.checkLive(); err != nil {
		return err
	}
	for _, name := range it.Children() {
		child := it.children[name]
		if err := child.RemoveAllSubitems(); err != nil {
			return err
		}
		it.onSubitemRemoved(child)
	}
	return nil
}

// onSubitemRemoved moves child from the live set to the tombstones. Its value
// is reset but its own tombstones are kept for a later resurrection.
func (it *Item) onSubitemRemoved(child *Item) {
	child.value = EmptyObject()
	child.deleted = true
	delete(it.children, child.name)
	it.tombstones[child.name] = child
	if it.inv != nil {
		it.inv.flagAsDirty(child)
	}
}

// ConstructDocument builds the document rooted at this item: its own value
// with every live child merged in. It never modifies the tree.
//
// An item whose value is not an object yields an empty object.
func (it *Item) ConstructDocument() (Value, error) {
	if err := it.checkLive(); err != nil {
		return Value{}, err
	}
	if !IsObject(it.value) {
		return EmptyObject(), nil
	}
	if len(it.children) == 0 {
		return it.value.Clone(), nil
	}

	doc := make(map[string]Value, len(it.children)+it.value.Len())
	if err := it.MergeWithDocument(doc); err != nil {
		return Value{}, err
	}
	return Object(doc), nil
}

// MergeWithDocument writes this item's fields and its live children into doc.
//
// Fields of the item's own value overwrite those in doc. A child whose value
// is not an object overwrites its key; an object child is merged into the
// object already under its key, if there is one, and replaces it otherwise.
// The item's value must be an object.
func (it *Item) MergeWithDocument(doc map[string]Value) error {
	if err := it.checkLive(); err != nil {
		return err
	}
	fields, ok := it.value.AsObject()
	if !ok {
		return fmt.Errorf("%w: cannot merge %s value at %s", ErrNotObject, it.value.Kind(), it.displayPath())
	}

	for k, field := range fields {
		doc[k] = field.Clone()
	}

	for _, name := range it.Children() {
		child := it.children[name]
		switch {
		case !IsObject(child.value):
			doc[name] = child.value.Clone()
		case IsObject(doc[name]):
			current, _ := doc[name].AsObject()
			sub := maps.Clone(current)
			if err := child.MergeWithDocument(sub); err != nil {
				return err
			}
			doc[name] = Object(sub)
		case len(child.children) == 0:
			doc[name] = child.value.Clone()
		default:
			sub := make(map[string]Value, len(child.children)+child.value.Len())
			if err := child.MergeWithDocument(sub); err != nil {
				return err
			}
			doc[name] = Object(sub)
		}
	}
	return nil
}

func joinPath(parent, name string) string {
	return parent + Separator + name
}
