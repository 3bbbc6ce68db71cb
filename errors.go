// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple error checking with [errors.Is].
// For detailed error information, use [errors.As] with the typed errors below.
var (
	// ErrInvalidArgument indicates a required argument was empty or malformed,
	// such as a relative path given to an absolute-path entry point.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDeleted indicates an operation was attempted through a tombstoned item.
	// It means the caller kept a stale *Item around.
	ErrDeleted = errors.New("item is deleted")
	// ErrIllegalPath indicates a path segment is malformed or collides with a leaf value.
	ErrIllegalPath = errors.New("illegal path")
	// ErrNotFound indicates no live item exists at a path.
	ErrNotFound = errors.New("item not found")
	// ErrNotObject indicates a document merge was attempted on a non-object value.
	ErrNotObject = errors.New("value is not an object")
	// ErrMarshal indicates a marshaling or unmarshaling operation failed.
	ErrMarshal = errors.New("marshal error")
	// ErrUnsupportedOp indicates a JSON Patch operation that has no flat patch equivalent.
	ErrUnsupportedOp = errors.New("unsupported patch operation")
	// ErrInvalidTag indicates an inv struct tag contains an invalid directive or value.
	ErrInvalidTag = errors.New("invalid struct tag")
)

// IllegalPathReason tells why a path was rejected.
type IllegalPathReason int

const (
	// IllegalSegment means a segment contains characters outside [a-z0-9._-],
	// is empty, or starts with a non-alphanumeric character.
	IllegalSegment IllegalPathReason = iota
	// ValueCollision means the parent's own object value already defines the
	// segment, so it cannot also be a subtree.
	ValueCollision
)

func (r IllegalPathReason) String() string {
	switch r {
	case IllegalSegment:
		return "illegal segment"
	case ValueCollision:
		return "collides with value"
	default:
		return fmt.Sprintf("IllegalPathReason(%d)", r)
	}
}

// IllegalPathError is returned when a path cannot be resolved to an item.
type IllegalPathError struct {
	// Path is the path as given by the caller.
	Path string
	// Segment is the offending segment.
	Segment string
	// Reason tells whether the segment was malformed or collided with a value.
	Reason IllegalPathReason
}

func (e *IllegalPathError) Error() string {
	return fmt.Sprintf("illegal path %q: segment %q: %s", e.Path, e.Segment, e.Reason)
}

func (e *IllegalPathError) Is(target error) bool {
	return target == ErrIllegalPath
}

// MarshalError is returned when decoding a patch or encoding a document fails.
type MarshalError struct {
	// Err is the underlying error returned by a marshaling function.
	Err error
	// DocIndex tells which patch document the error occurred in.
	// It is -1 when encoding the output document.
	DocIndex int
}

func (e *MarshalError) Error() string {
	if e.DocIndex < 0 {
		return fmt.Sprintf("cannot marshal document: %v", e.Err)
	}
	return fmt.Sprintf("cannot unmarshal patch at position %d: %v", e.DocIndex, e.Err)
}

func (e *MarshalError) Unwrap() error {
	return e.Err
}

func (e *MarshalError) Is(target error) bool {
	return target == ErrMarshal
}

// PatchError lists the entries of a patch that were skipped.
// It is a warning: the rest of the patch was still applied.
type PatchError struct {
	Skipped []SkippedEntry
}

func (e *PatchError) Error() string {
	paths := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		paths[i] = s.Path
	}
	return fmt.Sprintf("skipped %d illegal path(s): %s", len(paths), strings.Join(paths, ", "))
}

func (e *PatchError) Is(target error) bool {
	return target == ErrIllegalPath
}

// Unwrap returns the individual errors of the skipped entries.
func (e *PatchError) Unwrap() []error {
	errs := make([]error, len(e.Skipped))
	for i, s := range e.Skipped {
		errs[i] = s.Err
	}
	return errs
}
