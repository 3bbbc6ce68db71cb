// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Build applies patches in order to a new inventory and returns its document.
//
// The report collects skipped entries from every patch; see [Report.Err].
func Build(opts Options, applyOpts ApplyOptions, patches ...Patch) (Value, Report, error) {
	inv := New(opts)
	report, err := NewApplier(applyOpts).ApplyAll(inv, patches...)
	if err != nil {
		return Value{}, report, err
	}
	doc, err := inv.Document()
	if err != nil {
		return Value{}, report, err
	}
	return doc, report, nil
}

// BuildMarshal builds a document from byte patches using the provided
// unmarshal and marshal functions.
//
// Each document must decode to a flat map of absolute paths to values. It
// works with encoding/json, github.com/goccy/go-yaml and
// github.com/BurntSushi/toml. Returns an empty byte slice if docs is empty.
//
// Example:
//
//	import "github.com/goccy/go-yaml"
//
//	base := []byte("/player/gold: 100\n/player/name: ada\n")
//	edit := []byte("/player/gold: 150\n")
//	out, report, err := BuildMarshal(Options{}, ApplyOptions{}, yaml.Unmarshal, yaml.Marshal, base, edit)
func BuildMarshal(
	opts Options,
	applyOpts ApplyOptions,
	unmarshal func([]byte, any) error,
	marshal func(any) ([]byte, error),
	docs ...[]byte,
) ([]byte, Report, error) {
	if len(docs) == 0 {
		return []byte{}, Report{}, nil
	}

	patches := make([]Patch, len(docs))
	for i, doc := range docs {
		var raw any
		if err := unmarshal(doc, &raw); err != nil {
			return nil, Report{}, &MarshalError{Err: err, DocIndex: i}
		}
		patch, err := PatchFromAny(raw)
		if err != nil {
			return nil, Report{}, &MarshalError{Err: err, DocIndex: i}
		}
		patches[i] = patch
	}

	doc, report, err := Build(opts, applyOpts, patches...)
	if err != nil {
		return nil, report, err
	}

	out, err := marshal(doc.Any())
	if err != nil {
		return nil, report, &MarshalError{Err: err, DocIndex: -1}
	}
	return out, report, nil
}

// PatchFromAny converts a decoded flat document to a [Patch].
// A nil document is an empty patch.
func PatchFromAny(raw any) (Patch, error) {
	if raw == nil {
		return Patch{}, nil
	}
	v, err := FromAny(raw)
	if err != nil {
		return nil, err
	}
	fields, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("%w: patch must be an object of paths, got %s", ErrInvalidArgument, v.Kind())
	}
	return Patch(fields), nil
}

// FromJSONPatch translates an RFC 6902 patch into a flat [Patch].
//
// "add" and "replace" set the value at their path and "remove" clears it. The
// JSON Pointer is used as the inventory path without unescaping, so pointers
// with escapes end up as illegal paths. The whole document pointer "" maps to
// the root. Later operations on the same path win. Other operations are
// rejected with [ErrUnsupportedOp].
func FromJSONPatch(ops jsonpatch.Patch) (Patch, error) {
	patch := Patch{}
	for i, op := range ops {
		path, err := op.Path()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		if path == "" {
			path = Separator
		}

		switch kind := op.Kind(); kind {
		case "add", "replace":
			raw, err := op.ValueInterface()
			if err != nil {
				return nil, fmt.Errorf("operation %d: %w", i, err)
			}
			v, err := FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("operation %d: %w", i, err)
			}
			patch[path] = v
		case "remove":
			patch[path] = Null()
		default:
			return nil, fmt.Errorf("%w: operation %d: %q", ErrUnsupportedOp, i, kind)
		}
	}
	return patch, nil
}

// DecodeJSONPatch parses an RFC 6902 patch document and translates it with [FromJSONPatch].
func DecodeJSONPatch(data []byte) (Patch, error) {
	ops, err := jsonpatch.DecodePatch(data)
	if err != nil {
		return nil, &MarshalError{Err: err, DocIndex: 0}
	}
	return FromJSONPatch(ops)
}
