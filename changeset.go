// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Diff returns the patch that turns source into current.
//
// Entries of current that are missing from source or not [Equal] to the
// source value are included as they are. Entries of source missing from
// current become null. Null entries in current are treated as missing.
func Diff(source, current Patch) Patch {
	changes := Patch{}
	for path, v := range current {
		if v.IsNull() {
			continue
		}
		if old, ok := source[path]; ok && !old.IsNull() && Equal(old, v) {
			continue
		}
		changes[path] = v.Clone()
	}
	for path, old := range source {
		if old.IsNull() {
			continue
		}
		if v, ok := current[path]; !ok || v.IsNull() {
			changes[path] = Null()
		}
	}
	return changes
}

// Overlay lays changes over source and drops null entries, giving the flat
// view an editor shows after the changes.
func Overlay(source, changes Patch) Patch {
	current := make(Patch, len(source)+len(changes))
	for path, v := range source {
		current[path] = v.Clone()
	}
	for path, v := range changes {
		current[path] = v.Clone()
	}
	for path, v := range current {
		if v.IsNull() {
			delete(current, path)
		}
	}
	return current
}

// ParseValueString reads a value typed by a user: true or false in any case
// as a boolean, JSON if s parses as a single JSON value, otherwise s itself
// as a string.
func ParseValueString(s string) Value {
	trimmed := strings.TrimSpace(s)
	switch {
	case trimmed == "":
		return String(s)
	case strings.EqualFold(trimmed, "true"):
		return Bool(true)
	case strings.EqualFold(trimmed, "false"):
		return Bool(false)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	var v Value
	if err := dec.Decode(&v); err != nil {
		return String(s)
	}
	var rest json.RawMessage
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return String(s)
	}
	return v
}
