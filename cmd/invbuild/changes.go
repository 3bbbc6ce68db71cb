// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sam-fredrickson/inventory"
)

// writeChanges prints the entries that turn source into current, one path
// per line in apply order: "+" for new paths, "~" for changed values and "-"
// for removed paths. A path reported by live is not removed: an empty item
// leaves the flat view once it gains children. With color, a changed string
// is followed by an inline character diff.
func writeChanges(w io.Writer, source, current inventory.Patch, live func(string) bool, colored bool) error {
	added := color.New(color.FgGreen)
	changed := color.New(color.FgYellow)
	removed := color.New(color.FgRed)
	for _, c := range []*color.Color{added, changed, removed} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	changes := inventory.Diff(source, current)
	for _, path := range inventory.SortedPaths(changes) {
		v := changes[path]
		old, had := source[path]

		if v.IsNull() && live != nil && live(path) {
			continue
		}

		var err error
		switch {
		case v.IsNull():
			_, err = removed.Fprintf(w, "- %s\n", path)
		case had && !old.IsNull():
			_, err = changed.Fprintf(w, "~ %s: %s -> %s\n", path, old, v)
			if err == nil && colored {
				err = writeStringDiff(w, old, v)
			}
		default:
			_, err = added.Fprintf(w, "+ %s: %s\n", path, v)
		}
		if err != nil {
			return fmt.Errorf("failed to write changes: %w", err)
		}
	}
	return nil
}

type colorMode string

var validColorModes = map[string]colorMode{
	"":       colorMode("auto"),
	"auto":   colorMode("auto"),
	"always": colorMode("always"),
	"never":  colorMode("never"),
}

func (m *colorMode) String() string {
	if *m == "" {
		return "auto"
	}
	return string(*m)
}

func (m *colorMode) Set(value string) error {
	value = strings.ToLower(value)
	mode, ok := validColorModes[value]
	if !ok {
		return fmt.Errorf("invalid color mode %q", value)
	}
	*m = mode
	return nil
}

// enabled reports whether output written to w should be colored. In auto
// mode only terminals get color.
func (m *colorMode) enabled(w io.Writer) bool {
	switch *m {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeStringDiff prints an inline diff when both values are strings.
func writeStringDiff(w io.Writer, from, to inventory.Value) error {
	a, ok := from.AsString()
	if !ok {
		return nil
	}
	b, ok := to.AsString()
	if !ok {
		return nil
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(a, b, false))
	_, err := fmt.Fprintf(w, "    %s\n", dmp.DiffPrettyText(diffs))
	return err
}
