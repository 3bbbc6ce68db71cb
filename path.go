// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"fmt"
	"strings"
)

// Separator joins the segments of an inventory path.
const Separator = "/"

// IsLegalSegment reports whether segment is a legal path segment.
//
// A segment is non-empty and made of lower case ASCII letters, digits, '-', '_'
// and '.'. It must start with a letter or digit. When allowSeparator is true,
// '/' may separate several segments, and each of them must follow the same rules.
func IsLegalSegment(segment string, allowSeparator bool) bool {
	if len(segment) == 0 {
		return false
	}

	start := 0
	for i := 0; i < len(segment); i++ {
		ch := segment[i]
		if isAlnum(ch) {
			continue
		}
		// each segment starts with [a-z0-9]
		if i == start {
			return false
		}
		switch ch {
		case '/':
			if !allowSeparator {
				return false
			}
			start = i + 1
		case '-', '_', '.':
		default:
			return false
		}
	}

	// a trailing separator leaves an empty final segment
	return start < len(segment)
}

func isAlnum(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
}

// SplitPath splits a relative path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, Separator)
}

// ValidatePath checks an absolute path.
//
// "/" names the root. Any other path needs a leading "/" followed by legal
// segments. An empty or relative path is [ErrInvalidArgument]; a path with a
// bad segment is an [*IllegalPathError].
func ValidatePath(path string) error {
	rel, err := relativePath(path)
	if err != nil {
		return err
	}
	if rel == "" {
		return nil
	}
	for _, segment := range SplitPath(rel) {
		if !IsLegalSegment(segment, false) {
			return &IllegalPathError{Path: path, Segment: segment, Reason: IllegalSegment}
		}
	}
	return nil
}

// relativePath requires an absolute path and strips its leading separator.
func relativePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: inventory path is required", ErrInvalidArgument)
	}
	if !strings.HasPrefix(path, Separator) {
		return "", fmt.Errorf("%w: absolute path to item is required, got %q", ErrInvalidArgument, path)
	}
	return path[len(Separator):], nil
}

// NormalizePath turns user input into a canonical absolute path.
//
// The input is trimmed and lower-cased and any leading separators are dropped
// before the segments are checked, so " /Player/Gold" becomes "/player/gold".
// Empty segments ("a//b") are rejected.
func NormalizePath(raw string) (string, error) {
	path := strings.ToLower(strings.TrimSpace(raw))
	path = strings.TrimLeft(path, Separator)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}
	if strings.Contains(path, "//") {
		return "", &IllegalPathError{Path: raw, Segment: "", Reason: IllegalSegment}
	}
	for _, segment := range SplitPath(path) {
		if !IsLegalSegment(segment, false) {
			return "", &IllegalPathError{Path: raw, Segment: segment, Reason: IllegalSegment}
		}
	}
	return Separator + path, nil
}
