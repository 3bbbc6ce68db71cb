// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"

	"github.com/sam-fredrickson/inventory"
)

//go:embed testfiles
var testfiles embed.FS

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// writeEmbeddedFile creates a temporary file with content from the embedded filesystem.
func writeEmbeddedFile(t *testing.T, tmpDir, embeddedPath string) string {
	t.Helper()
	content, err := fs.ReadFile(testfiles, embeddedPath)
	if err != nil {
		t.Fatalf("failed to read embedded file %s: %v", embeddedPath, err)
	}

	filename := filepath.Base(embeddedPath)
	tmpFile := filepath.Join(tmpDir, filename)
	if err := os.WriteFile(tmpFile, content, 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return tmpFile
}

// readExpected decodes an embedded JSON file.
func readExpected(t *testing.T, embeddedPath string) map[string]any {
	t.Helper()
	content, err := fs.ReadFile(testfiles, embeddedPath)
	if err != nil {
		t.Fatalf("failed to read %s: %v", embeddedPath, err)
	}
	var expected map[string]any
	if err := json.Unmarshal(content, &expected); err != nil {
		t.Fatalf("failed to unmarshal %s: %v", embeddedPath, err)
	}
	return expected
}

// decodeOutput parses output in the given format and normalizes it through
// JSON so results from different decoders compare equal.
func decodeOutput(t *testing.T, output []byte, f format) map[string]any {
	t.Helper()
	var result map[string]any
	switch f {
	case "json":
		if err := json.Unmarshal(output, &result); err != nil {
			t.Fatalf("failed to unmarshal result as JSON: %v", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(output, &result); err != nil {
			t.Fatalf("failed to unmarshal result as YAML: %v", err)
		}
	case "toml":
		if err := toml.Unmarshal(output, &result); err != nil {
			t.Fatalf("failed to unmarshal result as TOML: %v", err)
		}
	default:
		t.Fatalf("unexpected format %q", f)
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(resultJSON, &normalized); err != nil {
		t.Fatalf("failed to unmarshal normalized result: %v", err)
	}
	return normalized
}

func TestRunFormats(t *testing.T) {
	tmpDir := t.TempDir()

	baseYAML := writeEmbeddedFile(t, tmpDir, "testfiles/base.yaml")
	baseJSON := writeEmbeddedFile(t, tmpDir, "testfiles/base.json")
	baseTOML := writeEmbeddedFile(t, tmpDir, "testfiles/base.toml")

	editYAML := writeEmbeddedFile(t, tmpDir, "testfiles/edit.yaml")
	editJSON := writeEmbeddedFile(t, tmpDir, "testfiles/edit.json")
	editTOML := writeEmbeddedFile(t, tmpDir, "testfiles/edit.toml")
	editPatch := writeEmbeddedFile(t, tmpDir, "testfiles/edit.jsonpatch")

	expected := readExpected(t, "testfiles/expected.json")

	tests := []struct {
		name         string
		baseFile     string
		editFile     string
		outputFormat format
		wantFormat   format
	}{
		{"yaml to yaml", baseYAML, editYAML, "yaml", "yaml"},
		{"yaml to json", baseYAML, editYAML, "json", "json"},
		{"yaml to toml", baseYAML, editYAML, "toml", "toml"},
		{"json to yaml", baseJSON, editJSON, "yaml", "yaml"},
		{"json to json", baseJSON, editJSON, "json", "json"},
		{"json to toml", baseJSON, editJSON, "toml", "toml"},
		{"toml to yaml", baseTOML, editTOML, "yaml", "yaml"},
		{"toml to json", baseTOML, editTOML, "json", "json"},
		{"toml to toml", baseTOML, editTOML, "toml", "toml"},

		// mixed inputs
		{"yaml base, json edit", baseYAML, editJSON, "yaml", "yaml"},
		{"json base, yaml edit", baseJSON, editYAML, "json", "json"},
		{"yaml base, toml edit", baseYAML, editTOML, "toml", "toml"},
		{"toml base, json patch", baseTOML, editPatch, "json", "json"},

		// format from the first file
		{"default yaml", baseYAML, editJSON, "", "yaml"},
		{"default toml", baseTOML, editYAML, "", "toml"},
		{"default json", baseJSON, editPatch, "", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			err := Run(discard, []string{tt.baseFile, tt.editFile}, config{outputFormat: tt.outputFormat, strict: true}, &output)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			normalized := decodeOutput(t, output.Bytes(), tt.wantFormat)
			if !reflect.DeepEqual(normalized, expected) {
				t.Errorf("result does not match expected.\nGot: %#v\nExpected: %#v", normalized, expected)
			}
		})
	}
}

func TestRunFlat(t *testing.T) {
	tmpDir := t.TempDir()
	baseYAML := writeEmbeddedFile(t, tmpDir, "testfiles/base.yaml")

	var output bytes.Buffer
	if err := Run(discard, []string{baseYAML}, config{outputFormat: "json", strict: true, flat: true}, &output); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	expected := readExpected(t, "testfiles/base.json")
	normalized := decodeOutput(t, output.Bytes(), "json")
	if !reflect.DeepEqual(normalized, expected) {
		t.Errorf("flat output does not match base.\nGot: %#v\nExpected: %#v", normalized, expected)
	}
}

func TestRunSkipsIllegalPaths(t *testing.T) {
	tmpDir := t.TempDir()
	illegal := writeEmbeddedFile(t, tmpDir, "testfiles/illegal.yaml")

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	var output bytes.Buffer
	if err := Run(log, []string{illegal}, config{outputFormat: "json"}, &output); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	normalized := decodeOutput(t, output.Bytes(), "json")
	// the walk to "bag//sword" creates bag before it reaches the empty segment
	expected := map[string]any{"player": map[string]any{"bag": map[string]any{}, "level": float64(3)}}
	if !reflect.DeepEqual(normalized, expected) {
		t.Errorf("result does not match expected.\nGot: %#v\nExpected: %#v", normalized, expected)
	}
	if got := strings.Count(logs.String(), "level=WARN"); got != 2 {
		t.Errorf("expected 2 warnings, got %d:\n%s", got, logs.String())
	}
}

func TestRunStrict(t *testing.T) {
	tmpDir := t.TempDir()
	illegal := writeEmbeddedFile(t, tmpDir, "testfiles/illegal.yaml")

	var output bytes.Buffer
	err := Run(discard, []string{illegal}, config{outputFormat: "json", strict: true}, &output)
	if err == nil {
		t.Fatal("expected error in strict mode, got nil")
	}
	if !errors.Is(err, inventory.ErrIllegalPath) {
		t.Errorf("expected ErrIllegalPath, got: %v", err)
	}
	if output.Len() != 0 {
		t.Errorf("expected no output, got %q", output.String())
	}
}

func TestRunMissingFiles(t *testing.T) {
	var output bytes.Buffer
	err := Run(discard, []string{}, config{}, &output)
	if err == nil {
		t.Fatal("expected error for missing files, got nil")
	}
	if !strings.Contains(err.Error(), "no files") {
		t.Errorf("expected 'no files' error, got: %v", err)
	}
}

func TestRunFileNotFound(t *testing.T) {
	var output bytes.Buffer
	err := Run(discard, []string{"nonexistent.yaml"}, config{}, &output)
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
}

func TestRunUnknownFormat(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test.unknown")
	if err := os.WriteFile(tmpFile, []byte("/key: value"), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	var output bytes.Buffer
	err := Run(discard, []string{tmpFile}, config{}, &output)
	if err == nil {
		t.Errorf("expected error for unknown format, got nil")
	}
}

func TestRunNotAPatch(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "list.json")
	if err := os.WriteFile(tmpFile, []byte(`[{"name": "a"}]`), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	var output bytes.Buffer
	err := Run(discard, []string{tmpFile}, config{}, &output)
	if !errors.Is(err, inventory.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got: %v", err)
	}
}

func TestRunUnsupportedPatchOp(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "move.jsonpatch")
	if err := os.WriteFile(tmpFile, []byte(`[{"op": "move", "from": "/a", "path": "/b"}]`), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	var output bytes.Buffer
	err := Run(discard, []string{tmpFile}, config{}, &output)
	if !errors.Is(err, inventory.ErrUnsupportedOp) {
		t.Errorf("expected ErrUnsupportedOp, got: %v", err)
	}
}

func TestRunChanges(t *testing.T) {
	tmpDir := t.TempDir()
	baseYAML := writeEmbeddedFile(t, tmpDir, "testfiles/base.yaml")
	editYAML := writeEmbeddedFile(t, tmpDir, "testfiles/edit.yaml")

	var output bytes.Buffer
	err := Run(discard, []string{baseYAML, editYAML}, config{changes: true}, &output)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := strings.Join([]string{
		`+ /player: {"name":"bo"}`,
		`+ /player/bag: {"potion":2}`,
		`~ /player/gold: 100 -> 150`,
		`- /player/name`,
		`~ /world/seed: "abc" -> {}`,
	}, "\n") + "\n"
	if output.String() != want {
		t.Errorf("unexpected changes.\nGot:\n%s\nExpected:\n%s", output.String(), want)
	}
}

func TestRunChangesEmptyParentGainsChildren(t *testing.T) {
	tmpDir := t.TempDir()
	base := filepath.Join(tmpDir, "base.yaml")
	edit := filepath.Join(tmpDir, "edit.yaml")
	if err := os.WriteFile(base, []byte("/bag: {}\n/gold: 5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(edit, []byte("/bag/sword: 1\n/gold: null\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var output bytes.Buffer
	err := Run(discard, []string{base, edit}, config{changes: true}, &output)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := "+ /bag/sword: 1\n~ /gold: 5 -> {}\n"
	if output.String() != want {
		t.Errorf("unexpected changes.\nGot:\n%s\nExpected:\n%s", output.String(), want)
	}
}

func TestRunChangesColor(t *testing.T) {
	tmpDir := t.TempDir()
	baseYAML := writeEmbeddedFile(t, tmpDir, "testfiles/base.yaml")
	editYAML := writeEmbeddedFile(t, tmpDir, "testfiles/edit.yaml")

	var output bytes.Buffer
	err := Run(discard, []string{baseYAML, editYAML}, config{changes: true, color: true}, &output)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(output.String(), "\x1b[31m- /player/name") {
		t.Errorf("expected removed path in red, got %q", output.String())
	}
}

func TestWriteChangesStringDiff(t *testing.T) {
	source := inventory.Patch{"/player/name": inventory.String("ada")}
	current := inventory.Patch{"/player/name": inventory.String("adam")}

	var plain bytes.Buffer
	if err := writeChanges(&plain, source, current, nil, false); err != nil {
		t.Fatal(err)
	}
	if got, want := plain.String(), "~ /player/name: \"ada\" -> \"adam\"\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	var colored bytes.Buffer
	if err := writeChanges(&colored, source, current, nil, true); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(colored.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected change and diff lines, got %q", colored.String())
	}
	if !strings.Contains(lines[1], "\x1b[32mm\x1b[0m") {
		t.Errorf("expected inserted m in green, got %q", lines[1])
	}
}

func TestColorModeFlag(t *testing.T) {
	tests := []struct {
		input string
		valid bool
		color bool
	}{
		{"always", true, true},
		{"never", true, false},
		{"auto", true, false},
		{"", true, false},
		{"sometimes", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var m colorMode
			err := m.Set(tt.input)
			if (err == nil) != tt.valid {
				t.Fatalf("expected valid=%v, got error=%v", tt.valid, err)
			}
			// a buffer is never a terminal
			if got := m.enabled(&bytes.Buffer{}); tt.valid && got != tt.color {
				t.Errorf("expected color=%v, got %v", tt.color, got)
			}
		})
	}
}

func TestFormatFlag(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"json", "json", true},
		{"yaml", "yaml", true},
		{"toml", "toml", true},
		{"upper", "YAML", true},
		{"empty", "", true},
		{"invalid", "xml", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f format
			err := f.Set(tt.input)
			if (err == nil) != tt.valid {
				t.Errorf("expected valid=%v, got error=%v", tt.valid, err)
			}
		})
	}
}

func TestFormatMarshalEmpty(t *testing.T) {
	var f format
	if _, err := f.Marshal(map[string]any{}); !errors.Is(err, errNoFormat) {
		t.Errorf("expected errNoFormat, got: %v", err)
	}
}
