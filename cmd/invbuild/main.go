// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"

	"github.com/sam-fredrickson/inventory"
)

var version = "dev"

func main() {
	var failed bool
	defer func() {
		if failed {
			os.Exit(1)
		}
	}()

	program := os.Args[0]
	var outputPath string
	var cfg config
	var colors colorMode
	var verbose bool
	var showVersion bool

	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "usage: %s [flags] FILE...\n\n", program)
		fmt.Fprintf(out, "Builds an inventory document from flat patch files (YAML, JSON, TOML, JSON Patch).\n")
		fmt.Fprintf(out, "Each file maps absolute paths such as /player/gold to values; null clears a path.\n")
		fmt.Fprintf(out, "Files are applied in order, and the merged document is written out.\n\n")
		fmt.Fprintf(out, "Example:\n")
		fmt.Fprintf(out, "  # apply a session's edits on top of the stored inventory\n")
		fmt.Fprintf(out, "  %s -out player.json stored.json edits.yaml\n\n", program)
		fmt.Fprintf(out, "  # list what the edits change\n")
		fmt.Fprintf(out, "  %s -changes stored.json edits.yaml\n\n", program)
		fmt.Fprintf(out, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.StringVar(&outputPath, "out", "", "output file path (defaults to stdout)")
	flag.Var(&cfg.outputFormat, "format", `output format [json, yaml, toml] (defaults to first file's format)`)
	flag.BoolVar(&cfg.strict, "strict", false, "fail if any patch entry is skipped")
	flag.BoolVar(&cfg.flat, "flat", false, "write the flattened inventory instead of the document")
	flag.BoolVar(&cfg.changes, "changes", false, "list the paths the later files change relative to the first")
	flag.Var(&colors, "color", "color -changes output [auto, always, never]")
	flag.BoolVar(&verbose, "v", false, "log evictions")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	files := flag.Args()
	var output io.Writer
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			failed = true
			return
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	cfg.color = colors.enabled(output)
	err := Run(log, files, cfg, output)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		_, _ = fmt.Fprintf(os.Stderr, "usage: %s [flags] FILE...\n", program)
		failed = true
		return
	}
}

// config holds the output options of [Run].
type config struct {
	outputFormat format
	// strict fails the run if any patch entry is skipped.
	strict bool
	// flat writes the flattened inventory instead of the document.
	flat bool
	// changes lists what the files after the first change, as text.
	changes bool
	color   bool
}

func Run(log *slog.Logger, files []string, cfg config, output io.Writer) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to apply")
	}
	outputFormat := cfg.outputFormat

	var patches []inventory.Patch
	for _, file := range files {
		patch, fileFormat, err := readPatch(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		patches = append(patches, patch)
		if outputFormat == "" {
			outputFormat = fileFormat
		}
	}

	inv := inventory.New(inventory.Options{Logger: log})
	applier := inventory.NewApplier(inventory.ApplyOptions{Logger: log})
	report, err := applier.Apply(inv, patches[0])
	if err != nil {
		return fmt.Errorf("apply failed while processing %s: %w", files[0], err)
	}
	source := inv.Flatten()
	rest, err := applier.ApplyAll(inv, patches[1:]...)
	report.Merge(rest)
	if err != nil {
		return fmt.Errorf("apply failed while processing files %v: %w", files, err)
	}
	if cfg.strict {
		if err := report.Err(); err != nil {
			return err
		}
	}

	if cfg.changes {
		live := func(path string) bool {
			_, err := inv.FindItem(path)
			return err == nil
		}
		return writeChanges(output, source, inv.Flatten(), live, cfg.color)
	}

	var result any
	if cfg.flat {
		result = inventory.Object(inv.Flatten()).Any()
	} else {
		doc, err := inv.Document()
		if err != nil {
			return fmt.Errorf("failed to construct document: %w", err)
		}
		result = doc.Any()
	}

	marshaled, err := outputFormat.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result as %s: %w", outputFormat, err)
	}

	_, err = output.Write(marshaled)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

// readPatch reads one patch file. RFC 6902 documents (".jsonpatch") are
// translated to flat patches and produce JSON output by default.
func readPatch(file string) (inventory.Patch, format, error) {
	var f format

	contents, err := os.ReadFile(file)
	if err != nil {
		return nil, f, err
	}

	extension := filepath.Ext(file)
	extension = strings.ToLower(extension)
	var unmarshal func([]byte, any) error
	switch extension {
	case ".yaml", ".yml":
		f = validFormats["yaml"]
		unmarshal = yaml.Unmarshal
	case ".json":
		f = validFormats["json"]
		unmarshal = json.Unmarshal
	case ".toml":
		f = validFormats["toml"]
		unmarshal = toml.Unmarshal
	case ".jsonpatch":
		f = validFormats["json"]
		patch, err := inventory.DecodeJSONPatch(contents)
		return patch, f, err
	}
	if unmarshal == nil {
		return nil, f, fmt.Errorf("unsupported file format: %s", extension)
	}

	var raw any
	if err := unmarshal(contents, &raw); err != nil {
		return nil, f, err
	}
	patch, err := inventory.PatchFromAny(raw)
	if err != nil {
		return nil, f, err
	}
	return patch, f, nil
}

type format string

var validFormats = map[string]format{
	"":     format(""),
	"json": format("json"),
	"yaml": format("yaml"),
	"toml": format("toml"),
}

func (f *format) String() string {
	return string(*f)
}

func (f *format) Set(value string) error {
	value = strings.ToLower(value)
	format, ok := validFormats[value]
	if !ok {
		return fmt.Errorf("invalid format %q", value)
	}
	*f = format
	return nil
}

var errNoFormat = errors.New("no output format")

func (f *format) Marshal(doc any) ([]byte, error) {
	switch *f {
	case "json":
		return json.MarshalIndent(doc, "", "  ")
	case "yaml":
		return yaml.Marshal(doc)
	case "toml":
		return toml.Marshal(doc)
	case "":
		return nil, errNoFormat
	default:
		return nil, fmt.Errorf("invalid format %q", *f)
	}
}
