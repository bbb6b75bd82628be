// SPDX-License-Identifier: Apache-2.0

// Command csmerge applies change documents to a base configuration file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"

	changeset "github.com/brzpegasus/ember-changeset"
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
	var outputFormat format
	var resolvePaths bool
	var showVersion bool

	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "usage: %s [flags] BASE CHANGE...\n\n", program)
		fmt.Fprintf(out, "Applies change documents (YAML, JSON, TOML) to a base document.\n")
		fmt.Fprintf(out, "Objects are deep-merged; lists and scalars are replaced wholesale.\n")
		fmt.Fprintf(out, "Keys that would shadow reserved properties are skipped.\n\n")
		fmt.Fprintf(out, "Example:\n")
		fmt.Fprintf(out, "  # apply staged changes to a config\n")
		fmt.Fprintf(out, "  %s -out config.yaml config.yaml changes.yaml\n\n", program)
		fmt.Fprintf(out, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.StringVar(&outputPath, "out", "", "output file path (defaults to stdout)")
	flag.Var(&outputFormat, "format", `output format [json, yaml, toml] (defaults to the base file's format)`)
	flag.BoolVar(&resolvePaths, "resolve", false, "resolve guarded keys into dotted-path writes")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

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

	err := Run(files, outputFormat, resolvePaths, output)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		_, _ = fmt.Fprintf(os.Stderr, "usage: %s [flags] BASE CHANGE...\n", program)
		failed = true
		return
	}
}

func Run(
	files []string,
	outputFormat format,
	resolvePaths bool,
	output io.Writer,
) error {
	if len(files) == 0 {
		return fmt.Errorf("no base file to merge into")
	}

	var target any
	baseFormat, err := unmarshalFile(files[0], &target)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", files[0], err)
	}
	if outputFormat == "" {
		outputFormat = baseFormat
	}

	var opts changeset.Options
	if resolvePaths {
		opts.SafeSet = changeset.SetPath
	}

	for _, file := range files[1:] {
		var change any
		if _, err := unmarshalFile(file, &change); err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		merged, err := changeset.MergeDeep(target, change, opts)
		if err != nil {
			return fmt.Errorf("merge failed while applying %s: %w", file, err)
		}
		target = merged
	}

	marshaled, err := outputFormat.Marshal(target)
	if err != nil {
		return fmt.Errorf("failed to marshal result as %s: %w", outputFormat, err)
	}

	_, err = output.Write(marshaled)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func unmarshalFile(file string, out any) (format, error) {
	var f format

	contents, err := os.ReadFile(file)
	if err != nil {
		return f, err
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
	}
	if unmarshal == nil {
		return f, fmt.Errorf("unsupported file format: %s", extension)
	}

	err = unmarshal(contents, out)
	if err != nil {
		return f, err
	}

	return f, nil
}

type format string

var validFormats = map[string]format{
	"json": "json",
	"yaml": "yaml",
	"toml": "toml",
}

func (f *format) String() string {
	return string(*f)
}

func (f *format) Set(value string) error {
	v, ok := validFormats[strings.ToLower(value)]
	if !ok {
		return fmt.Errorf("invalid format: %s", value)
	}
	*f = v
	return nil
}

func (f format) Marshal(v any) ([]byte, error) {
	switch f {
	case "json":
		return json.MarshalIndent(v, "", "  ")
	case "yaml":
		return yaml.Marshal(v)
	case "toml":
		return toml.Marshal(v)
	default:
		return nil, fmt.Errorf("invalid format: %s", f)
	}
}
