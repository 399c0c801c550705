package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artswap/artswap/internal/output"
)

// outputTarget is where a command writes its rendered output: a single file,
// a directory that receives a generated file name, or stdout when both are
// empty.
type outputTarget struct {
	File string
	Dir  string
}

// reportWriter is an opened outputTarget.
type reportWriter struct {
	io.Writer
	Path   string
	closer func() error
}

func (w *reportWriter) Close() error {
	if w == nil || w.closer == nil {
		return nil
	}
	return w.closer()
}

// Stdout reports whether the writer is the process stdout.
func (w *reportWriter) Stdout() bool {
	return w.Path == "-"
}

// outputTargetFromFlags reads --out and --out-dir; commands may register
// only --out.
func outputTargetFromFlags(cmd *cobra.Command) (outputTarget, error) {
	var target outputTarget
	if flag := cmd.Flags().Lookup("out"); flag != nil {
		target.File = strings.TrimSpace(flag.Value.String())
	}
	if flag := cmd.Flags().Lookup("out-dir"); flag != nil {
		target.Dir = strings.TrimSpace(flag.Value.String())
	}
	if target.File != "" && target.Dir != "" {
		return outputTarget{}, fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	return target, nil
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

// path resolves the destination. stem names the file inside Dir.
func (t outputTarget) path(stem string, format output.Format) (string, error) {
	if t.File != "" {
		return t.File, nil
	}
	if t.Dir == "" {
		return "-", nil
	}

	dir, err := filepath.Abs(t.Dir)
	if err != nil {
		dir = t.Dir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := nonFilename.ReplaceAllString(strings.ToLower(strings.TrimSpace(stem)), "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "output"
	}
	return filepath.Join(dir, name+"."+extensionFor(format)), nil
}

func (t outputTarget) open(stem string, format output.Format) (*reportWriter, error) {
	path, err := t.path(stem, format)
	if err != nil {
		return nil, err
	}
	if path == "-" {
		return &reportWriter{Writer: os.Stdout, Path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &reportWriter{Writer: file, Path: path, closer: file.Close}, nil
}

func extensionFor(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}
