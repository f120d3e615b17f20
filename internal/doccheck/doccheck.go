// Package doccheck verifies that the project's required documentation is
// present on disk.
package doccheck

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// RequiredFiles lists the documents every checkout must carry, relative to the root.
var RequiredFiles = []string{
	"constitution.md",
	"specs/_meta.md",
	"specs/functional.md",
	"specs/technical.md",
	"skills/skill_ingest_trend_feeds/README.md",
	"skills/skill_generate_media_asset/README.md",
	"skills/skill_execute_publish_intent/README.md",
	"research/tooling_strategy.md",
}

// Status of a single required file
type Status string

const (
	StatusOK      Status = "OK"
	StatusMissing Status = "MISSING"
)

// Result is the outcome for one path
type Result struct {
	Path   string
	Status Status
}

// Report is the outcome of a full check
type Report struct {
	Results []Result
}

// Passed reports whether every required file was found.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if res.Status != StatusOK {
			return false
		}
	}
	return true
}

// Missing returns the paths that were not found.
func (r *Report) Missing() []string {
	var out []string
	for _, res := range r.Results {
		if res.Status == StatusMissing {
			out = append(out, res.Path)
		}
	}
	return out
}

// Check looks for each of paths under root, in order. A directory in place
// of a file counts as missing, and so does a path whose parent is a regular
// file. Other stat errors are returned.
func Check(root string, paths []string) (*Report, error) {
	report := &Report{Results: make([]Result, 0, len(paths))}
	for _, p := range paths {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(p)))
		switch {
		case err == nil && !info.IsDir():
			report.Results = append(report.Results, Result{Path: p, Status: StatusOK})
		case err == nil, errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
			report.Results = append(report.Results, Result{Path: p, Status: StatusMissing})
		default:
			return nil, fmt.Errorf("failed to check %s: %w", p, err)
		}
	}
	return report, nil
}

// Write prints the report in the checker's line format.
func Write(w io.Writer, report *Report) {
	for _, res := range report.Results {
		fmt.Fprintf(w, "%s %s\n", res.Status, res.Path)
	}
	if report.Passed() {
		fmt.Fprintf(w, "PASS: all %d required files present\n", len(report.Results))
		return
	}
	fmt.Fprintf(w, "FAIL: %d of %d required files missing\n", len(report.Missing()), len(report.Results))
}
