// Package doctor provides environment preflight checks for morphtag.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// CheckFunc returns a short description of a component or an error if it is
// unusable.
type CheckFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Vocabularies loads and validates the character and tag vocabularies.
	Vocabularies CheckFunc
	// CheckpointPath is the safetensors checkpoint. Empty skips the check.
	CheckpointPath string
	// Checkpoint opens CheckpointPath and reports what it holds.
	Checkpoint func(path string) (string, error)
	// AllowMissingCheckpoint accepts an absent checkpoint, as when
	// parameters are initialised from a seed.
	AllowMissingCheckpoint bool
	// ORTLibrary resolves the ONNX Runtime shared library.
	ORTLibrary CheckFunc
	// SkipORT skips the runtime check (hash encoder).
	SkipORT bool
	// Files are further paths that must exist, keyed by label.
	Files []File
}

// File is a labelled path checked for existence. Empty paths are skipped.
type File struct {
	Label string
	Path  string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	runCheck(&res, w, "vocabularies", cfg.Vocabularies)

	// ---- checkpoint -------------------------------------------------------
	switch {
	case cfg.CheckpointPath == "":
		fmt.Fprintf(w, "%s checkpoint: skipped (no path)\n", PassMark)
	default:
		_, err := os.Stat(cfg.CheckpointPath)
		if errors.Is(err, os.ErrNotExist) && cfg.AllowMissingCheckpoint {
			fmt.Fprintf(w, "%s checkpoint: %s missing, parameters will be initialised\n", PassMark, cfg.CheckpointPath)
			break
		}

		runCheck(&res, w, "checkpoint", func() (string, error) {
			if err != nil {
				return "", err
			}

			if cfg.Checkpoint == nil {
				return cfg.CheckpointPath, nil
			}

			return cfg.Checkpoint(cfg.CheckpointPath)
		})
	}

	// ---- onnx runtime -----------------------------------------------------
	if cfg.SkipORT {
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	} else {
		runCheck(&res, w, "onnx runtime", cfg.ORTLibrary)
	}

	// ---- files ------------------------------------------------------------
	for _, f := range cfg.Files {
		if f.Path == "" {
			continue
		}

		if _, err := os.Stat(f.Path); err != nil {
			res.fail(fmt.Sprintf("%s %q: %v", f.Label, f.Path, err))
			fmt.Fprintf(w, "%s %s %s: not found\n", FailMark, f.Label, f.Path)
		} else {
			fmt.Fprintf(w, "%s %s: %s\n", PassMark, f.Label, f.Path)
		}
	}

	return res
}

func runCheck(res *Result, w io.Writer, name string, fn CheckFunc) {
	if fn == nil {
		fmt.Fprintf(w, "%s %s: skipped\n", PassMark, name)
		return
	}

	desc, err := fn()
	if err != nil {
		res.fail(fmt.Sprintf("%s: %v", name, err))
		fmt.Fprintf(w, "%s %s: %v\n", FailMark, name, err)

		return
	}

	fmt.Fprintf(w, "%s %s: %s\n", PassMark, name, desc)
}
