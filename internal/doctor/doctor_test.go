package doctor_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aseker00/alephbert/internal/doctor"
)

func okCheck(desc string) doctor.CheckFunc {
	return func() (string, error) { return desc, nil }
}

func TestRun_AllChecksPass(t *testing.T) {
	ckpt := writeFile(t, "model.safetensors")

	cfg := doctor.Config{
		Vocabularies:   okCheck("chars 40, tags 12"),
		CheckpointPath: ckpt,
		Checkpoint:     func(string) (string, error) { return "14 tensors", nil },
		ORTLibrary:     okCheck("/usr/lib/libonnxruntime.so"),
		Files:          []doctor.File{{Label: "tokenizer", Path: ckpt}},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}

	for _, want := range []string{"chars 40", "14 tensors", "libonnxruntime", "tokenizer"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_VocabularyFailure(t *testing.T) {
	cfg := doctor.Config{
		Vocabularies: func() (string, error) { return "", errors.New(`missing symbol "<sep>"`) },
		SkipORT:      true,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure for a broken vocabulary")
	}

	if !hasFailureContaining(result.Failures(), "vocabularies") {
		t.Errorf("expected failure mentioning vocabularies, got: %v", result.Failures())
	}

	if !strings.Contains(out.String(), doctor.FailMark) {
		t.Error("output should carry the fail mark")
	}
}

func TestRun_MissingCheckpoint(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.safetensors")

	t.Run("fails by default", func(t *testing.T) {
		var out strings.Builder
		result := doctor.Run(doctor.Config{CheckpointPath: missing, SkipORT: true}, &out)

		if !hasFailureContaining(result.Failures(), "checkpoint") {
			t.Errorf("expected checkpoint failure, got: %v", result.Failures())
		}
	})

	t.Run("allowed with initialisation", func(t *testing.T) {
		var out strings.Builder
		result := doctor.Run(doctor.Config{
			CheckpointPath:         missing,
			AllowMissingCheckpoint: true,
			SkipORT:                true,
		}, &out)

		if result.Failed() {
			t.Errorf("unexpected failures: %v", result.Failures())
		}

		if !strings.Contains(out.String(), "initialised") {
			t.Errorf("output should note initialisation:\n%s", out.String())
		}
	})
}

func TestRun_CheckpointValidationFailure(t *testing.T) {
	ckpt := writeFile(t, "model.safetensors")

	cfg := doctor.Config{
		CheckpointPath: ckpt,
		Checkpoint:     func(string) (string, error) { return "", errors.New("invalid header") },
		SkipORT:        true,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !hasFailureContaining(result.Failures(), "invalid header") {
		t.Errorf("expected header failure, got: %v", result.Failures())
	}
}

func TestRun_ORTMissingFails(t *testing.T) {
	cfg := doctor.Config{
		ORTLibrary: func() (string, error) { return "", errLibraryNotFound },
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !hasFailureContaining(result.Failures(), "onnx runtime") {
		t.Errorf("expected failure mentioning onnx runtime, got: %v", result.Failures())
	}
}

func TestRun_SkipORT(t *testing.T) {
	called := false
	cfg := doctor.Config{
		ORTLibrary: func() (string, error) { called = true; return "", errLibraryNotFound },
		SkipORT:    true,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if called {
		t.Error("ORTLibrary should not be called when SkipORT is set")
	}

	if result.Failed() {
		t.Errorf("unexpected failures: %v", result.Failures())
	}
}

func TestRun_MissingFile(t *testing.T) {
	cfg := doctor.Config{
		SkipORT: true,
		Files: []doctor.File{
			{Label: "encoder model", Path: "/nonexistent/encoder.onnx"},
			{Label: "tokenizer", Path: ""},
		},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	failures := result.Failures()
	if len(failures) != 1 {
		t.Fatalf("failures = %v; want exactly one", failures)
	}

	if !hasFailureContaining(failures, "encoder model") {
		t.Errorf("expected encoder model failure, got: %v", failures)
	}
}

func TestResult_AddFailure(t *testing.T) {
	var r doctor.Result
	if r.Failed() {
		t.Fatal("zero Result should not be failed")
	}

	r.AddFailure("extra")

	got := r.Failures()
	if !r.Failed() || len(got) != 1 || got[0] != "extra" {
		t.Errorf("Failures() = %v", got)
	}

	got[0] = "mutated"
	if r.Failures()[0] != "extra" {
		t.Error("Failures() should return a copy")
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

var errLibraryNotFound = sentinelError("library not found")

func writeFile(t *testing.T, name string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return p
}

func hasFailureContaining(failures []string, substr string) bool {
	substr = strings.ToLower(substr)
	for _, f := range failures {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}

	return false
}
