// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skipf with a readable reason when the named
// prerequisite is absent, so integration tests stay runnable in partial
// environments.
//
// Typical usage:
//
//	func TestEncoderIntegration(t *testing.T) {
//	    testutil.RequireONNXRuntime(t)
//	    path, dim := testutil.RequireEncoderModel(t)
//	    ...
//	}
package testutil

import (
	"os"
	"strconv"
	"testing"
)

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks ORT_LIBRARY_PATH, then MORPHTAG_ORT_LIB, then common
// system library paths.
func RequireONNXRuntime(tb testing.TB) {
	tb.Helper()

	for _, env := range []string{"ORT_LIBRARY_PATH", "MORPHTAG_ORT_LIB"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)

			return
		}
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or MORPHTAG_ORT_LIB")
}

// RequireEncoderModel returns the encoder graph named by
// MORPHTAG_TEST_ENCODER_MODEL and its vector width from
// MORPHTAG_TEST_ENCODER_DIM (768 when unset), skipping when the graph is
// missing.
func RequireEncoderModel(tb testing.TB) (string, int) {
	tb.Helper()

	path := os.Getenv("MORPHTAG_TEST_ENCODER_MODEL")
	if path == "" {
		tb.Skipf("encoder model not configured; set MORPHTAG_TEST_ENCODER_MODEL")
		return "", 0
	}

	if _, err := os.Stat(path); err != nil {
		tb.Skipf("encoder model not available at %q: %v", path, err)
		return "", 0
	}

	dim := 768

	if raw := os.Getenv("MORPHTAG_TEST_ENCODER_DIM"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			tb.Skipf("invalid MORPHTAG_TEST_ENCODER_DIM %q", raw)
			return "", 0
		}

		dim = n
	}

	return path, dim
}
