// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    model := testutil.RequireBertModel(t)
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// RequireONNXRuntime returns the ONNX Runtime shared library path, skipping
// the test if none can be located. It checks (in order): the
// KREYOLTTS_ORT_LIB env var, then ORT_LIBRARY_PATH, then common system
// library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"KREYOLTTS_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			// #nosec G703 -- Integration tests intentionally accept explicit env-provided local library paths.
			if _, err := os.Stat(p); err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
			return ""
		}
	}

	for _, p := range []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set KREYOLTTS_ORT_LIB or ORT_LIBRARY_PATH")
	return ""
}

// RequireBertModel returns the embedding model path from
// KREYOLTTS_BERT_MODEL, falling back to models/bert.onnx at the repo root.
func RequireBertModel(tb testing.TB) string {
	tb.Helper()
	return requireFile(tb, "KREYOLTTS_BERT_MODEL", "bert.onnx")
}

// RequireTokenizer returns the tokenizer path from KREYOLTTS_TOKENIZER,
// falling back to models/vocab.txt at the repo root.
func RequireTokenizer(tb testing.TB) string {
	tb.Helper()
	return requireFile(tb, "KREYOLTTS_TOKENIZER", "vocab.txt")
}

func requireFile(tb testing.TB, env, name string) string {
	tb.Helper()

	p := os.Getenv(env)
	if p == "" {
		p = filepath.Join(RepoRoot(), "models", name)
	}

	if _, err := os.Stat(p); err != nil {
		tb.Skipf("%s not available at %q (set %s): %v", name, p, env, err)
		return ""
	}

	return p
}

// RepoRoot walks up from the working directory to the directory holding
// go.mod. It returns "." when none is found.
func RepoRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}
