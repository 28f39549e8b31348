package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-kreyol-tts/internal/testutil"
)

func TestRepoRoot_HasGoMod(t *testing.T) {
	root := testutil.RepoRoot()
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Fatalf("go.mod not found under %q: %v", root, err)
	}
}

func TestRequireONNXRuntime_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("KREYOLTTS_ORT_LIB", "/nonexistent/libonnxruntime.so")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireONNXRuntime(fakeT)
	if !skipped {
		t.Error("expected RequireONNXRuntime to skip when library is absent")
	}
}

func TestRequireONNXRuntime_ReturnsEnvPath(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(lib, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KREYOLTTS_ORT_LIB", lib)

	if got := testutil.RequireONNXRuntime(t); got != lib {
		t.Errorf("RequireONNXRuntime = %q, want %q", got, lib)
	}
}

func TestRequireBertModel_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("KREYOLTTS_BERT_MODEL", filepath.Join(t.TempDir(), "missing.onnx"))

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireBertModel(fakeT)
	if !skipped {
		t.Error("expected RequireBertModel to skip when the model is absent")
	}
}

func TestRequireTokenizer_ReturnsEnvPath(t *testing.T) {
	vocab := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(vocab, []byte("[UNK]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KREYOLTTS_TOKENIZER", vocab)

	if got := testutil.RequireTokenizer(t); got != vocab {
		t.Errorf("RequireTokenizer = %q, want %q", got, vocab)
	}
}

// skipTracker is a minimal testing.TB implementation that intercepts Skip calls.
type skipTracker struct {
	testing.TB
	onSkip func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
	// Do NOT call s.TB.Skip; that would actually skip the outer test.
}
