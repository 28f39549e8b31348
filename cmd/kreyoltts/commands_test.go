package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/example/go-kreyol-tts/internal/bert"
	"github.com/example/go-kreyol-tts/internal/config"
	"github.com/example/go-kreyol-tts/internal/doctor"
	"github.com/example/go-kreyol-tts/internal/g2p"
	"github.com/example/go-kreyol-tts/internal/safetensors"
	"github.com/example/go-kreyol-tts/internal/text"
)

const sampleInput = "  Bonjou, mwen gen 21 dola"

// Padded alignment of "bonjou, mwen gen ven-youn dola" over the test vocab.
var sampleWord2Ph = []int{1, 2, 2, 1, 3, 2, 2, 1, 3, 4, 1}

func TestNormalizeCmd_Stdin(t *testing.T) {
	out, err := execute(t, "Mwen gen 3 pitit!", "normalize")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got := strings.TrimSpace(out); got != "mwen gen twa pitit!" {
		t.Errorf("output = %q", got)
	}
}

func TestG2PCmd_PrintsAlignment(t *testing.T) {
	useTestFrontend(t)

	out, err := execute(t, "", "g2p", "--text", sampleInput, "--paths-tokenizer-path", writeVocab(t))
	if err != nil {
		t.Fatalf("g2p: %v", err)
	}

	var got g2pOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}

	if got.Text != "bonjou, mwen gen ven-youn dola" {
		t.Errorf("text = %q", got.Text)
	}
	if !reflect.DeepEqual(got.Word2Ph, sampleWord2Ph) {
		t.Errorf("word2ph = %v, want %v", got.Word2Ph, sampleWord2Ph)
	}
	if len(got.Phones) != 22 || len(got.Tones) != 22 {
		t.Errorf("phones/tones = %d/%d, want 22", len(got.Phones), len(got.Tones))
	}
	if got.Phones[0] != g2p.BoundaryPhone || got.Phones[21] != g2p.BoundaryPhone {
		t.Errorf("phones not padded: %v", got.Phones)
	}
}

func TestG2PCmd_NoPad(t *testing.T) {
	useTestFrontend(t)

	out, err := execute(t, "", "g2p", "--text", "mwen", "--pad-start-end=false",
		"--paths-tokenizer-path", writeVocab(t))
	if err != nil {
		t.Fatalf("g2p: %v", err)
	}

	var got g2pOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if !reflect.DeepEqual(got.Word2Ph, []int{3}) {
		t.Errorf("word2ph = %v, want [3]", got.Word2Ph)
	}
}

func TestBertCmd_WritesSafetensors(t *testing.T) {
	useTestFrontend(t)

	outPath := filepath.Join(t.TempDir(), "feat.safetensors")
	out, err := execute(t, sampleInput, "bert", "--out", outPath, "--paths-tokenizer-path", writeVocab(t))
	if err != nil {
		t.Fatalf("bert: %v", err)
	}

	var summary bertSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	if !reflect.DeepEqual(summary.Shape, []int{2, 22}) || summary.Layer != -3 || summary.Chunks != 1 {
		t.Errorf("summary = %+v", summary)
	}

	feats, err := safetensors.ReadFeatures(outPath)
	if err != nil {
		t.Fatalf("ReadFeatures: %v", err)
	}
	if feats.Width != 2 || len(feats.Phones) != 22 || feats.Layer != -3 {
		t.Fatalf("features = width %d, %d phones, layer %d", feats.Width, len(feats.Phones), feats.Layer)
	}
	if !reflect.DeepEqual(feats.Word2Ph, sampleWord2Ph) {
		t.Errorf("word2ph = %v", feats.Word2Ph)
	}

	// Row 0: [CLS] once, "bon" twice, "##jou" twice.
	if got := feats.Data[:5]; !reflect.DeepEqual(got, []float32{0, 1, 1, 2, 2}) {
		t.Errorf("row 0 prefix = %v", got)
	}
}

// fakeFeatures aligns each word to two phones and returns width-2 matrices
// whose values are the chunk number.
type fakeFeatures struct {
	calls int
	width int
}

func (f *fakeFeatures) G2P(s string, _ g2p.G2POptions) (g2p.Result, error) {
	n := len(strings.Fields(s))
	res := g2p.Result{Word2Ph: make([]int, n)}
	for i := range n {
		res.Word2Ph[i] = 2
		res.Phones = append(res.Phones, "a", "b")
		res.Tones = append(res.Tones, 0, 0)
	}
	return res, nil
}

func (f *fakeFeatures) BertFeature(_ context.Context, _ string, word2ph []int) (*bert.Matrix, error) {
	f.calls++
	width := f.width
	if width == 0 {
		width = 2
	}
	cols := 0
	for _, n := range word2ph {
		cols += n
	}
	m := &bert.Matrix{Rows: width, Cols: cols, Data: make([]float32, width*cols)}
	for i := range m.Data {
		m.Data[i] = float32(f.calls)
	}
	return m, nil
}

func TestExtractFeatures_JoinsChunks(t *testing.T) {
	r := &fakeFeatures{}

	feats, err := extractFeatures(context.Background(), r, []string{"Mwen la.", "...", "Li vini."})
	if err != nil {
		t.Fatalf("extractFeatures: %v", err)
	}

	if r.calls != 2 {
		t.Errorf("BertFeature calls = %d, want 2 (punctuation chunk skipped)", r.calls)
	}
	if feats.Text != "mwen la. li vini." {
		t.Errorf("text = %q", feats.Text)
	}
	if len(feats.Phones) != 8 || !reflect.DeepEqual(feats.Word2Ph, []int{2, 2, 2, 2}) {
		t.Errorf("phones %v word2ph %v", feats.Phones, feats.Word2Ph)
	}

	want := []float32{1, 1, 1, 1, 2, 2, 2, 2, 1, 1, 1, 1, 2, 2, 2, 2}
	if !reflect.DeepEqual(feats.Data, want) {
		t.Errorf("data = %v, want %v", feats.Data, want)
	}
}

func TestExtractFeatures_AllEmpty(t *testing.T) {
	_, err := extractFeatures(context.Background(), &fakeFeatures{}, []string{"...", "!"})
	if !errors.Is(err, text.ErrEmptyText) {
		t.Fatalf("error = %v, want ErrEmptyText", err)
	}
}

func TestBuildFeatureChunks(t *testing.T) {
	chunks, err := buildFeatureChunks("Mwen la. Li vini. Nou ale.", 10)
	if err != nil {
		t.Fatalf("buildFeatureChunks: %v", err)
	}
	if len(chunks) < 2 {
		t.Errorf("chunks = %q, want a split", chunks)
	}

	whole, err := buildFeatureChunks(" Mwen la. Li vini. ", 0)
	if err != nil || len(whole) != 1 || whole[0] != "Mwen la. Li vini." {
		t.Errorf("buildFeatureChunks(no limit) = %q, %v", whole, err)
	}

	if _, err := buildFeatureChunks("   ", 10); err == nil {
		t.Error("expected error for blank input")
	}
}

func TestHealthCmd_ProbesServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out, err := execute(t, "", "health", "--addr", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if strings.TrimSpace(out) != "ok" {
		t.Errorf("output = %q", out)
	}
}

func TestDoctorConfig_ValidatesTokenizer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.TokenizerPath = writeVocab(t)

	dcfg := doctorConfig(cfg, true)
	dcfg.ProbePhonemizer = nil

	var out strings.Builder
	if res := doctor.Run(dcfg, &out); res.Failed() {
		t.Fatalf("doctor failed: %v\n%s", res.Failures(), out.String())
	}

	bad := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(bad, []byte("hello\nworld\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := dcfg.ValidateTokenizer(bad); err == nil {
		t.Error("expected error for a vocab without [UNK]")
	}
}

func TestVerifyOptions_FromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BERT.Layer = -2
	cfg.BERT.OutputName = "last_hidden_state"
	cfg.G2P.Lowercase = true

	opts := verifyOptions(cfg)
	if opts.ModelPath != cfg.Paths.BertModelPath || opts.TokenizerPath != cfg.Paths.TokenizerPath {
		t.Errorf("paths = %q, %q", opts.ModelPath, opts.TokenizerPath)
	}
	if opts.Layer != -2 || !opts.Lowercase || opts.ONNX.OutputName != "last_hidden_state" {
		t.Errorf("opts = %+v", opts)
	}
}

func TestRunBench_CountsPhones(t *testing.T) {
	r := &fakeFeatures{}

	results, err := runBench(context.Background(), r, benchOptions{Text: "mwen la", Stage: stageBert, Runs: 3})
	if err != nil {
		t.Fatalf("runBench: %v", err)
	}

	if len(results) != 3 || !results[0].Cold || results[1].Cold {
		t.Fatalf("results = %+v", results)
	}
	if results[2].Phones != 4 || results[2].Index != 2 {
		t.Errorf("last run = %+v", results[2])
	}
	if r.calls != 3 {
		t.Errorf("BertFeature calls = %d, want 3", r.calls)
	}
}

func TestBenchCmd_G2PStageJSON(t *testing.T) {
	useTestFrontend(t)

	out, err := execute(t, "", "bench", "--text", "mwen gen dola", "--runs", "2", "--format", "json",
		"--paths-tokenizer-path", writeVocab(t))
	if err != nil {
		t.Fatalf("bench: %v", err)
	}

	var report struct {
		Runs []struct {
			Phones int `json:"phones"`
		} `json:"runs"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(report.Runs) != 2 || report.Runs[0].Phones == 0 {
		t.Errorf("runs = %+v", report.Runs)
	}
}

func TestBenchCmd_RejectsBadStage(t *testing.T) {
	if _, err := execute(t, "", "bench", "--text", "mwen", "--stage", "audio"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}
