// Package doctor provides environment preflight checks for kreyoltts.
package doctor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/example/go-kreyol-tts/internal/onnx"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// RuntimeFunc locates the ONNX Runtime shared library.
type RuntimeFunc func() (onnx.RuntimeInfo, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// DetectRuntime resolves the ONNX Runtime library.
	DetectRuntime RuntimeFunc
	// APIVersion is the ORT C API version the runner will request. A runtime
	// whose detected version is 1.x with x below it fails.
	APIVersion uint32
	// SkipRuntime skips the ONNX Runtime and model checks (g2p-only use).
	SkipRuntime bool

	TokenizerPath string
	// ValidateTokenizer optionally loads the tokenizer after the file check.
	ValidateTokenizer func(path string) error

	BertModelPath string

	// ProbePhonemizer optionally phonemizes a sample word.
	ProbePhonemizer func() (string, error)
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

	// ---- tokenizer --------------------------------------------------------
	if err := checkFile(cfg.TokenizerPath); err != nil {
		res.fail(fmt.Sprintf("tokenizer %q: %v", cfg.TokenizerPath, err))
		fmt.Fprintf(w, "%s tokenizer %s: %v\n", FailMark, cfg.TokenizerPath, err)
	} else if cfg.ValidateTokenizer != nil {
		if err := cfg.ValidateTokenizer(cfg.TokenizerPath); err != nil {
			res.fail(fmt.Sprintf("tokenizer %q: %v", cfg.TokenizerPath, err))
			fmt.Fprintf(w, "%s tokenizer %s: invalid (%v)\n", FailMark, cfg.TokenizerPath, err)
		} else {
			fmt.Fprintf(w, "%s tokenizer: %s\n", PassMark, cfg.TokenizerPath)
		}
	} else {
		fmt.Fprintf(w, "%s tokenizer: %s\n", PassMark, cfg.TokenizerPath)
	}

	// ---- phonemizer -------------------------------------------------------
	if cfg.ProbePhonemizer != nil {
		ipa, err := cfg.ProbePhonemizer()
		if err != nil {
			res.fail(fmt.Sprintf("phonemizer: %v", err))
			fmt.Fprintf(w, "%s phonemizer: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s phonemizer: %s\n", PassMark, ipa)
		}
	}

	// ---- ONNX Runtime -----------------------------------------------------
	if cfg.SkipRuntime {
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
		fmt.Fprintf(w, "%s bert model: skipped\n", PassMark)
		return res
	}

	if cfg.DetectRuntime == nil {
		res.fail("onnx runtime: no detector configured")
		fmt.Fprintf(w, "%s onnx runtime: no detector configured\n", FailMark)
	} else {
		info, err := cfg.DetectRuntime()
		switch {
		case err != nil:
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		case info.Version == "":
			fmt.Fprintf(w, "%s onnx runtime: %s (version unknown)\n", PassMark, info.LibraryPath)
		default:
			if verErr := checkORTVersion(info.Version, cfg.APIVersion); verErr != nil {
				res.fail(fmt.Sprintf("onnx runtime version: %v", verErr))
				fmt.Fprintf(w, "%s onnx runtime %s: %v\n", FailMark, info.Version, verErr)
			} else {
				fmt.Fprintf(w, "%s onnx runtime: %s (%s)\n", PassMark, info.LibraryPath, info.Version)
			}
		}
	}

	// ---- bert model -------------------------------------------------------
	if err := checkFile(cfg.BertModelPath); err != nil {
		res.fail(fmt.Sprintf("bert model %q: %v", cfg.BertModelPath, err))
		fmt.Fprintf(w, "%s bert model %s: %v\n", FailMark, cfg.BertModelPath, err)
	} else {
		fmt.Fprintf(w, "%s bert model: %s\n", PassMark, cfg.BertModelPath)
	}

	return res
}

func checkFile(path string) error {
	if path == "" {
		return fmt.Errorf("path not configured")
	}
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("not found")
	}
	if fi.IsDir() {
		return fmt.Errorf("is a directory")
	}
	return nil
}

// checkORTVersion returns an error if ver cannot serve the C API version
// api. ORT 1.x ships C API version x.
func checkORTVersion(ver string, api uint32) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}
	if api > 0 && uint32(minor) < api {
		return fmt.Errorf("requires ONNX Runtime >=1.%d for API version %d, got 1.%d", api, api, minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
