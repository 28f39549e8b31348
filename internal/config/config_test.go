package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their
// defaults and parses args into it.
func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	return &fakeBinder{fs: fs}
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Paths.TokenizerPath != "models/vocab.txt" {
		t.Errorf("TokenizerPath = %q; want %q", cfg.Paths.TokenizerPath, "models/vocab.txt")
	}

	if cfg.Paths.BertModelPath != "models/bert.onnx" {
		t.Errorf("BertModelPath = %q; want %q", cfg.Paths.BertModelPath, "models/bert.onnx")
	}

	if cfg.Runtime.APIVersion != 23 {
		t.Errorf("Runtime.APIVersion = %d; want 23", cfg.Runtime.APIVersion)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":8080")
	}

	if cfg.Server.Workers != 2 {
		t.Errorf("Server.Workers = %d; want 2", cfg.Server.Workers)
	}

	if cfg.Server.RequestTimeout != 60*time.Second {
		t.Errorf("Server.RequestTimeout = %v; want 60s", cfg.Server.RequestTimeout)
	}

	if cfg.G2P.Language != "HaitianCreole" {
		t.Errorf("G2P.Language = %q; want %q", cfg.G2P.Language, "HaitianCreole")
	}

	if !cfg.G2P.PadStartEnd {
		t.Error("G2P.PadStartEnd = false; want true")
	}

	if cfg.BERT.Layer != -3 {
		t.Errorf("BERT.Layer = %d; want -3", cfg.BERT.Layer)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

// --- NormalizeDevice ---

func TestNormalizeDevice(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty resolves to cpu", "", "cpu", false},
		{"auto resolves to cpu", "auto", "cpu", false},
		{"cpu", "cpu", "cpu", false},
		{"mixed case with spaces", "  CPU ", "cpu", false},
		{"cuda unsupported", "cuda", "", true},
		{"cuda index unsupported", "cuda:0", "", true},
		{"mps unsupported", "mps", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDevice(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedDevice) {
					t.Errorf("NormalizeDevice(%q) error = %v; want ErrUnsupportedDevice", tt.input, err)
				}

				return
			}

			if err != nil {
				t.Errorf("NormalizeDevice(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("NormalizeDevice(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"paths-tokenizer-path", "models/vocab.txt"},
		{"paths-bert-model-path", "models/bert.onnx"},
		{"server-listen-addr", ":8080"},
		{"bert-layer", "-3"},
		{"device", "auto"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}

	for _, fk := range flagKeys {
		if fs.Lookup(fk.flag) == nil {
			t.Errorf("flagKeys entry %q has no registered flag", fk.flag)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.TokenizerPath != defaults.Paths.TokenizerPath {
		t.Errorf("TokenizerPath = %q; want %q", cfg.Paths.TokenizerPath, defaults.Paths.TokenizerPath)
	}

	if cfg.Server.Workers != defaults.Server.Workers {
		t.Errorf("Server.Workers = %d; want %d", cfg.Server.Workers, defaults.Server.Workers)
	}

	if cfg.BERT.Device != DeviceCPU {
		t.Errorf("BERT.Device = %q; want %q", cfg.BERT.Device, DeviceCPU)
	}

	if cfg.G2P.CacheSize != defaults.G2P.CacheSize {
		t.Errorf("G2P.CacheSize = %d; want %d", cfg.G2P.CacheSize, defaults.G2P.CacheSize)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(t, defaults,
		"--workers=8",
		"--log-level=debug",
		"--bert-layer=-1",
		"--pad-start-end=false",
		"--request-timeout=5s",
		"--runtime-api-version=22",
	)

	cfg, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Workers != 8 {
		t.Errorf("Server.Workers = %d; want 8", cfg.Server.Workers)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}

	if cfg.BERT.Layer != -1 {
		t.Errorf("BERT.Layer = %d; want -1", cfg.BERT.Layer)
	}

	if cfg.G2P.PadStartEnd {
		t.Error("G2P.PadStartEnd = true; want false")
	}

	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("Server.RequestTimeout = %v; want 5s", cfg.Server.RequestTimeout)
	}

	if cfg.Runtime.APIVersion != 22 {
		t.Errorf("Runtime.APIVersion = %d; want 22", cfg.Runtime.APIVersion)
	}
}

func TestLoad_ORTLibAlias(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(t, defaults, "--ort-lib=/opt/ort/libonnxruntime.so")

	cfg, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Runtime.ORTLibraryPath != "/opt/ort/libonnxruntime.so" {
		t.Errorf("ORTLibraryPath = %q; want alias value", cfg.Runtime.ORTLibraryPath)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("KREYOLTTS_LOG_LEVEL", "warn")
	t.Setenv("KREYOLTTS_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("KREYOLTTS_G2P_CACHE_SIZE", "0")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}

	if cfg.G2P.CacheSize != 0 {
		t.Errorf("G2P.CacheSize = %d; want 0", cfg.G2P.CacheSize)
	}
}

func TestLoad_ORTLibEnv(t *testing.T) {
	t.Setenv("KREYOLTTS_ORT_LIB", "/env/libonnxruntime.so")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Runtime.ORTLibraryPath != "/env/libonnxruntime.so" {
		t.Errorf("ORTLibraryPath = %q; want env value", cfg.Runtime.ORTLibraryPath)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "kreyoltts.yaml")

	content := `
log_level: error
server:
  workers: 16
  listen_addr: ":7777"
g2p:
  language: French
bert:
  layer: -2
`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Flags are registered but unset, so file values must win over flag defaults.
	defaults := DefaultConfig()
	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Server.Workers != 16 {
		t.Errorf("Server.Workers = %d; want 16", cfg.Server.Workers)
	}

	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":7777")
	}

	if cfg.G2P.Language != "French" {
		t.Errorf("G2P.Language = %q; want %q", cfg.G2P.Language, "French")
	}

	if cfg.BERT.Layer != -2 {
		t.Errorf("BERT.Layer = %d; want -2", cfg.BERT.Layer)
	}
}

func TestLoad_FlagBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "kreyoltts.yaml")

	if err := os.WriteFile(cfgFile, []byte("server:\n  workers: 16\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()
	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults, "--workers=3"),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Workers != 3 {
		t.Errorf("Server.Workers = %d; want 3", cfg.Server.Workers)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/kreyoltts.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestLoad_RejectsUnsupportedDevice(t *testing.T) {
	defaults := DefaultConfig()

	_, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults, "--device=cuda"),
		Defaults: defaults,
	})
	if !errors.Is(err, ErrUnsupportedDevice) {
		t.Fatalf("Load() error = %v; want ErrUnsupportedDevice", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative cache size", func(c *Config) { c.G2P.CacheSize = -1 }},
		{"zero workers", func(c *Config) { c.Server.Workers = 0 }},
		{"zero max text bytes", func(c *Config) { c.Server.MaxTextBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil; want error")
			}
		})
	}
}
