package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Server   ServerConfig  `mapstructure:"server"`
	G2P      G2PConfig     `mapstructure:"g2p"`
	BERT     BERTConfig    `mapstructure:"bert"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	// TokenizerPath is a WordPiece vocab.txt, a tokenizer.json or a
	// SentencePiece .model file.
	TokenizerPath string `mapstructure:"tokenizer_path"`
	BertModelPath string `mapstructure:"bert_model_path"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
	APIVersion     uint32 `mapstructure:"api_version"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	Workers         int           `mapstructure:"workers"`
	MaxTextBytes    int           `mapstructure:"max_text_bytes"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type G2PConfig struct {
	Language    string `mapstructure:"language"`
	PadStartEnd bool   `mapstructure:"pad_start_end"`
	// CacheSize bounds the phoneme cache in words; 0 disables it.
	CacheSize int  `mapstructure:"cache_size"`
	Lowercase bool `mapstructure:"lowercase"`
}

type BERTConfig struct {
	// Layer selects the hidden-state layer; negative values count from the end.
	Layer      int    `mapstructure:"layer"`
	OutputName string `mapstructure:"output_name"`
	Device     string `mapstructure:"device"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			TokenizerPath: "models/vocab.txt",
			BertModelPath: "models/bert.onnx",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTVersion:     "",
			APIVersion:     23,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			MaxTextBytes:    4096,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		G2P: G2PConfig{
			Language:    "HaitianCreole",
			PadStartEnd: true,
			CacheSize:   4096,
			Lowercase:   false,
		},
		BERT: BERTConfig{
			Layer:      -3,
			OutputName: "hidden_states",
			Device:     DeviceAuto,
		},
		LogLevel: "info",
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = []struct {
	flag string
	key  string
}{
	{"paths-tokenizer-path", "paths.tokenizer_path"},
	{"paths-bert-model-path", "paths.bert_model_path"},
	{"runtime-ort-library-path", "runtime.ort_library_path"},
	{"runtime-ort-version", "runtime.ort_version"},
	{"runtime-api-version", "runtime.api_version"},
	{"server-listen-addr", "server.listen_addr"},
	{"workers", "server.workers"},
	{"max-text-bytes", "server.max_text_bytes"},
	{"request-timeout", "server.request_timeout"},
	{"shutdown-timeout", "server.shutdown_timeout"},
	{"language", "g2p.language"},
	{"pad-start-end", "g2p.pad_start_end"},
	{"cache-size", "g2p.cache_size"},
	{"lowercase", "g2p.lowercase"},
	{"bert-layer", "bert.layer"},
	{"bert-output-name", "bert.output_name"},
	{"device", "bert.device"},
	{"log-level", "log_level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-tokenizer-path", defaults.Paths.TokenizerPath, "Path to tokenizer vocab.txt, tokenizer.json or sentencepiece .model")
	fs.String("paths-bert-model-path", defaults.Paths.BertModelPath, "Path to ONNX embedding model")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Uint32("runtime-api-version", defaults.Runtime.APIVersion, "ONNX Runtime C API version")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent requests")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Max request text size in bytes")
	fs.Duration("request-timeout", defaults.Server.RequestTimeout, "Per-request timeout")
	fs.Duration("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout")
	fs.String("language", defaults.G2P.Language, "goruut phonemizer language")
	fs.Bool("pad-start-end", defaults.G2P.PadStartEnd, "Surround g2p output with boundary phones")
	fs.Int("cache-size", defaults.G2P.CacheSize, "Phoneme cache capacity in words (0 disables)")
	fs.Bool("lowercase", defaults.G2P.Lowercase, "Lowercase and strip accents before WordPiece lookup")
	fs.Int("bert-layer", defaults.BERT.Layer, "Hidden-state layer to use (negative counts from the end)")
	fs.String("bert-output-name", defaults.BERT.OutputName, "ONNX output holding hidden states")
	fs.String("device", defaults.BERT.Device, "Inference device (auto|cpu)")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("KREYOLTTS")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "KREYOLTTS_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("kreyoltts")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	device, err := NormalizeDevice(c.BERT.Device)
	if err != nil {
		return err
	}
	c.BERT.Device = device

	if c.G2P.CacheSize < 0 {
		return fmt.Errorf("g2p.cache_size must be >= 0, got %d", c.G2P.CacheSize)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be >= 1, got %d", c.Server.Workers)
	}
	if c.Server.MaxTextBytes < 1 {
		return fmt.Errorf("server.max_text_bytes must be >= 1, got %d", c.Server.MaxTextBytes)
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.tokenizer_path", c.Paths.TokenizerPath)
	v.SetDefault("paths.bert_model_path", c.Paths.BertModelPath)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.api_version", c.Runtime.APIVersion)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("g2p.language", c.G2P.Language)
	v.SetDefault("g2p.pad_start_end", c.G2P.PadStartEnd)
	v.SetDefault("g2p.cache_size", c.G2P.CacheSize)
	v.SetDefault("g2p.lowercase", c.G2P.Lowercase)
	v.SetDefault("bert.layer", c.BERT.Layer)
	v.SetDefault("bert.output_name", c.BERT.OutputName)
	v.SetDefault("bert.device", c.BERT.Device)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds each registered flag to its config key. An unchanged flag
// only supplies a default, so config files and env vars still apply.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", fk.flag, err)
		}
	}

	// --ort-lib wins over --runtime-ort-library-path when both are set.
	if f := fs.Lookup("ort-lib"); f != nil && f.Changed {
		v.Set("runtime.ort_library_path", f.Value.String())
	}

	return nil
}
