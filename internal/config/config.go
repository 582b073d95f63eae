// Package config loads the project's TOML configuration file. The key
// list is closed: any key not in the recognized set is a fatal startup
// error. Settings are organized one struct per concern (logging,
// embedder, search, fusion) and decoded from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/hsearch/hsearch/internal/hserr"
	"github.com/hsearch/hsearch/internal/logging"
)

// ConfigFileName is the project config file cmd/hsearch and
// cmd/hsearchd look for at the project root.
const ConfigFileName = "hsearch.toml"

// EmbedderConfig holds the embedder.* keys.
type EmbedderConfig struct {
	ModelPath                  string `toml:"model_path"`
	MaxResidentBytes           int64  `toml:"max_resident_bytes"`
	AllowDeterministicFallback bool   `toml:"allow_deterministic_fallback"`
	// QueryPrefix/PassagePrefix are optional embedder role prefixes,
	// empty by default.
	QueryPrefix   string `toml:"query_prefix"`
	PassagePrefix string `toml:"passage_prefix"`
}

// SearchConfig holds the search.* keys.
type SearchConfig struct {
	LimitDefault        int `toml:"limit_default"`
	PerBackendTimeoutMs int `toml:"per_backend_timeout_ms"`
}

// FusionWeights holds the fusion.weights.* keys.
type FusionWeights struct {
	Text   float64 `toml:"text"`
	Vector float64 `toml:"vector"`
	Symbol float64 `toml:"symbol"`
}

// FusionConfig holds the fusion.* keys.
type FusionConfig struct {
	Weights FusionWeights `toml:"weights"`
}

// LoggingConfig holds the logging.* keys.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Config is the top-level decoded configuration.
type Config struct {
	DataDir          string `toml:"data_dir"`
	IgnoreFile       string `toml:"ignore_file"`
	MaxFileSizeBytes int64  `toml:"max_file_size_bytes"`
	MaxChunkLines    int    `toml:"max_chunk_lines"`
	Workers          int    `toml:"workers"`

	Embedder EmbedderConfig `toml:"embedder"`
	Search   SearchConfig   `toml:"search"`
	Fusion   FusionConfig   `toml:"fusion"`
	Logging  LoggingConfig  `toml:"logging"`
}

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	return Config{
		DataDir:          ".hsearch",
		IgnoreFile:       ".gitignore",
		MaxFileSizeBytes: 10 * 1024 * 1024,
		MaxChunkLines:    150,
		Workers:          4,
		Embedder: EmbedderConfig{
			MaxResidentBytes:           64 * 1024 * 1024,
			AllowDeterministicFallback: false,
		},
		Search: SearchConfig{
			LimitDefault:        10,
			PerBackendTimeoutMs: 400,
		},
		Fusion: FusionConfig{
			Weights: FusionWeights{Text: 0.25, Vector: 0.40, Symbol: 0.35},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// recognizedKeys is the closed list of accepted dotted config key
// paths. Any key present in the decoded document but absent from this
// set is a fatal Config error.
var recognizedKeys = map[string]bool{
	"data_dir":                              true,
	"ignore_file":                           true,
	"max_file_size_bytes":                   true,
	"max_chunk_lines":                       true,
	"workers":                               true,
	"embedder.model_path":                   true,
	"embedder.max_resident_bytes":           true,
	"embedder.allow_deterministic_fallback": true,
	"embedder.query_prefix":                 true,
	"embedder.passage_prefix":               true,
	"search.limit_default":                  true,
	"search.per_backend_timeout_ms":         true,
	"fusion.weights.text":                   true,
	"fusion.weights.vector":                 true,
	"fusion.weights.symbol":                 true,
	"logging.level":                         true,
}

var validLogLevels = map[string]bool{
	"error": true, "warn": true, "info": true, "debug": true,
}

// Load reads and validates a TOML config file at path, starting from
// Default() and overlaying recognized keys present in the file. Any
// unrecognized key anywhere in the document is a fatal *hserr.Error of
// Kind Config: unknown keys are a fatal error at startup.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, hserr.Wrap(hserr.Config, "config file not found", err).WithPath(path)
		}
		return cfg, hserr.Wrap(hserr.Io, "reading config file", err).WithPath(path)
	}

	if err := validateKeys(data, path); err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, hserr.Wrap(hserr.Config, "parsing TOML config", err).WithPath(path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// validateKeys decodes data into a generic map and rejects any dotted
// key path not present in recognizedKeys.
func validateKeys(data []byte, path string) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return hserr.Wrap(hserr.Config, "parsing TOML config", err).WithPath(path)
	}

	var walk func(prefix string, v any) error
	walk = func(prefix string, v any) error {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		for k, child := range m {
			full := k
			if prefix != "" {
				full = prefix + "." + k
			}
			if childMap, isMap := child.(map[string]any); isMap {
				if err := walk(full, childMap); err != nil {
					return err
				}
				continue
			}
			if !recognizedKeys[full] {
				return hserr.New(hserr.Config, fmt.Sprintf("unrecognized configuration key %q", full)).WithPath(path)
			}
		}
		return nil
	}

	return walk("", raw)
}

// Validate checks cross-field invariants that plain decoding cannot
// express (closed enums, positivity).
func (c Config) Validate() error {
	if !validLogLevels[c.Logging.Level] {
		return hserr.New(hserr.Config, fmt.Sprintf("logging.level must be one of error|warn|info|debug, got %q", c.Logging.Level))
	}
	if c.MaxChunkLines <= 0 {
		return hserr.New(hserr.Config, "max_chunk_lines must be positive")
	}
	if c.Workers <= 0 {
		return hserr.New(hserr.Config, "workers must be positive")
	}
	if c.Search.PerBackendTimeoutMs <= 0 {
		return hserr.New(hserr.Config, "search.per_backend_timeout_ms must be positive")
	}
	w := c.Fusion.Weights
	if w.Text < 0 || w.Vector < 0 || w.Symbol < 0 {
		return hserr.New(hserr.Config, "fusion.weights.* must be non-negative")
	}
	return nil
}

// LogLevel returns the configured logging.Level as a logging.Level.
func (c Config) LogLevel() logging.Level {
	return logging.Level(c.Logging.Level)
}

// FindProjectRoot walks up from startDir looking for hsearch.toml or a
// .git directory. Falls back to the absolute form of startDir if
// neither marker is found before reaching the filesystem root.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dir := absDir
	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return dir, nil
		}
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

// LoadFromRoot loads ConfigFileName from rootDir if present, otherwise
// returns Default(). Unlike Load, a missing config file at the project
// root is not an error — hsearch.toml is optional.
func LoadFromRoot(rootDir string) (Config, error) {
	path := filepath.Join(rootDir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, hserr.Wrap(hserr.Io, "stat config file", err).WithPath(path)
	}
	return Load(path)
}
