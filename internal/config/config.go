// Package config handles configuration loading, validation, and management for kasiski.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the complete tool configuration.
type Config struct {
	// Analysis configuration for the key recovery pipeline.
	Analysis AnalysisConfig `toml:"analysis" json:"analysis" yaml:"analysis"`

	// History configuration for the run store.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// Server configuration for the HTTP analysis service.
	Server ServerConfig `toml:"server" json:"server" yaml:"server"`

	// Watch configuration for directory monitoring.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// AnalysisConfig holds key recovery settings.
type AnalysisConfig struct {
	// Language names a built-in frequency table: "english" or "portuguese".
	Language string `toml:"language" json:"language" yaml:"language"`

	// TablePath points at a custom frequency table file. When set it takes
	// precedence over Language.
	TablePath string `toml:"table_path" json:"table_path" yaml:"table_path"`

	// Threshold is the vote ratio a prime must exceed, in (0,1).
	Threshold float64 `toml:"threshold" json:"threshold" yaml:"threshold"`

	// MaxPrime bounds the prime table used to factor gaps.
	MaxPrime int `toml:"max_prime" json:"max_prime" yaml:"max_prime"`

	// Rounding converts average multiplicities to exponents: "floor" or "nearest".
	Rounding string `toml:"rounding" json:"rounding" yaml:"rounding"`

	// FoldAccents strips diacritics before analysis.
	FoldAccents bool `toml:"fold_accents" json:"fold_accents" yaml:"fold_accents"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	// Enabled records every analysis run.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// ServerConfig holds HTTP service settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `toml:"addr" json:"addr" yaml:"addr"`

	// AllowOrigins lists CORS origins. "*" allows all.
	AllowOrigins []string `toml:"allow_origins" json:"allow_origins" yaml:"allow_origins"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `toml:"max_body_bytes" json:"max_body_bytes" yaml:"max_body_bytes"`

	// ReadTimeoutSec bounds reading a request.
	ReadTimeoutSec int `toml:"read_timeout_sec" json:"read_timeout_sec" yaml:"read_timeout_sec"`

	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables rate limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit" yaml:"rate_limit"`

	// RateBurst is the number of requests a client may make at once.
	RateBurst int `toml:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
}

// WatchConfig holds directory watching settings.
type WatchConfig struct {
	// Paths is a list of directories to monitor for ciphertext files.
	Paths []string `toml:"paths" json:"paths" yaml:"paths"`

	// IncludePatterns are glob patterns for files to analyze.
	// If empty, all files are analyzed.
	IncludePatterns []string `toml:"include_patterns" json:"include_patterns" yaml:"include_patterns"`

	// DebounceMs is how long a file must stay unchanged before analysis.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	dataDir := PlatformDataDir()
	return &Config{
		Analysis: AnalysisConfig{
			Language:  "english",
			Threshold: 0.5,
			MaxPrime:  65535,
			Rounding:  "floor",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "history.db"),
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			AllowOrigins:   []string{"*"},
			MaxBodyBytes:   10 << 20,
			ReadTimeoutSec: 30,
			RateLimit:      20,
			RateBurst:      40,
		},
		Watch: WatchConfig{
			IncludePatterns: []string{"*.txt", "*.enc"},
			DebounceMs:      500,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "kasiski.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads the configuration at path. A missing file yields the defaults.
// Environment overrides are applied afterwards.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = DefaultConfig()
		} else {
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	// Determine format from extension
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config (unknown format): %w", err)
		}
	}
	return cfg, nil
}

// autoDetectAndParse tries TOML, then JSON, then YAML.
func autoDetectAndParse(data []byte, cfg *Config) error {
	if _, err := toml.Decode(string(data), cfg); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err == nil {
		return nil
	}
	return yaml.Unmarshal(data, cfg)
}

// ApplyEnvOverrides applies KASISKI_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("KASISKI_LANGUAGE"); v != "" {
		c.Analysis.Language = v
	}
	if v := os.Getenv("KASISKI_TABLE"); v != "" {
		c.Analysis.TablePath = v
	}
	if v := os.Getenv("KASISKI_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Analysis.Threshold = f
		}
	}
	if v := os.Getenv("KASISKI_MAX_PRIME"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.MaxPrime = n
		}
	}
	if v := os.Getenv("KASISKI_ROUNDING"); v != "" {
		c.Analysis.Rounding = v
	}
	if v := os.Getenv("KASISKI_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("KASISKI_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("KASISKI_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KASISKI_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dirs := []string{filepath.Dir(c.History.Path)}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Analysis: c.Analysis,
		History:  c.History,
		Server:   c.Server,
		Watch:    c.Watch,
		Logging:  c.Logging,
	}
	clone.Server.AllowOrigins = append([]string(nil), c.Server.AllowOrigins...)
	clone.Watch.Paths = append([]string(nil), c.Watch.Paths...)
	clone.Watch.IncludePatterns = append([]string(nil), c.Watch.IncludePatterns...)
	return clone
}

// Marshal encodes the configuration as "toml", "json" or "yaml".
func (c *Config) Marshal(format string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(c)
	case "toml", "":
		var buf strings.Builder
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return []byte(buf.String()), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}
}

// Save writes the configuration to path, choosing the format by extension.
// Unknown extensions are written as TOML.
func (c *Config) Save(path string) error {
	format := "toml"
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
		format = ext
	}
	data, err := c.Marshal(format)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
