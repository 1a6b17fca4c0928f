package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Analysis.Language != "english" {
		t.Errorf("expected language english, got %s", cfg.Analysis.Language)
	}
	if cfg.Analysis.Threshold != 0.5 {
		t.Errorf("expected threshold 0.5, got %v", cfg.Analysis.Threshold)
	}
	if cfg.Analysis.MaxPrime != 65535 {
		t.Errorf("expected max prime 65535, got %d", cfg.Analysis.MaxPrime)
	}
	if cfg.Analysis.Rounding != "floor" {
		t.Errorf("expected floor rounding, got %s", cfg.Analysis.Rounding)
	}
	if !strings.Contains(cfg.History.Path, "kasiski") {
		t.Errorf("history path should contain kasiski: %s", cfg.History.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, "kasiski") {
		t.Errorf("config path should contain kasiski: %s", path)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.Threshold != 0.5 {
		t.Errorf("expected default threshold, got %v", cfg.Analysis.Threshold)
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `
[analysis]
language = "portuguese"
threshold = 0.4
rounding = "nearest"

[watch]
paths = ["/tmp/inbox"]
`,
		},
		{
			name:    "json",
			file:    "config.json",
			content: `{"analysis": {"language": "portuguese", "threshold": 0.4, "rounding": "nearest"}, "watch": {"paths": ["/tmp/inbox"]}}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
analysis:
  language: portuguese
  threshold: 0.4
  rounding: nearest
watch:
  paths: [/tmp/inbox]
`,
		},
		{
			name: "unknown extension",
			file: "kasiski.conf",
			content: `
[analysis]
language = "portuguese"
threshold = 0.4
rounding = "nearest"

[watch]
paths = ["/tmp/inbox"]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("write config: %v", err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Analysis.Language != "portuguese" {
				t.Errorf("expected portuguese, got %s", cfg.Analysis.Language)
			}
			if cfg.Analysis.Threshold != 0.4 {
				t.Errorf("expected threshold 0.4, got %v", cfg.Analysis.Threshold)
			}
			if cfg.Analysis.Rounding != "nearest" {
				t.Errorf("expected nearest, got %s", cfg.Analysis.Rounding)
			}
			// Unset fields keep their defaults.
			if cfg.Analysis.MaxPrime != 65535 {
				t.Errorf("expected default max prime, got %d", cfg.Analysis.MaxPrime)
			}
			if len(cfg.Watch.Paths) != 1 || cfg.Watch.Paths[0] != "/tmp/inbox" {
				t.Errorf("unexpected watch paths: %v", cfg.Watch.Paths)
			}
		})
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[analysis\nlanguage ="), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed TOML")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("KASISKI_LANGUAGE", "pt")
	t.Setenv("KASISKI_THRESHOLD", "0.6")
	t.Setenv("KASISKI_MAX_PRIME", "1000")
	t.Setenv("KASISKI_ROUNDING", "nearest")
	t.Setenv("KASISKI_HISTORY_PATH", "/tmp/h.db")
	t.Setenv("KASISKI_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Analysis.Language != "pt" {
		t.Errorf("language override not applied: %s", cfg.Analysis.Language)
	}
	if cfg.Analysis.Threshold != 0.6 {
		t.Errorf("threshold override not applied: %v", cfg.Analysis.Threshold)
	}
	if cfg.Analysis.MaxPrime != 1000 {
		t.Errorf("max prime override not applied: %d", cfg.Analysis.MaxPrime)
	}
	if cfg.Analysis.Rounding != "nearest" {
		t.Errorf("rounding override not applied: %s", cfg.Analysis.Rounding)
	}
	if cfg.History.Path != "/tmp/h.db" {
		t.Errorf("history path override not applied: %s", cfg.History.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level override not applied: %s", cfg.Logging.Level)
	}
}

func TestApplyEnvOverridesIgnoresGarbage(t *testing.T) {
	t.Setenv("KASISKI_THRESHOLD", "half")
	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	if cfg.Analysis.Threshold != 0.5 {
		t.Errorf("unparseable threshold should be ignored, got %v", cfg.Analysis.Threshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown language", func(c *Config) { c.Analysis.Language = "latin" }, "analysis.language"},
		{"threshold zero", func(c *Config) { c.Analysis.Threshold = 0 }, "analysis.threshold"},
		{"threshold one", func(c *Config) { c.Analysis.Threshold = 1 }, "analysis.threshold"},
		{"small prime table", func(c *Config) { c.Analysis.MaxPrime = 10 }, "analysis.max_prime"},
		{"bad rounding", func(c *Config) { c.Analysis.Rounding = "ceil" }, "analysis.rounding"},
		{"history without path", func(c *Config) { c.History.Path = "" }, "history.path"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, "server.rate_limit"},
		{"rate limit without burst", func(c *Config) { c.Server.RateBurst = 0 }, "server.rate_burst"},
		{"bad glob", func(c *Config) { c.Watch.IncludePatterns = []string{"[a-"} }, "watch.include_patterns[0]"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"file without path", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }, "logging.file_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			found := false
			for _, v := range verrs {
				if v.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestValidateCustomTableSkipsLanguage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.Language = ""
	cfg.Analysis.TablePath = "/tmp/table.json"
	if err := cfg.Validate(); err != nil {
		t.Errorf("custom table should not need a language: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, ext := range SupportedConfigFormats() {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "config"+ext)
			cfg := DefaultConfig()
			cfg.Analysis.Language = "portuguese"
			cfg.Watch.Paths = []string{"/srv/cipher"}

			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Analysis.Language != "portuguese" {
				t.Errorf("language lost in round trip: %s", loaded.Analysis.Language)
			}
			if len(loaded.Watch.Paths) != 1 {
				t.Errorf("watch paths lost in round trip: %v", loaded.Watch.Paths)
			}
		})
	}
}

func TestMarshal(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		format string
		want   string
	}{
		{"toml", "[analysis]"},
		{".json", `"analysis": {`},
		{"yaml", "analysis:"},
	}
	for _, tt := range tests {
		data, err := cfg.Marshal(tt.format)
		if err != nil {
			t.Fatalf("Marshal(%q) failed: %v", tt.format, err)
		}
		if !strings.Contains(string(data), tt.want) {
			t.Errorf("Marshal(%q) missing %q:\n%s", tt.format, tt.want, data)
		}
	}

	if _, err := cfg.Marshal("ini"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created {
		t.Error("expected config to be created")
	}
	if cfg.Analysis.Language != "english" {
		t.Errorf("unexpected language: %s", cfg.Analysis.Language)
	}

	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("expected existing config to be loaded")
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Paths = []string{"/a"}
	clone := cfg.Clone()
	clone.Watch.Paths[0] = "/b"
	clone.Server.AllowOrigins[0] = "https://example.com"

	if cfg.Watch.Paths[0] != "/a" {
		t.Error("clone shares watch paths with original")
	}
	if cfg.Server.AllowOrigins[0] != "*" {
		t.Error("clone shares origins with original")
	}
}

func TestMerge(t *testing.T) {
	dst := DefaultConfig()
	src := &Config{
		Analysis: AnalysisConfig{Language: "portuguese", FoldAccents: true},
		Watch:    WatchConfig{DebounceMs: 50},
	}

	merged := Merge(dst, src)
	if merged.Analysis.Language != "portuguese" {
		t.Errorf("language not merged: %s", merged.Analysis.Language)
	}
	if !merged.Analysis.FoldAccents {
		t.Error("fold accents not merged")
	}
	if merged.Analysis.Threshold != 0.5 {
		t.Errorf("threshold should keep default, got %v", merged.Analysis.Threshold)
	}
	if merged.Watch.DebounceMs != 50 {
		t.Errorf("debounce not merged: %d", merged.Watch.DebounceMs)
	}
	if dst.Analysis.Language != "english" {
		t.Error("Merge modified dst")
	}
}

func TestLoaderWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	write := func(lang string) {
		content := "[analysis]\nlanguage = \"" + lang + "\"\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write("english")

	loader := NewLoader(path)
	defer loader.Close()
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan string, 4)
	loader.OnChange(func(old, new *Config) {
		changed <- old.Analysis.Language + "->" + new.Analysis.Language
	})
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	write("portuguese")

	select {
	case got := <-changed:
		if got != "english->portuguese" {
			t.Errorf("unexpected change: %s", got)
		}
	case err := <-loader.Errors():
		t.Fatalf("reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if loader.Config().Analysis.Language != "portuguese" {
		t.Errorf("loader config not updated: %s", loader.Config().Analysis.Language)
	}
}

func TestLoaderRejectsInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[analysis]\nthreshold = 2.0\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("expected validation failure")
	}
}
