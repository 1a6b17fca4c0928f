package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidConfig is wrapped by validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() error { return ErrInvalidConfig }

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors
	errs = append(errs, validateAnalysis(&c.Analysis)...)
	errs = append(errs, validateHistory(&c.History)...)
	errs = append(errs, validateServer(&c.Server)...)
	errs = append(errs, validateWatch(&c.Watch)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateAnalysis(a *AnalysisConfig) ValidationErrors {
	var errs ValidationErrors

	if a.TablePath == "" {
		switch strings.ToLower(a.Language) {
		case "english", "en", "e", "portuguese", "pt", "p":
		default:
			errs = append(errs, ValidationError{
				Field:   "analysis.language",
				Message: fmt.Sprintf("unknown language: %q (valid: english, portuguese)", a.Language),
			})
		}
	}

	if a.Threshold <= 0 || a.Threshold >= 1 {
		errs = append(errs, *RangeError("analysis.threshold", "0 (exclusive)", "1 (exclusive)"))
	}

	if a.MaxPrime < 97 {
		errs = append(errs, ValidationError{
			Field:   "analysis.max_prime",
			Message: "max prime must be at least 97",
		})
	}

	switch a.Rounding {
	case "floor", "nearest":
	default:
		errs = append(errs, ValidationError{
			Field:   "analysis.rounding",
			Message: fmt.Sprintf("invalid rounding: %s (valid: floor, nearest)", a.Rounding),
		})
	}

	return errs
}

func validateHistory(h *HistoryConfig) ValidationErrors {
	var errs ValidationErrors
	if h.Enabled && h.Path == "" {
		errs = append(errs, *RequiredFieldError("history.path"))
	}
	return errs
}

func validateServer(s *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Addr == "" {
		errs = append(errs, *RequiredFieldError("server.addr"))
	}
	if s.MaxBodyBytes < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.max_body_bytes",
			Message: "max body size must be positive",
		})
	}
	if s.ReadTimeoutSec < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.read_timeout_sec",
			Message: "read timeout cannot be negative",
		})
	}
	if s.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit",
			Message: "rate limit cannot be negative",
		})
	}
	if s.RateLimit > 0 && s.RateBurst < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_burst",
			Message: "burst must be at least 1 when rate limiting is enabled",
		})
	}

	return errs
}

func validateWatch(w *WatchConfig) ValidationErrors {
	var errs ValidationErrors

	for i, pattern := range w.IncludePatterns {
		if !isValidGlobPattern(pattern) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("watch.include_patterns[%d]", i),
				Message: fmt.Sprintf("invalid glob pattern: %s", pattern),
			})
		}
	}

	if w.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "watch.debounce_ms",
			Message: "debounce interval cannot be negative",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output includes a file",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func isValidGlobPattern(pattern string) bool {
	if pattern == "" {
		return false
	}
	_, err := filepath.Match(pattern, "")
	return err == nil
}

// RequiredFieldError creates a validation error for a missing field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
