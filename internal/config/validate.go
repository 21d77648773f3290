package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.APIBase == "" {
		issues = append(issues, ValidationIssue{
			Path:    "apiBase",
			Message: "apiBase is required",
		})
	} else if u, err := url.Parse(cfg.APIBase); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		issues = append(issues, ValidationIssue{
			Path:    "apiBase",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.APIBase),
		})
	}

	if cfg.Chat.HistoryPageSize < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "chat.historyPageSize",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Chat.HistoryPageSize),
		})
	}
	if cfg.Chat.StreamTimeoutMS < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "chat.streamTimeoutMs",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Chat.StreamTimeoutMS),
		})
	}
	if cfg.Transport.NetworkTimeoutMS < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "transport.networkTimeoutMs",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Transport.NetworkTimeoutMS),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
