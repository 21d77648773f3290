package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Chat: ChatConfig{
			HistoryPageSize: 20,
			StreamTimeoutMS: 60000,
		},
		Transport: TransportConfig{
			PreferSecure:     true,
			NetworkTimeoutMS: 10000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
