package config

// Config is the root configuration for chatkit.
type Config struct {
	// APIBase is the platform REST base URL, e.g. https://api.example.com.
	APIBase string `yaml:"apiBase,omitempty"`
	// PlatformAPIKey authenticates all platform calls. Supports ${ENV_VAR}.
	PlatformAPIKey string `yaml:"platformApiKey,omitempty"`

	Chat      ChatConfig      `yaml:"chat,omitempty"`
	Transport TransportConfig `yaml:"transport,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Visitor   VisitorConfig   `yaml:"visitor,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ChatConfig controls session engine behavior.
type ChatConfig struct {
	HistoryPageSize int    `yaml:"historyPageSize,omitempty"` // default 20
	StreamTimeoutMS int    `yaml:"streamTimeoutMs,omitempty"` // default 60000
	WelcomeMessage  string `yaml:"welcomeMessage,omitempty"`
}

// TransportConfig controls the messaging backend connection.
type TransportConfig struct {
	// PreferSecure selects the TLS-specific route fields when the generic
	// ones are missing, mirroring a secure page context.
	PreferSecure bool `yaml:"preferSecure,omitempty"`
	// NetworkTimeoutMS bounds route resolution and other network calls.
	NetworkTimeoutMS int `yaml:"networkTimeoutMs,omitempty"` // default 10000
}

// StoreConfig controls the local visitor-session cache.
type StoreConfig struct {
	// Path is the SQLite database path; ":memory:" for ephemeral sessions.
	Path string `yaml:"path,omitempty"`
}

// VisitorConfig carries best-effort client context supplied by the hosting
// surface, sent with visitor registration.
type VisitorConfig struct {
	UserAgent string `yaml:"userAgent,omitempty"`
	Referrer  string `yaml:"referrer,omitempty"`
	PageURL   string `yaml:"pageUrl,omitempty"`
	Timezone  string `yaml:"timezone,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File  string `yaml:"file,omitempty"`
}
