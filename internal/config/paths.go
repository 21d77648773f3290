package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".chatkit"

// Paths holds resolved filesystem paths for chatkit data.
type Paths struct {
	Base   string // ~/.chatkit
	Config string // ~/.chatkit/config.yaml
	Data   string // ~/.chatkit/data
	Logs   string // ~/.chatkit/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If CHATKIT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("CHATKIT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DefaultStorePath returns the default SQLite path under the data dir.
func (p Paths) DefaultStorePath() string {
	return filepath.Join(p.Data, "chatkit.db")
}
