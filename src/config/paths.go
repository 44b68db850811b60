package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "dataagent"

// UserConfigPath is the per-user config file under the XDG config dir.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.json")
}

// ProjectConfigPath is the config file in the working directory.
func ProjectConfigPath() string {
	return appName + ".json"
}

// GetDefaultStatePath returns the directory for the application and scratch databases.
func GetDefaultStatePath() string {
	return filepath.Join(xdg.StateHome, appName)
}
