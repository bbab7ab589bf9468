package settings

import (
	"os"
	"path/filepath"

	"github.com/mcphub/mcphub/pkg/registry"
)

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

// Dir returns the mcphub state directory ($MCPHUB_HOME or ~/.mcphub).
func Dir() string {
	if v := os.Getenv("MCPHUB_HOME"); v != "" {
		return v
	}
	return filepath.Join(homeDir(), ".mcphub")
}

// File returns the path to settings.toml.
func File() string {
	return filepath.Join(Dir(), "settings.toml")
}

// DefaultLogFile is where the native host logs when launched by a browser.
func DefaultLogFile() string {
	return filepath.Join(Dir(), "logs", "host.log")
}

// DefaultServersDir holds git checkouts of installed servers.
func DefaultServersDir() string {
	return filepath.Join(Dir(), "servers")
}

// DefaultRegistryCache is the cached registry document.
func DefaultRegistryCache() string {
	return filepath.Join(Dir(), registry.CacheFileName)
}
