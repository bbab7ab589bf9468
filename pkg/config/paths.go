package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// FileName is the Claude Desktop config file name.
const FileName = "claude_desktop_config.json"

// platformPaths maps GOOS to the Claude Desktop config location.
var platformPaths = map[string]string{
	"darwin":  "~/Library/Application Support/Claude/" + FileName,
	"windows": "%APPDATA%\\Claude\\" + FileName,
	"linux":   "~/.config/Claude/" + FileName,
}

// DefaultPath returns the Claude Desktop config path for the current OS.
// Unlisted platforms use the linux layout.
func DefaultPath() (string, error) {
	return PathFor(runtime.GOOS)
}

// PathFor returns the expanded config path for goos.
func PathFor(goos string) (string, error) {
	raw, ok := platformPaths[goos]
	if !ok {
		raw = platformPaths["linux"]
	}
	return expandPath(raw)
}

// expandPath resolves a leading ~ and %VAR% references.
func expandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}

	for {
		start := strings.Index(p, "%")
		if start < 0 {
			break
		}
		end := strings.Index(p[start+1:], "%")
		if end < 0 {
			break
		}
		name := p[start+1 : start+1+end]
		value := os.Getenv(name)
		if value == "" {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		p = p[:start] + value + p[start+2+end:]
	}

	return filepath.FromSlash(strings.ReplaceAll(p, "\\", string(filepath.Separator))), nil
}

// fileExists reports whether path exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
