package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MCPHUB_HOME", "/tmp/mcphub-home")

	s, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"npm"}, s.Installer.NPM)
	assert.Equal(t, 10*time.Minute, s.Installer.Timeout.Duration)
	assert.Equal(t, 5*time.Minute, s.Client.CallTimeout.Duration)
	assert.Equal(t, "/tmp/mcphub-home/logs/host.log", s.Log.File)
	assert.Equal(t, "/tmp/mcphub-home/servers", s.Installer.ServersDir)
	assert.Equal(t, "/tmp/mcphub-home/registry_cache.yaml", s.Registry.CacheFile)
}

func TestLoadFrom_File(t *testing.T) {
	path := writeSettings(t, `
config_path = "/etc/claude.json"

[log]
level = "debug"

[installer]
npm = ["pnpm"]
timeout = "90s"

[client]
serialized_calls = true

[api]
addr = "127.0.0.1:4000"
allowed_origins = ["chrome-extension://abc"]
`)

	s, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/claude.json", s.ConfigPath)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, []string{"pnpm"}, s.Installer.NPM)
	assert.Equal(t, []string{"pip"}, s.Installer.Pip, "unset keys keep defaults")
	assert.Equal(t, 90*time.Second, s.Installer.Timeout.Duration)
	assert.True(t, s.Client.SerializedCalls)
	assert.Equal(t, "127.0.0.1:4000", s.API.Addr)
	assert.Equal(t, []string{"chrome-extension://abc"}, s.API.AllowedOrigins)
}

func TestLoadFrom_UnknownKey(t *testing.T) {
	path := writeSettings(t, "[log]\nlevle = \"debug\"\n")

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.levle")
}

func TestLoadFrom_BadDuration(t *testing.T) {
	path := writeSettings(t, "[installer]\ntimeout = \"soon\"\n")

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	path := writeSettings(t, "[log]\nlevel = \"warn\"\n")
	t.Setenv("MCPHUB_LOG_LEVEL", "debug")
	t.Setenv("MCPHUB_NPM", "npx --yes npm")
	t.Setenv("MCPHUB_CALL_TIMEOUT", "2s")
	t.Setenv("MCPHUB_SERIALIZED_CALLS", "true")
	t.Setenv("MCPHUB_CONFIG_PATH", "/custom/config.json")

	s, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, []string{"npx", "--yes", "npm"}, s.Installer.NPM)
	assert.Equal(t, 2*time.Second, s.Client.CallTimeout.Duration)
	assert.True(t, s.Client.SerializedCalls)
	assert.Equal(t, "/custom/config.json", s.ConfigPath)
}

func TestLoadFrom_BadEnv(t *testing.T) {
	t.Setenv("MCPHUB_INSTALL_TIMEOUT", "forever")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCPHUB_INSTALL_TIMEOUT")
}

func TestLoadFrom_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("CLAUDE_DIR", "/data/claude")
	path := writeSettings(t, "config_path = \"${CLAUDE_DIR}/claude_desktop_config.json\"\n[log]\nfile = \"${UNSET_MCPHUB_VAR}/host.log\"\n")

	s, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/claude/claude_desktop_config.json", s.ConfigPath)
	assert.Equal(t, "${UNSET_MCPHUB_VAR}/host.log", s.Log.File)
}

func TestEncode(t *testing.T) {
	raw, err := Default().Encode()
	require.NoError(t, err)
	out := string(raw)
	assert.True(t, strings.Contains(out, `timeout = "10m0s"`), out)
	assert.Contains(t, out, "[registry]")
}

func TestExpandEnvVars(t *testing.T) {
	env := map[string]string{"HOME_DIR": "/home/u", "EMPTY": ""}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		in, want string
	}{
		{"${HOME_DIR}/claude.json", "/home/u/claude.json"},
		{"${MISSING}/claude.json", "${MISSING}/claude.json"},
		{"${EMPTY}/x", "/x"},
		{"${MISSING:-/opt}/x", "/opt/x"},
		{"${EMPTY:-/opt}/x", "/opt/x"},
		{"${HOME_DIR:-/opt}/x", "/home/u/x"},
		{"${HOME_DIR:+set}", "set"},
		{"${EMPTY:+set}", ""},
		{"${MISSING:+set}", ""},
		{"plain", "plain"},
	}
	for _, tc := range tests {
		if got := expandEnvVars(tc.in, lookup); got != tc.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
