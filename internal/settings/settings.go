// Package settings loads mcphub's own settings from settings.toml with
// MCPHUB_* environment overrides.
package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mcphub/mcphub/pkg/registry"
)

// Duration is a time.Duration written as "10m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Settings configures every mcphub command.
type Settings struct {
	// ConfigPath overrides the platform location of claude_desktop_config.json.
	ConfigPath string    `toml:"config_path"`
	Log        Log       `toml:"log"`
	Installer  Installer `toml:"installer"`
	Client     Client    `toml:"client"`
	Registry   Registry  `toml:"registry"`
	API        API       `toml:"api"`
	Tracing    Tracing   `toml:"tracing"`
}

type Log struct {
	// File is the host log file. "-" logs to stderr.
	File       string `toml:"file"`
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

type Installer struct {
	NPM        []string `toml:"npm"`
	Pip        []string `toml:"pip"`
	Timeout    Duration `toml:"timeout"`
	ServersDir string   `toml:"servers_dir"`
}

type Client struct {
	// HostPath is the native host executable. Empty means this binary.
	HostPath        string   `toml:"host_path"`
	CallTimeout     Duration `toml:"call_timeout"`
	SerializedCalls bool     `toml:"serialized_calls"`
}

type Registry struct {
	URL       string   `toml:"url"`
	CacheFile string   `toml:"cache_file"`
	TTL       Duration `toml:"ttl"`
}

type API struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Tracing struct {
	// Endpoint is an OTLP/HTTP collector, e.g. "localhost:4318".
	Endpoint string `toml:"endpoint"`
	Insecure bool   `toml:"insecure"`
}

// Default returns settings with every default filled in.
func Default() *Settings {
	return &Settings{
		Log: Log{
			File:       DefaultLogFile(),
			Level:      "info",
			Format:     "logfmt",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Installer: Installer{
			NPM:        []string{"npm"},
			Pip:        []string{"pip"},
			Timeout:    Duration{10 * time.Minute},
			ServersDir: DefaultServersDir(),
		},
		Client: Client{
			CallTimeout: Duration{5 * time.Minute},
		},
		Registry: Registry{
			URL:       registry.DefaultURL,
			CacheFile: DefaultRegistryCache(),
			TTL:       Duration{registry.DefaultTTL},
		},
		API: API{
			Addr:           "localhost:3000",
			AllowedOrigins: []string{"http://localhost:3000", "https://mcphub.io"},
		},
	}
}

// Load reads File() and applies environment overrides.
func Load() (*Settings, error) {
	return LoadFrom(File())
}

// LoadFrom reads settings from path over the defaults. A missing file is not
// an error.
func LoadFrom(path string) (*Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading settings: %w", err)
	default:
		md, err := toml.Decode(string(data), s)
		if err != nil {
			return nil, fmt.Errorf("parsing settings %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing settings %s: unknown key %q", path, undecoded[0].String())
		}
	}
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	s.expand()
	return s, nil
}

// applyEnv overrides fields from MCPHUB_* variables.
func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	argv := func(name string, dst *[]string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = strings.Fields(v)
		}
	}
	dur := func(name string, dst *Duration) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}

	str("MCPHUB_CONFIG_PATH", &s.ConfigPath)
	str("MCPHUB_LOG_FILE", &s.Log.File)
	str("MCPHUB_LOG_LEVEL", &s.Log.Level)
	str("MCPHUB_LOG_FORMAT", &s.Log.Format)
	argv("MCPHUB_NPM", &s.Installer.NPM)
	argv("MCPHUB_PIP", &s.Installer.Pip)
	str("MCPHUB_SERVERS_DIR", &s.Installer.ServersDir)
	str("MCPHUB_HOST_PATH", &s.Client.HostPath)
	str("MCPHUB_REGISTRY_URL", &s.Registry.URL)
	str("MCPHUB_API_ADDR", &s.API.Addr)
	str("MCPHUB_OTLP_ENDPOINT", &s.Tracing.Endpoint)

	if v, ok := lookup("MCPHUB_SERIALIZED_CALLS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MCPHUB_SERIALIZED_CALLS: %w", err)
		}
		s.Client.SerializedCalls = b
	}
	if err := dur("MCPHUB_INSTALL_TIMEOUT", &s.Installer.Timeout); err != nil {
		return err
	}
	if err := dur("MCPHUB_CALL_TIMEOUT", &s.Client.CallTimeout); err != nil {
		return err
	}
	return dur("MCPHUB_REGISTRY_TTL", &s.Registry.TTL)
}

// Encode writes s as TOML, for `mcphub settings` style dumps.
func (s *Settings) Encode() ([]byte, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(s); err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	return []byte(b.String()), nil
}
