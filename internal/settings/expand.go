package settings

import (
	"os"
	"regexp"
)

// envVarRe matches ${VAR}, ${VAR:-default} and ${VAR:+replacement}.
var envVarRe = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)(?::([+-])([^}]*))?\}`)

// expandEnvVars expands placeholders in a settings value. Unlike a shell, a
// bare ${VAR} that is unset is kept verbatim so the mistake shows up in the
// resulting path instead of silently collapsing it.
func expandEnvVars(s string, lookup func(string) (string, bool)) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		value, exists := lookup(parts[1])

		switch parts[2] {
		case "":
			if !exists {
				return match
			}
			return value
		case "-":
			if value == "" {
				return parts[3]
			}
			return value
		default: // "+"
			if exists && value != "" {
				return parts[3]
			}
			return ""
		}
	})
}

// expand resolves placeholders in path-like settings.
func (s *Settings) expand() {
	for _, p := range []*string{&s.ConfigPath, &s.Log.File, &s.Installer.ServersDir, &s.Client.HostPath, &s.Registry.CacheFile} {
		*p = expandEnvVars(*p, os.LookupEnv)
	}
}
