// Package registry reads the catalog of installable MCP servers.
//
// The catalog is a YAML document with a top-level servers sequence:
//
//	servers:
//	  - name: weather
//	    description: Forecasts
//	    version: 1.2.0
//	    repository: "@acme/weather-mcp"
//	    runtime: node
//	    tags: [weather]
package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/mcphub/mcphub/pkg/protocol"
)

// ErrNoServers is returned for a document without a servers sequence.
var ErrNoServers = errors.New("registry document has no servers list")

// Registry is a parsed server catalog.
type Registry struct {
	Servers []protocol.ServerDescriptor `yaml:"servers" json:"servers"`
}

// document distinguishes a missing servers key from an empty one.
type document struct {
	Servers *[]protocol.ServerDescriptor `yaml:"servers"`
}

// Parse decodes and validates a catalog.
func Parse(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes decodes and validates a catalog held in memory.
func ParseBytes(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	if doc.Servers == nil {
		return nil, ErrNoServers
	}
	reg := &Registry{Servers: *doc.Servers}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadFile parses the catalog at path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks every entry and rejects duplicate names.
func (r *Registry) Validate() error {
	seen := make(map[string]bool, len(r.Servers))
	var errs []error
	for i := range r.Servers {
		s := &r.Servers[i]
		if err := validateEntry(s); err != nil {
			errs = append(errs, fmt.Errorf("servers[%d]: %w", i, err))
			continue
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("servers[%d]: duplicate name %q", i, s.Name))
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

func validateEntry(s *protocol.ServerDescriptor) error {
	if err := s.Validate(); err != nil {
		return err
	}
	switch s.Runtime {
	case protocol.RuntimeNode, protocol.RuntimePython, protocol.RuntimeGit:
	case "":
		return fmt.Errorf("server %q: runtime is required", s.Name)
	default:
		return fmt.Errorf("server %q: unknown runtime %q", s.Name, s.Runtime)
	}
	if s.Version != "" {
		if _, err := semver.NewVersion(s.Version); err != nil {
			return fmt.Errorf("server %q: invalid version %q: %w", s.Name, s.Version, err)
		}
	}
	return nil
}

// Lookup finds a server by name, ignoring case.
func (r *Registry) Lookup(name string) (*protocol.ServerDescriptor, bool) {
	for i := range r.Servers {
		if strings.EqualFold(r.Servers[i].Name, name) {
			return &r.Servers[i], true
		}
	}
	return nil, false
}

// Search returns servers whose name, description or tags contain query,
// ignoring case. An empty query matches everything.
func (r *Registry) Search(query string) []protocol.ServerDescriptor {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []protocol.ServerDescriptor
	for _, s := range r.Servers {
		if q == "" || matches(s, q) {
			out = append(out, s)
		}
	}
	return out
}

func matches(s protocol.ServerDescriptor, q string) bool {
	if strings.Contains(strings.ToLower(s.Name), q) ||
		strings.Contains(strings.ToLower(s.Description), q) {
		return true
	}
	for _, tag := range s.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Filter returns servers whose name matches a glob such as "github-*" or
// "@acme/**".
func (r *Registry) Filter(pattern string) ([]protocol.ServerDescriptor, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	var out []protocol.ServerDescriptor
	for _, s := range r.Servers {
		ok, err := doublestar.Match(strings.ToLower(pattern), strings.ToLower(s.Name))
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", pattern, err)
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Names returns the server names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Servers))
	for _, s := range r.Servers {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
