package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"
)

// Config is the claude_desktop_config.json document. Keys other than
// mcpServers are carried through untouched.
type Config struct {
	MCPServers map[string]ServerEntry     `json:"mcpServers"`
	Extra      map[string]json.RawMessage `json:"-"`
}

// ServerEntry is one mcpServers value.
//
// The typed fields are a view over the JSON object the entry was read from.
// Keys the view does not change are written back byte for byte, so values of
// an unexpected type or zero values survive a read/write cycle. Unknown keys
// are preserved in Extra.
type ServerEntry struct {
	Command   string                     `json:"command,omitempty"`
	Args      []string                   `json:"args,omitempty"`
	Port      int                        `json:"port,omitempty"`
	AuthToken string                     `json:"auth_token,omitempty"`
	Env       map[string]string          `json:"env,omitempty"`
	Extra     map[string]json.RawMessage `json:"-"`

	// raw holds the known keys as they were read; seen is the typed view
	// decoded from them, used to detect edits.
	raw  map[string]json.RawMessage
	seen entryFields
	// verbatim is set when the value was not an object (for example null).
	verbatim json.RawMessage
}

type entryFields struct {
	Command   string
	Args      []string
	Port      int
	AuthToken string
	Env       map[string]string
}

// NewConfig returns the bootstrap document {"mcpServers": {}}.
func NewConfig() *Config {
	return &Config{MCPServers: make(map[string]ServerEntry)}
}

// Server looks up an entry by name.
func (c *Config) Server(name string) (ServerEntry, bool) {
	e, ok := c.MCPServers[name]
	return e, ok
}

// SetServer adds or replaces an entry.
func (c *Config) SetServer(name string, e ServerEntry) {
	if c.MCPServers == nil {
		c.MCPServers = make(map[string]ServerEntry)
	}
	c.MCPServers[name] = e
}

// RemoveServer deletes an entry and reports whether it existed.
func (c *Config) RemoveServer(name string) bool {
	if _, ok := c.MCPServers[name]; !ok {
		return false
	}
	delete(c.MCPServers, name)
	return true
}

// ServerNames returns entry names in sorted order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntryFromDescriptor builds the config entry for a freshly installed server.
func EntryFromDescriptor(d *ServerDescriptor) ServerEntry {
	e := ServerEntry{
		Command:   d.Runtime.Command(),
		Port:      d.DefaultConfig.Port,
		AuthToken: d.DefaultConfig.AuthToken,
	}
	if len(d.InstallArgs) > 0 {
		e.Args = append([]string(nil), d.InstallArgs...)
	}
	if len(d.DefaultConfig.Env) > 0 {
		e.Env = make(map[string]string, len(d.DefaultConfig.Env))
		for k, v := range d.DefaultConfig.Env {
			e.Env[k] = v
		}
	}
	return e
}

// MarshalJSON writes mcpServers (always present) plus any preserved keys.
func (c Config) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+1)
	for k, v := range c.Extra {
		out[k] = v
	}
	servers := c.MCPServers
	if servers == nil {
		servers = map[string]ServerEntry{}
	}
	out["mcpServers"] = servers
	return json.Marshal(out)
}

// UnmarshalJSON reads a config document. A missing mcpServers key yields an
// empty map.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("config must be a JSON object")
	}

	c.MCPServers = make(map[string]ServerEntry)
	if servers, ok := raw["mcpServers"]; ok && string(servers) != "null" {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(servers, &entries); err != nil {
			return fmt.Errorf("mcpServers: %w", err)
		}
		for name, data := range entries {
			var e ServerEntry
			if err := e.UnmarshalJSON(data); err != nil {
				return fmt.Errorf("mcpServers.%s: %w", name, err)
			}
			c.MCPServers[name] = e
		}
	}
	delete(raw, "mcpServers")

	c.Extra = nil
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

// serverEntryKnownKeys are the keys ServerEntry maps to fields.
var serverEntryKnownKeys = []string{"command", "args", "port", "auth_token", "env"}

func (e *ServerEntry) fields() entryFields {
	return entryFields{
		Command:   e.Command,
		Args:      e.Args,
		Port:      e.Port,
		AuthToken: e.AuthToken,
		Env:       e.Env,
	}
}

// field returns the typed value for key and whether it is the zero value.
func (f entryFields) field(key string) (any, bool) {
	switch key {
	case "command":
		return f.Command, f.Command == ""
	case "args":
		return f.Args, len(f.Args) == 0
	case "port":
		return f.Port, f.Port == 0
	case "auth_token":
		return f.AuthToken, f.AuthToken == ""
	case "env":
		return f.Env, len(f.Env) == 0
	}
	return nil, true
}

func (f entryFields) clone() entryFields {
	f.Args = slices.Clone(f.Args)
	f.Env = maps.Clone(f.Env)
	return f
}

// MarshalJSON writes unchanged keys as they were read, edited or new fields
// from the typed view, and preserved unknown keys.
func (e ServerEntry) MarshalJSON() ([]byte, error) {
	cur := e.fields()
	if e.verbatim != nil && len(e.Extra) == 0 && reflect.DeepEqual(cur, e.seen) {
		return e.verbatim, nil
	}

	out := make(map[string]json.RawMessage, len(e.Extra)+len(serverEntryKnownKeys))
	for k, v := range e.Extra {
		out[k] = v
	}
	for _, k := range serverEntryKnownKeys {
		val, zero := cur.field(k)
		if raw, ok := e.raw[k]; ok {
			prev, _ := e.seen.field(k)
			if reflect.DeepEqual(val, prev) {
				out[k] = raw
				continue
			}
		}
		if zero {
			continue
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads an entry. Known keys whose value has an unexpected
// type leave the typed field zero but are kept for writing back.
func (e *ServerEntry) UnmarshalJSON(data []byte) error {
	*e = ServerEntry{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		if !json.Valid(data) {
			return fmt.Errorf("invalid server entry")
		}
		e.verbatim = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
		return nil
	}

	for _, k := range serverEntryKnownKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		delete(raw, k)
		if e.raw == nil {
			e.raw = make(map[string]json.RawMessage, len(serverEntryKnownKeys))
		}
		e.raw[k] = v

		var target any
		switch k {
		case "command":
			target = &e.Command
		case "args":
			target = &e.Args
		case "port":
			target = &e.Port
		case "auth_token":
			target = &e.AuthToken
		case "env":
			target = &e.Env
		}
		if err := json.Unmarshal(v, target); err != nil {
			e.clearField(k)
		}
	}
	e.seen = e.fields().clone()

	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}

func (e *ServerEntry) clearField(key string) {
	switch key {
	case "command":
		e.Command = ""
	case "args":
		e.Args = nil
	case "port":
		e.Port = 0
	case "auth_token":
		e.AuthToken = ""
	case "env":
		e.Env = nil
	}
}
