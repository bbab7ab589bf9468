package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_EmptyDocument(t *testing.T) {
	out, err := json.Marshal(NewConfig())
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{}}`, string(out))

	var zero Config
	out, err = json.Marshal(zero)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{}}`, string(out))
}

func TestConfig_MissingServersKey(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"globalShortcut":"Ctrl+Space"}`), &cfg))
	assert.NotNil(t, cfg.MCPServers)
	assert.Empty(t, cfg.MCPServers)

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"globalShortcut":"Ctrl+Space","mcpServers":{}}`, string(out))
}

func TestConfig_PreservesUnknownKeys(t *testing.T) {
	in := `{
		"theme": "dark",
		"mcpServers": {
			"fs": {"command": "npx", "args": ["-y", "server-fs"], "env": {"ROOT": "/tmp"}, "disabled": true},
			"foo": {"port": 8080}
		}
	}`
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(in), &cfg))

	fs, ok := cfg.Server("fs")
	require.True(t, ok)
	assert.Equal(t, "npx", fs.Command)
	assert.Equal(t, []string{"-y", "server-fs"}, fs.Args)
	assert.Contains(t, fs.Extra, "disabled")

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestServerEntry_KeepsRawValues(t *testing.T) {
	in := `{"command":"node","args":[],"port":"8080","auth_token":"","env":{"DEBUG":1}}`
	var e ServerEntry
	require.NoError(t, json.Unmarshal([]byte(in), &e))
	assert.Equal(t, "node", e.Command)
	assert.Zero(t, e.Port)
	assert.Nil(t, e.Env)

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestServerEntry_EditsOverrideRaw(t *testing.T) {
	var e ServerEntry
	require.NoError(t, json.Unmarshal([]byte(`{"command":"node","port":"8080","args":["a"]}`), &e))

	e.Port = 9000
	e.Args[0] = "b"
	e.Command = ""

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"port":9000,"args":["b"]}`, string(out))
}

func TestServerEntry_NullEntry(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"mcpServers":{"foo":null}}`), &cfg))
	_, ok := cfg.Server("foo")
	assert.True(t, ok)

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{"foo":null}}`, string(out))
}

func TestConfig_RejectsNonObject(t *testing.T) {
	var cfg Config
	assert.Error(t, json.Unmarshal([]byte(`null`), &cfg))
	assert.Error(t, json.Unmarshal([]byte(`[]`), &cfg))
	assert.Error(t, json.Unmarshal([]byte(`{"mcpServers": []}`), &cfg))
}

func TestConfig_ServerMutations(t *testing.T) {
	cfg := &Config{}
	cfg.SetServer("b", ServerEntry{Command: "node"})
	cfg.SetServer("a", ServerEntry{Command: "python"})

	assert.Equal(t, []string{"a", "b"}, cfg.ServerNames())
	assert.True(t, cfg.RemoveServer("a"))
	assert.False(t, cfg.RemoveServer("a"))
	assert.Equal(t, []string{"b"}, cfg.ServerNames())
}

func TestEntryFromDescriptor(t *testing.T) {
	d := &ServerDescriptor{
		Name:        "weather",
		Repository:  "mcp-weather",
		Runtime:     RuntimePython,
		InstallArgs: []string{"--port", "9000"},
		DefaultConfig: DefaultConfig{
			Port:      9000,
			AuthToken: "secret",
			Env:       map[string]string{"API_KEY": "x"},
		},
	}
	e := EntryFromDescriptor(d)
	assert.Equal(t, "python", e.Command)
	assert.Equal(t, []string{"--port", "9000"}, e.Args)
	assert.Equal(t, 9000, e.Port)
	assert.Equal(t, "secret", e.AuthToken)
	assert.Equal(t, map[string]string{"API_KEY": "x"}, e.Env)

	// The entry must not alias the descriptor.
	d.DefaultConfig.Env["API_KEY"] = "changed"
	assert.Equal(t, "x", e.Env["API_KEY"])
}
