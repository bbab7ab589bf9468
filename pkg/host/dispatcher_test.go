package host

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mcphub/mcphub/pkg/config"
	"github.com/mcphub/mcphub/pkg/installer"
	"github.com/mcphub/mcphub/pkg/installer/installermock"
	"github.com/mcphub/mcphub/pkg/logging"
	"github.com/mcphub/mcphub/pkg/protocol"
)

type testEnv struct {
	store      *config.Store
	npm        *installermock.MockInstaller
	pip        *installermock.MockInstaller
	dispatcher *Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	npm := installermock.NewMockInstaller(ctrl)
	npm.EXPECT().Name().Return("npm").AnyTimes()
	pip := installermock.NewMockInstaller(ctrl)
	pip.EXPECT().Name().Return("pip").AnyTimes()

	store := config.NewStore(filepath.Join(t.TempDir(), "Claude", config.FileName))
	d := NewDispatcher(store, &installer.Set{Node: npm, Python: pip}, WithLogger(logging.NewDiscardLogger()))
	return &testEnv{store: store, npm: npm, pip: pip, dispatcher: d}
}

func (e *testEnv) dispatch(t *testing.T, req any) *protocol.Response {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	return e.dispatcher.Dispatch(context.Background(), payload)
}

func (e *testEnv) seed(t *testing.T, doc string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(e.store.Path()), 0755))
	require.NoError(t, os.WriteFile(e.store.Path(), []byte(doc), 0644))
}

func TestDispatch_GetConfig_Fresh(t *testing.T) {
	env := newTestEnv(t)

	resp := env.dispatch(t, map[string]any{"type": "GET_CONFIG"})
	require.True(t, resp.Success, resp.Error)
	assert.JSONEq(t, `{"mcpServers":{}}`, string(resp.Data))

	_, err := os.Stat(env.store.Path())
	assert.NoError(t, err, "GET_CONFIG should bootstrap the file")
}

func TestDispatch_UpdateThenGet(t *testing.T) {
	env := newTestEnv(t)

	update := env.dispatch(t, map[string]any{
		"type":   "UPDATE_CONFIG",
		"config": map[string]any{"mcpServers": map[string]any{"foo": map[string]any{"port": 8080}}},
	})
	require.True(t, update.Success, update.Error)
	assert.Empty(t, update.Data)

	get := env.dispatch(t, map[string]any{"type": "GET_CONFIG"})
	require.True(t, get.Success, get.Error)
	assert.JSONEq(t, `{"mcpServers":{"foo":{"port":8080}}}`, string(get.Data))
}

func TestDispatch_UpdateThenGet_PreservesValues(t *testing.T) {
	tests := []struct {
		name    string
		servers string
	}{
		{"zero values", `{"foo":{"command":"python","args":[],"port":0,"auth_token":"","env":{}}}`},
		{"string port", `{"foo":{"command":"node","port":"8080"}}`},
		{"null port", `{"foo":{"command":"node","port":null,"auth_token":""}}`},
		{"numeric env value", `{"foo":{"env":{"DEBUG":1}}}`},
		{"null entry", `{"foo":null}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			doc := `{"mcpServers":` + tc.servers + `}`

			update := env.dispatch(t, map[string]any{
				"type":   "UPDATE_CONFIG",
				"config": json.RawMessage(doc),
			})
			require.True(t, update.Success, update.Error)

			get := env.dispatch(t, map[string]any{"type": "GET_CONFIG"})
			require.True(t, get.Success, get.Error)
			assert.JSONEq(t, doc, string(get.Data))
		})
	}
}

func TestDispatch_GetConfig_HandEditedTypes(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"mcpServers":{"foo":{"command":"node","env":{"DEBUG":1}}}}`)

	resp := env.dispatch(t, map[string]any{"type": "GET_CONFIG"})
	require.True(t, resp.Success, resp.Error)
	assert.JSONEq(t, `{"mcpServers":{"foo":{"command":"node","env":{"DEBUG":1}}}}`, string(resp.Data))
}

func TestDispatch_UpdateConfig_MissingConfig(t *testing.T) {
	env := newTestEnv(t)

	resp := env.dispatch(t, map[string]any{"type": "UPDATE_CONFIG"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "config is required")
}

func TestDispatch_UnknownType(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"mcpServers":{"keep":{"command":"node"}}}`)

	resp := env.dispatch(t, map[string]any{"type": "BOGUS"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown message type", resp.Error)

	data, err := os.ReadFile(env.store.Path())
	require.NoError(t, err)
	assert.Equal(t, `{"mcpServers":{"keep":{"command":"node"}}}`, string(data))
}

func TestDispatch_UnknownType_DoesNotCreateConfig(t *testing.T) {
	env := newTestEnv(t)

	resp := env.dispatch(t, map[string]any{"type": "BOGUS"})
	assert.False(t, resp.Success)

	_, err := os.Stat(env.store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestDispatch_MalformedRequest(t *testing.T) {
	env := newTestEnv(t)

	resp := env.dispatcher.Dispatch(context.Background(), json.RawMessage(`{"id":"r1","type":42}`))
	assert.False(t, resp.Success)
	assert.Equal(t, "r1", resp.ID)
	assert.Contains(t, resp.Error, "invalid request")
}

func TestDispatch_EchoesID(t *testing.T) {
	env := newTestEnv(t)

	resp := env.dispatch(t, map[string]any{"id": "abc-123", "type": "GET_CONFIG"})
	assert.True(t, resp.Success)
	assert.Equal(t, "abc-123", resp.ID)

	resp = env.dispatch(t, map[string]any{"type": "GET_CONFIG"})
	assert.Empty(t, resp.ID)
}

func TestDispatch_InstallServer_Node(t *testing.T) {
	env := newTestEnv(t)
	env.npm.EXPECT().
		Install(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, desc *protocol.ServerDescriptor) error {
			assert.Equal(t, "@modelcontextprotocol/server-filesystem", desc.Repository)
			return nil
		})

	resp := env.dispatch(t, map[string]any{
		"type": "INSTALL_SERVER",
		"server": map[string]any{
			"name":       "filesystem",
			"repository": "@modelcontextprotocol/server-filesystem",
			"runtime":    "node",
		},
	})
	assert.True(t, resp.Success, resp.Error)
	assert.Empty(t, resp.Data)
}

func TestDispatch_InstallServer_PythonFallback(t *testing.T) {
	env := newTestEnv(t)
	env.pip.EXPECT().Install(gomock.Any(), gomock.Any()).Return(nil)

	resp := env.dispatch(t, map[string]any{
		"type":   "INSTALL_SERVER",
		"server": map[string]any{"name": "weather", "repository": "mcp-weather", "runtime": "ruby"},
	})
	assert.True(t, resp.Success, resp.Error)
}

func TestDispatch_InstallServer_ExitCode(t *testing.T) {
	env := newTestEnv(t)
	env.npm.EXPECT().
		Install(gomock.Any(), gomock.Any()).
		Return(&installer.ExitError{Op: installer.OpInstall, Command: "npm install -g x", Code: 1})

	resp := env.dispatch(t, map[string]any{
		"type":   "INSTALL_SERVER",
		"server": map[string]any{"name": "x", "repository": "x", "runtime": "node"},
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "1")
	assert.Equal(t, "installation failed with code 1", resp.Error)
}

func TestDispatch_InstallServer_Invalid(t *testing.T) {
	env := newTestEnv(t)

	resp := env.dispatch(t, map[string]any{
		"type":   "INSTALL_SERVER",
		"server": map[string]any{"name": "x", "runtime": "node"},
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "repository is required")
}

func TestDispatch_UninstallServer_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"mcpServers":{"real":{"command":"node"}}}`)

	resp := env.dispatch(t, map[string]any{"type": "UNINSTALL_SERVER", "serverName": "ghost"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Server not found in config", resp.Error)
}

func TestDispatch_UninstallServer_KeepsEntry(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"mcpServers":{"fs":{"command":"node"},"weather":{"command":"python"}}}`)

	env.npm.EXPECT().Uninstall(gomock.Any(), "fs").Return(nil)
	env.pip.EXPECT().Uninstall(gomock.Any(), "weather").Return(nil)

	resp := env.dispatch(t, map[string]any{"type": "UNINSTALL_SERVER", "serverName": "fs"})
	assert.True(t, resp.Success, resp.Error)
	resp = env.dispatch(t, map[string]any{"type": "UNINSTALL_SERVER", "serverName": "weather"})
	assert.True(t, resp.Success, resp.Error)

	cfg, err := env.store.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"fs", "weather"}, cfg.ServerNames(), "uninstall must not edit the config")
}

func TestDispatch_UninstallServer_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"mcpServers":{"fs":{"command":"node"}}}`)
	env.npm.EXPECT().Uninstall(gomock.Any(), "fs").Return(&installer.ExitError{Op: installer.OpUninstall, Code: 2})

	resp := env.dispatch(t, map[string]any{"type": "UNINSTALL_SERVER", "serverName": "fs"})
	assert.False(t, resp.Success)
	assert.Equal(t, "uninstallation failed with code 2", resp.Error)
}

func TestDispatch_CorruptConfig(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"mcpServers": [`)

	resp := env.dispatch(t, map[string]any{"type": "GET_CONFIG"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "reading config")
}

func TestDispatch_HandlerPanicRecovered(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.Handle(protocol.TypeGetConfig, func(context.Context, *protocol.Request) (any, error) {
		panic("boom")
	})

	resp := env.dispatch(t, map[string]any{"id": "p", "type": "GET_CONFIG"})
	assert.False(t, resp.Success)
	assert.Equal(t, "p", resp.ID)
	assert.Equal(t, "internal error: boom", resp.Error)
}

func TestDispatch_CustomHandlerError(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.Handle("PING", func(context.Context, *protocol.Request) (any, error) {
		return nil, errors.New("not today")
	})

	resp := env.dispatch(t, map[string]any{"type": "PING"})
	assert.False(t, resp.Success)
	assert.Equal(t, "not today", resp.Error)
}
