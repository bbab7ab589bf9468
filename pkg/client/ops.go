package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcphub/mcphub/pkg/protocol"
)

// GetConfig fetches the desktop config document.
func (c *Client) GetConfig(ctx context.Context) (*protocol.Config, error) {
	data, err := c.Call(ctx, &protocol.Request{Type: protocol.TypeGetConfig})
	if err != nil {
		return nil, err
	}
	cfg := protocol.NewConfig()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// UpdateConfig replaces the desktop config document.
func (c *Client) UpdateConfig(ctx context.Context, cfg *protocol.Config) error {
	_, err := c.Call(ctx, &protocol.Request{Type: protocol.TypeUpdateConfig, Config: cfg})
	return err
}

// InstallServer installs a server package. The config is not touched.
func (c *Client) InstallServer(ctx context.Context, desc *protocol.ServerDescriptor) error {
	_, err := c.Call(ctx, &protocol.Request{Type: protocol.TypeInstallServer, Server: desc})
	return err
}

// UninstallServer removes a server package. The config entry stays; see
// RemoveServer.
func (c *Client) UninstallServer(ctx context.Context, name string) error {
	_, err := c.Call(ctx, &protocol.Request{Type: protocol.TypeUninstallServer, ServerName: name})
	return err
}

// InstallAndRegister installs a server and adds its entry to the config.
func (c *Client) InstallAndRegister(ctx context.Context, desc *protocol.ServerDescriptor) (*protocol.Config, error) {
	if err := c.InstallServer(ctx, desc); err != nil {
		return nil, err
	}
	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	cfg.SetServer(desc.Name, protocol.EntryFromDescriptor(desc))
	if err := c.UpdateConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("registering %s: %w", desc.Name, err)
	}
	return cfg, nil
}

// RemoveServer uninstalls a server and then drops its config entry. The entry
// is kept when the uninstall fails.
func (c *Client) RemoveServer(ctx context.Context, name string) (*protocol.Config, error) {
	if err := c.UninstallServer(ctx, name); err != nil {
		return nil, err
	}
	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.RemoveServer(name) {
		return cfg, nil
	}
	if err := c.UpdateConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("unregistering %s: %w", name, err)
	}
	return cfg, nil
}
