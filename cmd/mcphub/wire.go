package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mcphub/mcphub/internal/settings"
	"github.com/mcphub/mcphub/pkg/client"
	"github.com/mcphub/mcphub/pkg/config"
	"github.com/mcphub/mcphub/pkg/installer"
	"github.com/mcphub/mcphub/pkg/registry"
)

func openStore(s *settings.Settings, logger *slog.Logger) (*config.Store, error) {
	path := s.ConfigPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return config.NewStore(path, config.WithLogger(logger)), nil
}

func newInstallers(s *settings.Settings, logger *slog.Logger) *installer.Set {
	runner := installer.NewRunner(logger, installer.WithTimeout(s.Installer.Timeout.Duration))
	return &installer.Set{
		Node:   installer.NewNPM(runner, s.Installer.NPM...),
		Python: installer.NewPip(runner, s.Installer.Pip...),
		Git:    installer.NewGitInstaller(s.Installer.ServersDir, logger),
	}
}

// newClient returns a client that launches the native host on demand, the
// same way the browser does.
func newClient(s *settings.Settings, logger *slog.Logger) (*client.Client, error) {
	dialer := &client.ExecDialer{Path: s.Client.HostPath, Logger: logger}
	if dialer.Path == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating mcphub executable: %w", err)
		}
		dialer.Path = self
		dialer.Args = []string{"host"}
		if rootSettingsFile != "" {
			dialer.Args = append(dialer.Args, "--settings", rootSettingsFile)
		}
		if s.ConfigPath != "" {
			dialer.Args = append(dialer.Args, "--config", s.ConfigPath)
		}
	}

	opts := []client.Option{
		client.WithLogger(logger),
		client.WithCallTimeout(s.Client.CallTimeout.Duration),
		client.WithAutoConnect(),
	}
	if s.Client.SerializedCalls {
		opts = append(opts, client.WithSerializedCalls())
	}
	return client.New(dialer, opts...), nil
}

func newCatalog(s *settings.Settings, logger *slog.Logger, file string) *registry.Cache {
	var src registry.Source = &registry.HTTPSource{URL: s.Registry.URL}
	if file != "" {
		src = registry.FileSource(file)
	}
	return registry.NewCache(s.Registry.CacheFile, src,
		registry.WithTTL(s.Registry.TTL.Duration),
		registry.WithLogger(logger),
	)
}

// withClient runs fn against a host launched on demand and closes it after.
func withClient(ctx context.Context, fn func(ctx context.Context, c *client.Client) error) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	logger, closer, err := newCLILogger(s)
	if err != nil {
		return err
	}
	defer closer.Close()

	c, err := newClient(s, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}
