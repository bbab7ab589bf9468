package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcphub/mcphub/pkg/client"
	"github.com/mcphub/mcphub/pkg/protocol"
)

var installRegistryFile string

var installCmd = &cobra.Command{
	Use:   "install <name>",
	Short: "Install a server from the registry and add it to the config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		logger, _, err := newCLILogger(s)
		if err != nil {
			return err
		}
		reg, err := newCatalog(s, logger, installRegistryFile).Load(cmd.Context(), false)
		if err != nil {
			return err
		}
		desc, ok := reg.Lookup(args[0])
		if !ok {
			return fmt.Errorf("server %q not found in registry", args[0])
		}
		return installServer(cmd, desc)
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Uninstall a server package and remove it from the config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
			if _, err := c.RemoveServer(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		})
	},
}

func init() {
	installCmd.Flags().StringVar(&installRegistryFile, "registry-file", "", "Read the registry from a local YAML file")
}

func installServer(cmd *cobra.Command, desc *protocol.ServerDescriptor) error {
	return withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
		fmt.Fprintf(cmd.OutOrStdout(), "Installing %s (%s) from %s...\n", desc.Name, desc.Runtime, desc.Repository)
		if _, err := c.InstallAndRegister(ctx, desc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", desc.Name)
		return nil
	})
}
