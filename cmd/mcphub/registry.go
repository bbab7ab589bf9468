package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mcphub/mcphub/pkg/protocol"
	"github.com/mcphub/mcphub/pkg/registry"
)

var (
	registryFile    string
	registryMatch   string
	registryRefresh bool
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Browse the MCP server registry",
}

var registryListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List registry servers, optionally filtered",
	Long: `Lists servers from the registry. A query matches name, description and tags;
--match filters names with a glob such as "github-*".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(cmd)
		if err != nil {
			return err
		}
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		servers := reg.Search(query)
		if registryMatch != "" {
			if servers, err = (&registry.Registry{Servers: servers}).Filter(registryMatch); err != nil {
				return err
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"NAME", "VERSION", "RUNTIME", "DESCRIPTION", "TAGS"})
		for _, s := range servers {
			t.AppendRow(table.Row{s.Name, s.Version, s.Runtime, s.Description, strings.Join(s.Tags, ", ")})
		}
		t.Render()
		return nil
	},
}

var registryShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one registry entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(cmd)
		if err != nil {
			return err
		}
		desc, ok := reg.Lookup(args[0])
		if !ok {
			return fmt.Errorf("server %q not found in registry", args[0])
		}
		printDescriptor(cmd, desc)
		return nil
	},
}

func init() {
	registryCmd.PersistentFlags().StringVar(&registryFile, "file", "", "Read the registry from a local YAML file")
	registryCmd.PersistentFlags().BoolVar(&registryRefresh, "refresh", false, "Ignore the cached registry")
	registryListCmd.Flags().StringVar(&registryMatch, "match", "", "Glob over server names")
	registryCmd.AddCommand(registryListCmd, registryShowCmd)
}

func loadRegistry(cmd *cobra.Command) (*registry.Registry, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger, _, err := newCLILogger(s)
	if err != nil {
		return nil, err
	}
	return newCatalog(s, logger, registryFile).Load(cmd.Context(), registryRefresh)
}

func printDescriptor(cmd *cobra.Command, d *protocol.ServerDescriptor) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"Name", d.Name},
		{"Version", d.Version},
		{"Runtime", d.Runtime},
		{"Repository", d.Repository},
		{"Description", d.Description},
		{"Tags", strings.Join(d.Tags, ", ")},
		{"Install args", strings.Join(d.InstallArgs, " ")},
	})
	if d.DefaultConfig.Port != 0 {
		t.AppendRow(table.Row{"Port", d.DefaultConfig.Port})
	}
	t.Render()
}
