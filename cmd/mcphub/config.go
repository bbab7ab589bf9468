package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mcphub/mcphub/pkg/config"
	"github.com/mcphub/mcphub/pkg/protocol"
)

var configShowJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the Claude Desktop config",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := cliStore()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), store.Path())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := cliStore()
		if err != nil {
			return err
		}
		if err := store.EnsureExists(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config ready at %s\n", store.Path())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the MCP servers in the config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := cliStore()
		if err != nil {
			return err
		}
		cfg, err := store.Load()
		if err != nil {
			return err
		}
		return printConfig(cmd.OutOrStdout(), cfg, configShowJSON)
	},
}

var configBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List config backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := cliStore()
		if err != nil {
			return err
		}
		backups, err := store.Backups()
		if err != nil {
			return err
		}
		for _, b := range backups {
			fmt.Fprintln(cmd.OutOrStdout(), b)
		}
		return nil
	},
}

var configWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the server list each time the config changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := cliStore()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", store.Path())
		err = store.Watch(ctx, func(cfg *protocol.Config, err error) {
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "read failed: %v\n", err)
				return
			}
			_ = printConfig(out, cfg, configShowJSON)
		})
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "Print the raw document")
	configWatchCmd.Flags().BoolVar(&configShowJSON, "json", false, "Print the raw document")
	configCmd.AddCommand(configPathCmd, configInitCmd, configShowCmd, configBackupsCmd, configWatchCmd)
}

// cliStore opens the config store with a stderr logger.
func cliStore() (*config.Store, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger, _, err := newCLILogger(s)
	if err != nil {
		return nil, err
	}
	return openStore(s, logger)
}

func printConfig(w io.Writer, cfg *protocol.Config, asJSON bool) error {
	if asJSON {
		raw, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(raw))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"NAME", "COMMAND", "ARGS", "PORT", "ENV"})
	for _, name := range cfg.ServerNames() {
		e, _ := cfg.Server(name)
		port := ""
		if e.Port != 0 {
			port = strconv.Itoa(e.Port)
		}
		t.AppendRow(table.Row{name, e.Command, strings.Join(e.Args, " "), port, len(e.Env)})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d servers", len(cfg.MCPServers)), "", "", "", ""})
	t.Render()
	return nil
}
