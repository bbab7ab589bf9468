package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mcphub/mcphub/internal/settings"
	"github.com/mcphub/mcphub/pkg/logging"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	rootSettingsFile string
	rootConfigPath   string
	rootLogLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "mcphub",
	Short: "Manage MCP servers in the Claude Desktop config",
	Long: `mcphub installs MCP server packages and keeps claude_desktop_config.json in sync.

When a browser launches it as a native-messaging host (with the calling
extension's origin as its argument, or with stdin attached to a pipe), it
serves the framed protocol on stdin and stdout.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	// Browsers append platform flags such as --parent-window=N.
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		if launchedByBrowser(args) || !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			return runHost(cmd.Context(), originFromArgs(args))
		}
		if len(args) > 0 {
			return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootSettingsFile, "settings", "", "Settings file (default $MCPHUB_HOME/settings.toml)")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to claude_desktop_config.json (default: platform location)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(hostCmd, callCmd, configCmd, installCmd, uninstallCmd,
		registryCmd, relayCmd, schemaCmd, doctorCmd, versionCmd)
}

// launchedByBrowser recognizes the arguments browsers pass to native hosts:
// Chrome passes the caller origin, Firefox the manifest path and add-on ID.
func launchedByBrowser(args []string) bool {
	return originFromArgs(args) != "" ||
		len(args) >= 1 && strings.HasSuffix(args[0], ".json") && !isatty.IsTerminal(os.Stdin.Fd())
}

func originFromArgs(args []string) string {
	for _, a := range args {
		if strings.HasPrefix(a, "chrome-extension://") || strings.HasPrefix(a, "moz-extension://") {
			return a
		}
	}
	return ""
}

// loadSettings reads settings and applies global flags.
func loadSettings() (*settings.Settings, error) {
	path := rootSettingsFile
	if path == "" {
		path = settings.File()
	}
	s, err := settings.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if rootConfigPath != "" {
		s.ConfigPath = rootConfigPath
	}
	if rootLogLevel != "" {
		s.Log.Level = rootLogLevel
	}
	return s, nil
}

// newCLILogger logs to stderr for interactive commands.
func newCLILogger(s *settings.Settings) (*slog.Logger, io.Closer, error) {
	level := "warn"
	if rootLogLevel != "" {
		level = s.Log.Level
	}
	return logging.New(logging.Options{Level: level, File: "-", Format: logging.FormatText})
}
