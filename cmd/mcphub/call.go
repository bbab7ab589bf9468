package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcphub/mcphub/pkg/client"
	"github.com/mcphub/mcphub/pkg/protocol"
)

var (
	callConfigFile string
	callServerJSON string
	callServerName string
)

var callCmd = &cobra.Command{
	Use:   "call <TYPE>",
	Short: "Send one protocol message to a freshly launched host",
	Long: `Launches the native host the way a browser would, sends one request and prints
the response data as JSON. Useful for checking a host installation.

Examples:
  mcphub call GET_CONFIG
  mcphub call UPDATE_CONFIG --config-file new.json
  mcphub call INSTALL_SERVER --server '{"name":"x","repository":"x-mcp","runtime":"python"}'
  mcphub call UNINSTALL_SERVER --name x`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildCallRequest(protocol.MessageType(strings.ToUpper(args[0])))
		if err != nil {
			return err
		}
		return runCall(cmd, req)
	},
}

func init() {
	callCmd.Flags().StringVar(&callConfigFile, "config-file", "", "Config document for UPDATE_CONFIG")
	callCmd.Flags().StringVar(&callServerJSON, "server", "", "Server descriptor JSON for INSTALL_SERVER")
	callCmd.Flags().StringVar(&callServerName, "name", "", "Server name for UNINSTALL_SERVER")
}

func buildCallRequest(t protocol.MessageType) (*protocol.Request, error) {
	req := &protocol.Request{Type: t, ServerName: callServerName}
	if callConfigFile != "" {
		raw, err := os.ReadFile(callConfigFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		req.Config = protocol.NewConfig()
		if err := json.Unmarshal(raw, req.Config); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if callServerJSON != "" {
		req.Server = &protocol.ServerDescriptor{}
		if err := json.Unmarshal([]byte(callServerJSON), req.Server); err != nil {
			return nil, fmt.Errorf("parsing --server: %w", err)
		}
	}
	return req, nil
}

func runCall(cmd *cobra.Command, req *protocol.Request) error {
	return withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
		data, err := c.Call(ctx, req)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		}
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err != nil {
			return fmt.Errorf("formatting response: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.String())
		return nil
	})
}
