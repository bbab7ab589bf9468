package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcphub/mcphub/internal/api"
	"github.com/mcphub/mcphub/pkg/relay"
)

var (
	relayAddr         string
	relayOrigins      []string
	relayRegistryFile string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Expose the native host over a localhost HTTP API",
	Long: `Starts an HTTP server that forwards requests to the native host, launching the
host on first use.

Endpoints:
  POST   /api/message                 raw protocol message
  GET    /api/config                  read the config
  POST   /api/config                  replace the config ({"config": {...}})
  POST   /api/install                 install and register a server
  DELETE /api/uninstall/{name}        uninstall and unregister a server
  GET    /api/registry/servers        list the registry (?q=, ?match=)
  GET    /api/health                  liveness and host state`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		if relayAddr == "" {
			relayAddr = s.API.Addr
		}
		if len(relayOrigins) == 0 {
			relayOrigins = s.API.AllowedOrigins
		}

		logger, closer, err := newCLILogger(s)
		if err != nil {
			return err
		}
		defer closer.Close()
		logger = logger.With("component", "relay")

		c, err := newClient(s, logger)
		if err != nil {
			return err
		}
		defer c.Close()

		srv := api.NewServer(c, relay.New(c, relay.WithLogger(logger)))
		srv.SetLogger(logger)
		srv.SetAllowedOrigins(relayOrigins)
		srv.SetCatalog(newCatalog(s, logger, relayRegistryFile))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.Printf("Relay listening on http://%s\n", relayAddr)
		return srv.ListenAndServe(ctx, relayAddr)
	},
}

func init() {
	relayCmd.Flags().StringVar(&relayAddr, "addr", "", "Listen address (default from settings, localhost:3000)")
	relayCmd.Flags().StringSliceVar(&relayOrigins, "allow-origin", nil, "CORS origin allowed to call the API (repeatable)")
	relayCmd.Flags().StringVar(&relayRegistryFile, "registry-file", "", "Serve the registry from a local YAML file")
}
