package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcphub/mcphub/pkg/host"
	"github.com/mcphub/mcphub/pkg/logging"
	"github.com/mcphub/mcphub/pkg/tracing"
)

var hostLogFile string

var hostCmd = &cobra.Command{
	Use:   "host [origin]",
	Short: "Serve the native-messaging protocol on stdin/stdout",
	Long: `Runs the native-messaging host. Requests are read from stdin and responses
written to stdout, each framed with a 4-byte little-endian length.

Logs never go to stdout. They are written to a rotating file under
$MCPHUB_HOME/logs unless --log-file=- sends them to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHost(cmd.Context(), originFromArgs(args))
	},
}

func init() {
	hostCmd.Flags().StringVar(&hostLogFile, "log-file", "", "Log file, or - for stderr (default $MCPHUB_HOME/logs/host.log)")
}

func runHost(ctx context.Context, origin string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if hostLogFile != "" {
		s.Log.File = hostLogFile
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      s.Log.Level,
		File:       s.Log.File,
		Format:     logging.Format(s.Log.Format),
		MaxSizeMB:  s.Log.MaxSizeMB,
		MaxBackups: s.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	logger = logger.With("pid", os.Getpid())

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Endpoint:    s.Tracing.Endpoint,
		Insecure:    s.Tracing.Insecure,
		ServiceName: "mcphub-host",
		Version:     version,
	})
	if err != nil {
		logger.Error("tracing disabled", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()
	}

	store, err := openStore(s, logger)
	if err != nil {
		logger.Error("locating config", "error", err)
		return err
	}
	dispatcherOpts := []host.DispatcherOption{host.WithLogger(logger)}
	if tp != nil {
		dispatcherOpts = append(dispatcherOpts, host.WithTracerProvider(tp))
	}
	d := host.NewDispatcher(store, newInstallers(s, logger), dispatcherOpts...)
	h := host.New(d, host.WithHostLogger(logger))

	logger.Info("native host starting", "version", version, "origin", origin, "config", store.Path())

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, served := context.WithCancel(gctx)
	g.Go(func() error {
		defer served()
		return h.Serve(gctx, os.Stdin, os.Stdout)
	})
	g.Go(func() error {
		// A blocked stdin read only ends when stdin is closed.
		<-serveCtx.Done()
		if ctx.Err() != nil {
			_ = os.Stdin.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("native host failed", "error", err)
		return fmt.Errorf("serving native host: %w", err)
	}
	return nil
}
