package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/langdag/dagbuilder/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port   int
		host   string
		apiKey string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Serve the builder operations over HTTP.

Responses use the same envelopes as the command line. Use "current" as the
session id to address the current session.

Example:
  dagbuilder serve --port 8090
  dagbuilder serve --host 0.0.0.0 --api-key secret`,
		Args: cobra.NoArgs,
		RunE: a.reported(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if !cmd.Flags().Changed("port") {
				port = e.cfg.Server.Port
			}
			if !cmd.Flags().Changed("host") {
				host = e.cfg.Server.Host
			}
			if apiKey == "" {
				apiKey = e.cfg.Server.APIKey
			}

			addr := fmt.Sprintf("%s:%d", host, port)
			server := api.New(&api.Config{
				Addr:        addr,
				APIKey:      apiKey,
				CORSOrigins: e.cfg.Server.CORSOrigins,
				Logger:      e.logger,
			}, e.builder)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)

			go func() {
				<-stop
				e.logger.Info("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					e.logger.Error("error during shutdown", "error", err)
				}
			}()

			fmt.Fprintf(a.errOut, "dagbuilder API server listening on http://%s\n", addr)
			if apiKey != "" {
				fmt.Fprintln(a.errOut, "Authentication: required (Authorization: Bearer <key> or X-API-Key header)")
			} else {
				fmt.Fprintln(a.errOut, "Authentication: disabled (use --api-key to enable)")
			}

			return server.Start()
		}),
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8090, "port to listen on")
	cmd.Flags().StringVarP(&host, "host", "H", "127.0.0.1", "host to bind to")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for authentication (optional)")
	return cmd
}
