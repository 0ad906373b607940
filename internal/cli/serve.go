package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extraction and training API over HTTP",
	Long: `Serve starts an HTTP API:

  POST /api/v1/documents      extract a document
  POST /api/v1/corrections    record a reviewer correction
  GET  /api/v1/effectiveness  rule effectiveness report
  GET  /api/v1/rules          current rule bank
  GET  /health                liveness
  GET  /metrics               Prometheus metrics

Corrections for documents this server extracted are attributed against the
remembered source text, so clients only send back the result and the fixes.

Example:
  intake serve --store sqlite --db /var/lib/intake/intake.db
  intake serve --addr 0.0.0.0:8088`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config: localhost:8088)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg := a.cfg.Server
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if !a.durable() {
		a.logger.Warn("memory store in use, training records are lost on exit", zap.String("hint", "--store sqlite"))
	}

	srv, err := server.New(a.pipeline, a.registry, a.logger.Named("http"), cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return srv.Run(ctx)
}
