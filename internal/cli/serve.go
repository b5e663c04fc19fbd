package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danee593/carris-encm/internal/pipeline"
	"github.com/danee593/carris-encm/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run one invocation per HTTP trigger",
		Long: `serve listens on PORT and runs one invocation per POST / or POST /run.
GET /health and GET /healthz report liveness without touching the warehouse.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	p, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(p, logger.Named("server"), server.WithOutput(cmd.OutOrStdout()))
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port), shutdownTimeout)
}
