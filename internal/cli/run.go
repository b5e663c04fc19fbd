package cli

import (
	"github.com/spf13/cobra"

	"github.com/danee593/carris-encm/internal/pipeline"
	"github.com/danee593/carris-encm/pkg/encm"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch the facility dataset once and append it",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runOnce,
	}
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	p, err := pipeline.FromConfig(cfg, logger, pipeline.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	trigger := pipeline.Trigger{Context: map[string]string{"source": "cli"}}
	if code := p.Invoke(cmd.Context(), trigger); code != encm.ExitSuccess {
		return &encm.ExitError{Code: code}
	}
	return nil
}
