// Package cli implements the poller command line
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danee593/carris-encm/internal/config"
	"github.com/danee593/carris-encm/internal/logging"
	"github.com/danee593/carris-encm/pkg/encm"
)

const long = `poller fetches the Carris Metropolitana ENCM facility dataset, stamps every
row with the capture time and appends the batch to a warehouse table.

Running poller without a sub-command performs one invocation.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  20 - Source API fetch failed
  21 - Warehouse load failed`

// Execute runs the command line with the process arguments
func Execute() error {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	var exitErr *encm.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "poller",
		Short:         "Load Carris ENCM facilities into a warehouse",
		Long:          long,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOnce,
	}

	root.PersistentFlags().String("config", "", "YAML configuration file")
	root.PersistentFlags().StringArray("env-file", []string{".env"}, "dotenv file loaded before reading the environment (repeatable)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", encm.ErrUsage, err)
	})

	root.AddCommand(newRunCmd(), newServeCmd(), newVersionCmd())
	return root
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", encm.ErrUsage, err)
		}
		return nil
	}
}

// setup loads configuration from the persistent flags and builds the logger
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	envFiles, err := cmd.Flags().GetStringArray("env-file")
	if err != nil {
		return nil, nil, err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", encm.ErrInvalidConfig, err)
	}
	return cfg, logger, nil
}
