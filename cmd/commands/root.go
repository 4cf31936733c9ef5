package commands

// Root command for Cobra CLI
// Config flags are persistent so every subcommand resolves the same configuration
// Registers subcommands (holders, chart)

import (
	"dog-holders/internal/infra/config"
	"dog-holders/internal/infra/log"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dog-holders",
		Short: "DOG rune holders exporter for the GeniiData API",
		Long: `dog-holders pages through the GeniiData holders list of DOG•GO•TO•THE•MOON,
ranks every holder with its share of the total supply and saves the result as CSV.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newHoldersCmd())
	rootCmd.AddCommand(newChartCmd())
	return rootCmd
}

func Execute() error {
	return newRootCmd().Execute()
}

// setup loads configuration and starts logging for a subcommand.
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := log.Init(log.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level}); err != nil {
		return nil, err
	}
	return cfg, nil
}
