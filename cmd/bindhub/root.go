package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bindhub/bindhub/internal/logging"
)

// commandPath is the resolved path of the executing command, recorded for
// the fatal-error logger in main.go.
var commandPath = "bindhub"

var rootCmd = &cobra.Command{
	Use:           "bindhub",
	Short:         "Bindhub manages connector bindings, their credentials, and their effective configuration.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		commandPath = cmd.CommandPath()
		_, err := logging.BootstrapFromEnv(logging.BootstrapOptions{
			Command: commandPath,
			Writer:  os.Stderr,
		})
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(migrateCmd, workerCmd, typesCmd, bindingsCmd, schemasCmd)
}
