package cmd

import (
	"log"

	"github.com/josephlewis42/jobsh/core/config"
	"github.com/spf13/cobra"
)

// initCmd writes a default config.yaml into the configuration directory so it
// can be edited. Existing configuration is left alone.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default jobsh configuration.",
	Long: `Write the default jobsh configuration.

Creates the configuration directory given by --config and writes a commented
configuration file into it. The file sets the prompt, the maximum number of
jobs the job table tracks, when output is colored, how much interactive
history is kept and whether job events are appended to the event log read
by "jobsh events". An existing configuration file is never overwritten.`,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		logger := log.New(cmd.ErrOrStderr(), "", 0)

		return config.Initialize(cfgPath, logger)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
