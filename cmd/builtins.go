package cmd

import (
	"fmt"

	"github.com/josephlewis42/jobsh/commands"
	"github.com/spf13/cobra"
)

var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtin commands of the shell.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range commands.ListBuiltins() {
			if commands.IsResident(name) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (resident)\n", name)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
