package cmd

import (
	"os"

	"github.com/josephlewis42/jobsh/commands"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/spf13/cobra"
)

var runCommand string

// runCmd starts the shell, it's also what the root command does.
var runCmd = &cobra.Command{
	Use:   "run [-c command] [ARG]...",
	Short: "Start an interactive shell, or run a single command.",
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	configuration, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	events := logger.NewNopLogger()
	if configuration.EventLog {
		fd, err := configuration.OpenEventLog()
		if err != nil {
			return err
		}
		defer fd.Close()
		events = logger.NewJsonLinesLogRecorder(fd)
	}

	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}

	sh := commands.NewShell(commands.Options{
		Config: configuration,
		Events: events.NewSession(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Args:   append([]string{self}, args...),
	})

	if runCommand == "" {
		exitCode = sh.Run(cmd.Context())
		return nil
	}

	stop, err := sh.Start(cmd.Context())
	if err != nil {
		return err
	}
	defer stop()

	exitCode = sh.RunCommand(runCommand)
	sh.Jobs.DrainNotifications()
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().StringVarP(&runCommand, "command", "c", "", "run the command and exit")
	}
}
