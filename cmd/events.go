package cmd

import (
	"fmt"
	"io"

	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// eventsCmd groups the commands that read the event log the shell appends to
// when event_log is enabled in its configuration.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the shell's job event log.",
	Long: `Explore the shell's job event log.

When event_log is enabled every interactive or scripted session appends one
JSON line per event to the log in the configuration directory. Events cover
jobs being started, suspended, continued and finished, jobs that couldn't be
tracked because the job table was full, commands that weren't found, builtin
invocations, lines that failed to parse and the Ctrl-C/Ctrl-Z signals relayed
to foreground jobs.`,
}

var reportSession string

var reportCommand = &cobra.Command{
	Use:   "report",
	Short: "Summarize the event log as YAML.",
	Long: `Summarize the event log as YAML.

The report counts entries per session and, for each kind of event, the
commands, exit statuses and job states seen. Use --session to restrict the
report to a single shell session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fd, err := config.ReadEventLog()
		if err != nil {
			return err
		}
		defer fd.Close()

		report, err := buildReport(fd, reportSession)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(report)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		return nil
	},
}

// buildReport folds the entries of log into a report, keeping only those of
// session unless it is empty.
func buildReport(log io.Reader, session string) (logger.Report, error) {
	var report logger.Report
	err := logger.ReadJSONLinesLog(log, func(le *logger.LogEntry) {
		if session == "" || le.SessionId == session {
			report.Update(le)
		}
	})
	return report, err
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(reportCommand)
	reportCommand.Flags().StringVar(&reportSession, "session", "", "only report events from this session id")
}
