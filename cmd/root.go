package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/josephlewis42/jobsh/core/config"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	exitCode int
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "jobsh")
}

// loadConfig reads the configuration, falling back to the built-in defaults
// when the directory hasn't been initialized.
func loadConfig(cmd *cobra.Command) (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		if cmd.Flags().Changed("config") {
			log.Println("Couldn't load config, using defaults: did you run init?")
		}
		return config.Default(), nil
	}

	return configuration, err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jobsh [-c command] [ARG]...",
	Short: "Job control shell",
	Long:  `An interactive shell with pipelines, redirection and job control.`,
	RunE:  runShell,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.ExecuteContext(context.Background()))
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config path")
}
