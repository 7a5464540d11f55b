// Package commands provides the CLI commands for pycfg.
package commands

import (
	"fmt"

	"github.com/l3aro/pycfg/internal/config"
	"github.com/l3aro/pycfg/internal/log"
	"github.com/spf13/cobra"
)

var (
	appConfig *config.Config
	logger    = log.Default()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "pycfg",
	Short: "pycfg - Control flow graphs for Python",
	Long: `pycfg builds the control flow graph of a Python program and renders it
with Graphviz.

Commands:
  build       Build, print and render the CFG of a Python file
  scan        Report CFG statistics for every function in a tree
  init        Create a configuration file interactively
  doctor      Check configuration and the Graphviz installation

Use "pycfg [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			// init must be able to replace a broken config.
			if cmd != initCmd {
				return fmt.Errorf("loading config: %w", err)
			}
			logger.Warn("using default config", "error", err)
			c = config.DefaultConfig()
		}
		appConfig = c
		return setupLogger(cmd, c)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	err := RootCmd.Execute()
	if err != nil {
		logger.Error("command failed", "error", err)
	}
	_ = logger.Sync()
	return err
}

func setupLogger(cmd *cobra.Command, c *config.Config) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose || c.Verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	logger.SetJSONOutput(c.LogJSON)
	return nil
}

func init() {
	RootCmd.PersistentFlags().BoolP("verbose", "V", false, "Enable debug logging")

	RootCmd.AddCommand(buildCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(scanCmd)
}
