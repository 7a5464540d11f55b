package commands

import (
	"fmt"
	"os"

	"github.com/l3aro/pycfg/internal/config"
	"github.com/l3aro/pycfg/internal/healthcheck"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on configuration and Graphviz",
	Long: `Checks the configuration and verifies that the Graphviz layout tool,
the Python parser and the snapshot cache are working.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		effectivePath := effectiveConfigPath()

		result, err := healthcheck.Check(appConfig, effectivePath, effectivePath)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(result)

		if result.HasError() {
			return fmt.Errorf("health check failed: one or more components are not available")
		}
		return nil
	},
}

// effectiveConfigPath returns the highest priority config file that exists,
// or "" when only defaults and the environment apply.
func effectiveConfigPath() string {
	if fileExists(config.ProjectConfigFilePath()) {
		return config.ProjectConfigFilePath()
	}
	if fileExists(config.GlobalConfigFilePath()) {
		return config.GlobalConfigFilePath()
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func displayDoctorResult(result *healthcheck.HealthCheckResult) {
	if result.EffectivePath != "" {
		fmt.Printf("Using config: %s (%s)\n\n", result.EffectivePath, result.EffectiveScope)
	} else {
		fmt.Print("Using config: defaults (run 'pycfg init' to create a file)\n\n")
	}

	for _, s := range []healthcheck.ComponentStatus{result.Layout, result.Parser, result.Cache} {
		printComponentStatus(s)
	}
}

func printComponentStatus(s healthcheck.ComponentStatus) {
	fmt.Printf("%s:\n", s.Name)
	if s.Path != "" {
		fmt.Printf("  Path: %s\n", s.Path)
	}
	if s.Version != "" {
		fmt.Printf("  Version: %s\n", s.Version)
	}
	fmt.Printf("  Status: %s %s\n", formatStatusIcon(s.Status), s.Status)
	if s.Error != "" {
		fmt.Printf("  Error: %s\n", s.Error)
	}
	fmt.Println()
}

func formatStatusIcon(status string) string {
	switch status {
	case "ready":
		return "✓"
	case "missing", "error":
		return "✗"
	default:
		return "?"
	}
}
