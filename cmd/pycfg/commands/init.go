package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/l3aro/pycfg/internal/config"
	"github.com/l3aro/pycfg/internal/healthcheck"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pycfg configuration interactively",
	Long: `Guides you through setting up pycfg configuration step by step.
Creates a config file with rendering, graph construction and cache settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()
	format := string(cfg.OutputFormat)
	cacheSize := strconv.Itoa(cfg.CacheSize)

	// === SECTION 1: Rendering ===
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Graphviz layout executable").
				Placeholder("dot").
				Value(&cfg.DotPath),
			huh.NewSelect[string]().
				Title("Image format").
				Options(
					huh.NewOption("PNG", string(config.FormatPNG)),
					huh.NewOption("SVG", string(config.FormatSVG)),
					huh.NewOption("PDF", string(config.FormatPDF)),
				).
				Value(&format),
			huh.NewInput().
				Title("Default output path").
				Placeholder("graph.png").
				Value(&cfg.OutputPath),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.OutputFormat = config.OutputFormat(format)

	// === SECTION 2: Graph construction ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Strict tests").
				Description("Reject if/while tests that are not comparisons?").
				Affirmative("Yes, comparisons only").
				Negative("No, accept any expression").
				Value(&cfg.StrictTests),
			huh.NewConfirm().
				Title("Loop exits").
				Description("Report the exit of a loop that ends a block as its tail?").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.SurfaceLoopExits),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Cache ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Snapshot cache size").
				Placeholder("256").
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}).
				Value(&cacheSize),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.CacheSize, _ = strconv.Atoi(cacheSize)

	// === SECTION 4: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.pycfg/config.yaml)", "global"),
					huh.NewOption("Project (./.pycfg/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Layout tool: %s\n", cfg.DotPath)
	fmt.Printf("Output: %s (%s)\n", cfg.OutputPath, cfg.OutputFormat)
	fmt.Printf("Strict tests: %t\n", cfg.StrictTests)
	fmt.Printf("Surface loop exits: %t\n", cfg.SurfaceLoopExits)
	fmt.Printf("Cache: %s (%d snapshots)\n", cfg.CacheDir, cfg.CacheSize)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)

	// === SECTION 5: Health Check ===
	fmt.Println("\n=== Running Health Check ===")

	loadedCfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}

	result, err := healthcheck.Check(loadedCfg, configPath, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Printf("\nConfig Scope: %s\n", result.SavedScope)
	if result.SavedScope == "global" {
		fmt.Printf("Config Path: %s\n\n", configPath)
	} else {
		absPath, _ := filepath.Abs(configPath)
		fmt.Printf("Config Path: %s\n\n", absPath)
	}

	for _, s := range []healthcheck.ComponentStatus{result.Layout, result.Parser, result.Cache} {
		printComponentStatus(s)
	}
	if result.Layout.Status != "ready" {
		fmt.Println("Install Graphviz (https://graphviz.org/download/) to render images.")
	}

	return nil
}
