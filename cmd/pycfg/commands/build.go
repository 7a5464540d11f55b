package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/l3aro/pycfg/internal/config"
	"github.com/l3aro/pycfg/internal/log"
	"github.com/l3aro/pycfg/pkg/cache"
	"github.com/l3aro/pycfg/pkg/cfg"
	"github.com/l3aro/pycfg/pkg/pyast"
	"github.com/spf13/cobra"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build [file]",
	Short: "Build the control flow graph of a Python file",
	Long: `Parses a Python file, builds its control flow graph, prints the graph and
renders it to an image with Graphviz.

The file defaults to input_path from the configuration. Use --func to build
a single function body instead of the module.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := buildOptions{
			Input:  appConfig.InputPath,
			Output: appConfig.OutputPath,
		}
		if len(args) == 1 {
			opts.Input = args[0]
		}
		if cmd.Flags().Changed("out") {
			opts.Output, _ = cmd.Flags().GetString("out")
		}
		opts.Function, _ = cmd.Flags().GetString("func")
		opts.Format, _ = cmd.Flags().GetString("format")
		opts.NoRender, _ = cmd.Flags().GetBool("no-render")
		opts.Stats, _ = cmd.Flags().GetBool("stats")
		opts.UseCache, _ = cmd.Flags().GetBool("cache")

		return runBuild(cmd.Context(), appConfig, opts, cmd.OutOrStdout(), logger)
	},
}

type buildOptions struct {
	Input    string
	Output   string
	Function string
	Format   string // dot, json or msgpack
	NoRender bool
	Stats    bool
	UseCache bool
}

func runBuild(ctx context.Context, c *config.Config, opts buildOptions, stdout io.Writer, logger log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch opts.Format {
	case "", "dot", string(cfg.FormatJSON), string(cfg.FormatMsgpack):
	default:
		return fmt.Errorf("unknown output format %q (use dot, json or msgpack)", opts.Format)
	}
	if !isPythonFile(opts.Input) {
		return fmt.Errorf("unsupported file type: %s (only .py files supported)", opts.Input)
	}

	src, err := os.ReadFile(opts.Input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", opts.Input, err)
	}

	var lc *cache.Cache
	key := cache.Key(src, buildKeyParts(c, opts.Function)...)
	if opts.UseCache {
		lc, err = cache.New(c.CacheSize)
		if err != nil {
			return err
		}
		if err := cache.LoadFromFile(lc, c.CacheFile()); err != nil {
			logger.Warn("ignoring snapshot cache", "path", c.CacheFile(), "error", err)
			lc.Clear()
		}
	}

	g := cachedGraph(lc, key, logger)
	if g == nil {
		g, err = buildGraph(ctx, c, src, opts.Function, logger)
		if err != nil {
			return err
		}
		if lc != nil {
			lc.Put(key, g.Snapshot())
			if err := cache.PersistToFile(lc, c.CacheFile()); err != nil {
				logger.Warn("saving snapshot cache", "path", c.CacheFile(), "error", err)
			}
		}
	}

	if err := g.Validate(); err != nil {
		logger.Warn("graph has unreachable nodes", "error", err)
	}

	if err := writeGraph(stdout, g, opts.Format); err != nil {
		return err
	}

	if opts.Stats {
		s := g.Stats()
		logger.Info("cfg stats",
			"nodes", s.Nodes,
			"statements", s.Statements,
			"conditions", s.Conditions,
			"merges", s.Merges,
			"edges", s.Edges,
			"cyclomatic_complexity", s.CyclomaticComplexity)
	}

	if opts.NoRender {
		return nil
	}

	r := &cfg.Renderer{
		DotPath: c.DotPath,
		Format:  string(c.OutputFormat),
		Logger:  logger,
	}
	if err := r.Render(ctx, g, opts.Output); err != nil {
		return fmt.Errorf("rendering %s: %w", opts.Output, err)
	}
	logger.Info("graph rendered", "path", opts.Output)
	return nil
}

// cachedGraph returns the graph stored under key, or nil on a miss.
func cachedGraph(lc *cache.Cache, key string, logger log.Logger) *cfg.Graph {
	if lc == nil {
		return nil
	}
	snap, ok := lc.Get(key)
	if !ok {
		return nil
	}
	g, err := snap.Graph()
	if err != nil {
		logger.Warn("discarding invalid cached snapshot", "error", err)
		lc.Delete(key)
		return nil
	}
	logger.Debug("snapshot cache hit", "key", key[:12])
	return g
}

func buildGraph(ctx context.Context, c *config.Config, src []byte, function string, logger log.Logger) (*cfg.Graph, error) {
	mod, err := pyast.Parse(ctx, src)
	if err != nil {
		return nil, err
	}

	stmts := mod.Body
	if function != "" {
		fn, ok := mod.Function(function)
		if !ok {
			if names := mod.Functions(); len(names) > 0 {
				return nil, fmt.Errorf("function %q not found (available: %s)", function, strings.Join(names, ", "))
			}
			return nil, fmt.Errorf("function %q not found", function)
		}
		stmts = fn.Body
	}

	return cfg.Build(mod.Source, stmts, builderOptions(c, logger)...)
}

func builderOptions(c *config.Config, logger log.Logger) []cfg.Option {
	opts := []cfg.Option{cfg.WithLogger(logger)}
	if !c.StrictTests {
		opts = append(opts, cfg.WithAnyTest())
	}
	if c.SurfaceLoopExits {
		opts = append(opts, cfg.WithLoopExits())
	}
	return opts
}

// buildKeyParts lists everything besides the source that changes the graph.
func buildKeyParts(c *config.Config, function string) []string {
	return []string{
		"func=" + function,
		fmt.Sprintf("strict=%t", c.StrictTests),
		fmt.Sprintf("loop_exits=%t", c.SurfaceLoopExits),
	}
}

func writeGraph(w io.Writer, g *cfg.Graph, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "", "dot":
		data, err = g.DOT()
	default:
		data, err = cfg.EncodeSnapshot(g.Snapshot(), cfg.Format(format))
	}
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return err
	}
	if format != string(cfg.FormatMsgpack) {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

// isPythonFile checks if a file has a Python extension
func isPythonFile(path string) bool {
	return strings.HasSuffix(path, ".py") || strings.HasSuffix(path, ".pyi")
}

func init() {
	buildCmd.Flags().StringP("out", "o", "", "Image output path (default from config)")
	buildCmd.Flags().String("func", "", "Build the body of this function instead of the module")
	buildCmd.Flags().String("format", "dot", "Printed serialization: dot, json or msgpack")
	buildCmd.Flags().Bool("no-render", false, "Skip rendering with Graphviz")
	buildCmd.Flags().Bool("stats", false, "Log node, edge and complexity counts")
	buildCmd.Flags().Bool("cache", false, "Reuse snapshots from the on-disk cache")
}
