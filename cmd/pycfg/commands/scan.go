package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"text/tabwriter"

	"github.com/l3aro/pycfg/internal/config"
	"github.com/l3aro/pycfg/internal/log"
	"github.com/l3aro/pycfg/internal/scanner"
	"github.com/l3aro/pycfg/pkg/cfg"
	"github.com/l3aro/pycfg/pkg/pyast"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// moduleUnit names the module body in scan reports.
const moduleUnit = "<module>"

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Report CFG statistics for every Python function in a tree",
	Long: `Walks a directory for Python files (respecting .pycfgignore), builds the
control flow graph of each function, and prints node, edge and cyclomatic
complexity counts. A module body is reported as its own unit only when it
defines no functions, since definitions cannot appear in a graph. Units the
builder cannot handle are reported with their error instead of aborting the
scan.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		jobs, _ := cmd.Flags().GetInt("jobs")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		results, err := scanProject(cmd.Context(), root, appConfig, jobs, logger)
		if err != nil {
			return err
		}
		if jsonOutput {
			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		return printScanResults(cmd.OutOrStdout(), results)
	},
}

// scanResult is the outcome of building one unit of one file.
type scanResult struct {
	File  string     `json:"file"`
	Unit  string     `json:"unit"`
	Line  int        `json:"line,omitempty"`
	Stats *cfg.Stats `json:"stats,omitempty"`
	Error string     `json:"error,omitempty"`
}

func scanProject(ctx context.Context, root string, c *config.Config, jobs int, logger log.Logger) ([]scanResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	files, err := scanner.Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	logger.Debug("scan found files", "root", root, "count", len(files))

	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	perFile := make([][]scanResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perFile[i] = scanFile(ctx, f, c, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []scanResult
	for _, rs := range perFile {
		results = append(results, rs...)
	}
	return results, nil
}

// scanFile builds the module body and every function of f. Failures are
// recorded per unit.
func scanFile(ctx context.Context, f scanner.FileInfo, c *config.Config, logger log.Logger) []scanResult {
	src, err := os.ReadFile(f.FullPath)
	if err != nil {
		return []scanResult{{File: f.Path, Unit: moduleUnit, Error: err.Error()}}
	}
	mod, err := pyast.Parse(ctx, src)
	if err != nil {
		logger.Warn("skipping file", "file", f.Path, "error", err)
		return []scanResult{{File: f.Path, Unit: moduleUnit, Error: err.Error()}}
	}

	opts := builderOptions(c, logger)
	build := func(unit string, stmts []pyast.Stmt) scanResult {
		r := scanResult{File: f.Path, Unit: unit}
		g, err := cfg.Build(mod.Source, stmts, opts...)
		if err != nil {
			r.Error = err.Error()
			return r
		}
		s := g.Stats()
		r.Stats = &s
		return r
	}

	var results []scanResult
	// A body holding definitions is always rejected by the builder.
	if !mod.HasFunctionDefs() {
		results = append(results, build(moduleUnit, mod.Body))
	}
	for _, fn := range mod.FunctionDefs() {
		r := build(fn.Name, fn.Body)
		r.Line = fn.Span().Line
		results = append(results, r)
	}
	return results
}

func printScanResults(w io.Writer, results []scanResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tUNIT\tLINE\tNODES\tEDGES\tCC\tERROR")
	failed := 0
	for _, r := range results {
		if r.Stats == nil {
			failed++
			fmt.Fprintf(tw, "%s\t%s\t%s\t-\t-\t-\t%s\n", r.File, r.Unit, lineColumn(r.Line), r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t\n", r.File, r.Unit, lineColumn(r.Line), r.Stats.Nodes, r.Stats.Edges, r.Stats.CyclomaticComplexity)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d units, %d failed\n", len(results), failed)
	return err
}

func lineColumn(line int) string {
	if line == 0 {
		return "-"
	}
	return strconv.Itoa(line)
}

func init() {
	scanCmd.Flags().IntP("jobs", "j", 0, "Files built in parallel (default: number of CPUs)")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
}
