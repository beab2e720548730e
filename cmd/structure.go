package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newhook/pipewatch/internal/logparser"
	"github.com/newhook/pipewatch/internal/logtree"
	"github.com/newhook/pipewatch/internal/pipeline"
	"github.com/newhook/pipewatch/internal/render"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var (
	flagStructureFormat   string
	flagStructureTrace    bool
	flagStructureFailures bool
	flagStructureWidth    int
)

var structureCmd = &cobra.Command{
	Use:   "structure <archive.zip|trace.log>",
	Short: "Structure a downloaded log archive or job trace",
	Long: `Structure a GitHub Actions log archive (.zip) or a single job trace.

Archives are grouped by job folder, step file and ##[group] section and cleaned
of setup and git noise. Any other file is treated as a job trace and printed as
its non-blank lines.`,
	Args: cobra.ExactArgs(1),
	RunE: runStructure,
}

func init() {
	structureCmd.Flags().StringVarP(&flagStructureFormat, "format", "f", formatText, "output format (text, json)")
	structureCmd.Flags().BoolVar(&flagStructureTrace, "trace", false, "treat the file as a job trace even if it is a .zip")
	structureCmd.Flags().BoolVar(&flagStructureFailures, "failures", false, "print failed tests and error annotations instead of the log")
	structureCmd.Flags().IntVarP(&flagStructureWidth, "width", "w", 0, "truncate text lines to this width (0 disables)")
}

// structureOptions controls how a file is structured and printed.
type structureOptions struct {
	Format   string
	Trace    bool
	Failures bool
	Width    int
}

func runStructure(cmd *cobra.Command, args []string) error {
	return structureFile(cmd.OutOrStdout(), args[0], structureOptions{
		Format:   flagStructureFormat,
		Trace:    flagStructureTrace,
		Failures: flagStructureFailures,
		Width:    flagStructureWidth,
	})
}

func structureFile(w io.Writer, path string, opts structureOptions) error {
	if opts.Format != formatText && opts.Format != formatJSON {
		return fmt.Errorf("unknown format %q (expected %s or %s)", opts.Format, formatText, formatJSON)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if opts.Trace || !strings.EqualFold(filepath.Ext(path), ".zip") {
		lines := pipeline.TraceLines(data)
		if opts.Failures {
			return printFailures(w, logparser.ScanLines(lines), opts.Format)
		}
		if opts.Format == formatJSON {
			return render.JSON(w, map[string]any{"logs": lines})
		}
		return render.Text(w, logtree.Lines(lines...), opts.Width)
	}

	result, err := pipeline.BuildTree(data)
	if err != nil {
		return fmt.Errorf("failed to structure %s: %w", path, err)
	}
	for _, skipped := range result.Skipped {
		fmt.Fprintf(os.Stderr, "Warning: skipped %s\n", skipped.Name)
	}

	if opts.Failures {
		return printFailures(w, logparser.Scan(result.Tree), opts.Format)
	}
	if opts.Format == formatJSON {
		return render.JSON(w, map[string]any{"cleanedLog": result.Tree})
	}
	return render.Text(w, result.Tree, opts.Width)
}

func printFailures(w io.Writer, failures []logparser.Failure, format string) error {
	if format == formatJSON {
		if failures == nil {
			failures = []logparser.Failure{}
		}
		return render.JSON(w, map[string]any{"failures": failures})
	}
	return render.Failures(w, failures)
}
