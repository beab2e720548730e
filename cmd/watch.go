package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newhook/pipewatch/internal/watcher"
)

var (
	flagWatchPattern  string
	flagWatchDebounce time.Duration
	flagWatchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Structure log files as they appear in a directory",
	Long: `Watch a directory and its subdirectories and write <file>.json next to
every new or updated log archive or job trace. Use a pattern such as
"**/*.log" to match files below the top level. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagWatchPattern, "pattern", watcher.DefaultPattern, "glob of files to process, relative to the directory")
	watchCmd.Flags().DurationVar(&flagWatchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a changed file is processed")
	watchCmd.Flags().BoolVar(&flagWatchExisting, "existing", false, "also process matching files already in the directory")
}

func runWatch(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	w, err := watcher.New(watcher.Options{
		Dir:             args[0],
		Pattern:         flagWatchPattern,
		Debounce:        flagWatchDebounce,
		ProcessExisting: flagWatchExisting,
		OnProcessed: func(path, output string, err error) {
			if err != nil {
				fmt.Fprintf(out, "✗ %s: %v\n", path, err)
				return
			}
			fmt.Fprintf(out, "✓ %s -> %s\n", path, output)
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Watching %s for %s (Ctrl+C to stop)\n", args[0], flagWatchPattern)
	return w.Run(GetContext())
}
