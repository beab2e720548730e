// Package pipeline wires extraction, structuring and cleaning into the two
// entry points used by the server, the CLI and the watcher.
package pipeline

import (
	"github.com/newhook/pipewatch/internal/extract"
	"github.com/newhook/pipewatch/internal/logging"
	"github.com/newhook/pipewatch/internal/logtree"
)

// Result is the cleaned tree of one archive.
type Result struct {
	// Tree is the cleaned folder -> source -> group tree. It is the zero Node
	// when nothing survived cleaning.
	Tree logtree.Node
	// Entries is the number of log files that were structured.
	Entries int
	// Skipped lists the entries that could not be decoded.
	Skipped []*extract.EncodingError
}

// BuildTree turns a GitHub Actions log archive into a cleaned tree within
// extract.DefaultLimits.
func BuildTree(payload []byte) (*Result, error) {
	return BuildTreeWithLimits(payload, extract.DefaultLimits)
}

// BuildTreeWithLimits turns a GitHub Actions log archive into a cleaned tree.
// Only an archive that cannot be opened or decompresses past limits is an
// error; undecodable entries are skipped and reported in the result.
func BuildTreeWithLimits(payload []byte, limits extract.Limits) (*Result, error) {
	archive, err := extract.ArchiveWithLimits(payload, limits)
	if err != nil {
		logging.Error("failed to extract log archive", "error", err, "bytes", len(payload))
		return nil, err
	}

	for _, skipped := range archive.Skipped {
		logging.Warn("skipping log entry", "entry", skipped.Name, "error", skipped)
	}

	builder := logtree.NewBuilder()
	for _, entry := range archive.Entries {
		builder.Add(entry.Folder, entry.Name, logtree.Structure(extract.Lines(entry.Text)))
	}

	result := &Result{
		Tree:    logtree.Clean(builder.Tree()),
		Entries: len(archive.Entries),
		Skipped: archive.Skipped,
	}

	logging.Info("structured log archive",
		"entries", result.Entries,
		"skipped", len(result.Skipped),
		"empty", result.Tree.IsEmpty())

	return result, nil
}

// TraceLines turns a single job trace into its non-blank, colour-free lines.
func TraceLines(payload []byte) []string {
	lines := extract.Trace(payload)
	logging.Debug("split job trace", "bytes", len(payload), "lines", len(lines))
	return lines
}
