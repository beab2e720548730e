// Package render writes structured logs and failure summaries for terminals.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"

	"github.com/newhook/pipewatch/internal/logparser"
	"github.com/newhook/pipewatch/internal/logtree"
)

const ellipsis = "…"

var (
	folderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	groupStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Text writes a tree as an indented outline: folders, then sources, then
// groups with their lines. Lines wider than width are truncated; a width of
// zero or less disables truncation. A Lines node is written as a flat list.
func Text(w io.Writer, tree logtree.Node, width int) error {
	var b strings.Builder

	switch tree.Kind() {
	case logtree.KindLines:
		writeLines(&b, tree.Lines(), 0, width)
	case logtree.KindBranch:
		writeBranch(&b, tree, 0, width)
	default:
		b.WriteString(dimStyle.Render("(no logs)"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// writeBranch renders nested branches, styling each level by depth.
func writeBranch(b *strings.Builder, n logtree.Node, depth, width int) {
	branch := n.Branch()
	for _, key := range branch.Keys() {
		child, _ := branch.Get(key)
		b.WriteString(indent.String(headerStyle(depth).Render(key), uint(depth*2)))
		b.WriteString("\n")

		switch child.Kind() {
		case logtree.KindBranch:
			writeBranch(b, child, depth+1, width)
		case logtree.KindLines:
			writeLines(b, child.Lines(), depth+1, width)
		}
	}
}

func headerStyle(depth int) lipgloss.Style {
	switch depth {
	case 0:
		return folderStyle
	case 1:
		return sourceStyle
	default:
		return groupStyle
	}
}

func writeLines(b *strings.Builder, lines []string, depth, width int) {
	pad := depth * 2
	for _, line := range lines {
		if width > 0 {
			line = truncate.StringWithTail(line, uint(max(width-pad, 1)), ellipsis)
		}
		if line == logtree.NoAdditionalLogs {
			line = dimStyle.Render(line)
		}
		b.WriteString(indent.String(line, uint(pad)))
		b.WriteString("\n")
	}
}

// Failures writes one line per failure, grouped under the source it was found in.
func Failures(w io.Writer, failures []logparser.Failure) error {
	var b strings.Builder
	if len(failures) == 0 {
		b.WriteString(dimStyle.Render("no failures found"))
		b.WriteString("\n")
	}

	lastSource := ""
	for i, f := range failures {
		location := f.Source
		if location == "" {
			location = f.Folder
		}
		if i == 0 || location != lastSource {
			if location != "" {
				b.WriteString(sourceStyle.Render(location))
				b.WriteString("\n")
			}
			lastSource = location
		}
		b.WriteString("  ")
		b.WriteString(failureLine(f))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func failureLine(f logparser.Failure) string {
	var parts []string
	switch f.Kind {
	case logparser.KindTest:
		parts = append(parts, errorStyle.Render("FAIL "+f.Name))
	case logparser.KindLint:
		parts = append(parts, warningStyle.Render("lint("+f.Name+")"))
	default:
		parts = append(parts, errorStyle.Render("error"))
	}
	if f.Package != "" {
		parts = append(parts, f.Package)
	}
	if f.File != "" {
		parts = append(parts, fmt.Sprintf("%s:%d", f.File, f.Line))
	}
	if f.Message != "" {
		parts = append(parts, f.Message)
	}
	return strings.Join(parts, " ")
}

// JSON writes v as indented JSON followed by a newline.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
