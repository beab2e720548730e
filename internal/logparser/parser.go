// Package logparser finds test failures, lint findings and error annotations
// in structured CI logs.
package logparser

import (
	"github.com/newhook/pipewatch/internal/logtree"
)

// Kind classifies a Failure.
type Kind string

const (
	KindTest       Kind = "test"
	KindLint       Kind = "lint"
	KindAnnotation Kind = "error"
)

// Failure is one problem reported in a log.
type Failure struct {
	Folder  string `json:"folder,omitempty"`
	Source  string `json:"source,omitempty"`
	Group   string `json:"group,omitempty"`
	Kind    Kind   `json:"kind"`
	Name    string `json:"name,omitempty"` // test name or linter
	Package string `json:"package,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message,omitempty"`
}

// Parser interface for format-specific implementations.
type Parser interface {
	// CanParse returns true if this parser can handle the given lines.
	CanParse(lines []string) bool
	// Parse extracts failures from the lines.
	Parse(lines []string) []Failure
}

// parsers run in order; a line claimed by the lint parser is not reported
// again as a plain annotation.
var parsers = []Parser{
	&GoTestParser{},
	&LintParser{},
	&AnnotationParser{},
}

// ScanLines runs every parser that can handle lines.
func ScanLines(lines []string) []Failure {
	normalized := make([]string, len(lines))
	for i, line := range lines {
		normalized[i] = logtree.StripTimestamp(logtree.StripANSI(line))
	}

	var all []Failure
	for _, p := range parsers {
		if p.CanParse(normalized) {
			all = append(all, p.Parse(normalized)...)
		}
	}
	return all
}

// Scan walks a folder -> source -> group tree and reports the failures of
// every group, tagged with where they were found.
func Scan(tree logtree.Node) []Failure {
	var all []Failure
	eachBranch(tree, func(folder string, folderNode logtree.Node) {
		eachBranch(folderNode, func(source string, sourceNode logtree.Node) {
			eachBranch(sourceNode, func(group string, groupNode logtree.Node) {
				if groupNode.Kind() != logtree.KindLines {
					return
				}
				for _, f := range ScanLines(groupNode.Lines()) {
					f.Folder = folder
					f.Source = source
					f.Group = group
					all = append(all, f)
				}
			})
		})
	})
	return all
}

func eachBranch(n logtree.Node, fn func(key string, child logtree.Node)) {
	if n.Kind() != logtree.KindBranch {
		return
	}
	b := n.Branch()
	for _, key := range b.Keys() {
		child, _ := b.Get(key)
		fn(key, child)
	}
}
