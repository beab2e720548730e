package logparser

import (
	"regexp"
	"strconv"
	"strings"
)

// LintParser parses golangci-lint findings reported as GitHub Actions annotations.
type LintParser struct{}

var (
	// ##[error]file:line:col: message (linter)
	lintErrorPattern = regexp.MustCompile(`##\[error\]([^:\s]+):(\d+):(\d+):\s*(.+?)\s*\(([\w-]+)\)\s*$`)

	// ##[error]file:line: message (linter)
	lintErrorNoColPattern = regexp.MustCompile(`##\[error\]([^:\s]+):(\d+):\s*(.+?)\s*\(([\w-]+)\)\s*$`)
)

// isLintLine reports whether the line is a linter annotation.
func isLintLine(line string) bool {
	return lintErrorPattern.MatchString(line) || lintErrorNoColPattern.MatchString(line)
}

// CanParse returns true if any line is a linter annotation.
func (p *LintParser) CanParse(lines []string) bool {
	for _, line := range lines {
		if isLintLine(line) {
			return true
		}
	}
	return false
}

// Parse extracts lint findings. A finding repeated at the same position is kept once.
func (p *LintParser) Parse(lines []string) []Failure {
	var failures []Failure
	seen := make(map[string]bool)

	for _, line := range lines {
		var f Failure
		var pos string
		if m := lintErrorPattern.FindStringSubmatch(line); m != nil {
			f = Failure{Kind: KindLint, File: m[1], Message: m[4], Name: m[5]}
			f.Line, _ = strconv.Atoi(m[2])
			pos = m[1] + ":" + m[2] + ":" + m[3]
		} else if m := lintErrorNoColPattern.FindStringSubmatch(line); m != nil {
			f = Failure{Kind: KindLint, File: m[1], Message: m[3], Name: m[4]}
			f.Line, _ = strconv.Atoi(m[2])
			pos = m[1] + ":" + m[2]
		} else {
			continue
		}

		key := pos + " " + f.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		f.Message = strings.TrimSpace(f.Message)
		failures = append(failures, f)
	}
	return failures
}

// GroupByLinter groups lint findings by linter name.
func GroupByLinter(failures []Failure) map[string][]Failure {
	groups := make(map[string][]Failure)
	for _, f := range failures {
		if f.Kind == KindLint {
			groups[f.Name] = append(groups[f.Name], f)
		}
	}
	return groups
}
