package logparser

import (
	"regexp"
	"strconv"
	"strings"
)

// GoTestParser parses Go test output, including testify and gotestsum formats.
type GoTestParser struct{}

var (
	// Standard go test failure: --- FAIL: TestName (duration)
	goTestFailPattern = regexp.MustCompile(`---\s*FAIL:\s*(\S+)\s*\([\d.]+s\)`)

	// Gotestsum format: === FAIL: package TestName (duration)
	gotestsumFailPattern = regexp.MustCompile(`===\s*FAIL:\s*(\S+)\s+(\S+)\s*\([\d.]+s\)`)

	// Package failure line: FAIL\tpackage/path\tduration
	packageFailPattern = regexp.MustCompile(`^FAIL\s+(\S+)\s+[\d.]+s`)

	// Testify error trace: Error Trace:\t/path/to/file.go:line
	testifyErrorTracePattern = regexp.MustCompile(`Error Trace:\s*(.+?):(\d+)`)

	// Testify error message: Error:\s+message
	testifyErrorPattern = regexp.MustCompile(`^Error:\s+(.+)`)

	// Generic file:line pattern in test output
	fileLinePattern = regexp.MustCompile(`(\S+_test\.go):(\d+)`)
)

const contextLines = 20

// CanParse returns true if the lines contain a failed Go test.
func (p *GoTestParser) CanParse(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, "--- FAIL:") || strings.Contains(line, "=== FAIL:") {
			return true
		}
	}
	return false
}

// Parse extracts test failures in the order they were reported. A test that
// is reported more than once is kept once.
func (p *GoTestParser) Parse(lines []string) []Failure {
	var failures []*Failure
	seen := make(map[string]bool)

	for i, line := range lines {
		var failure *Failure
		if m := gotestsumFailPattern.FindStringSubmatch(line); m != nil {
			failure = &Failure{Kind: KindTest, Package: m[1], Name: m[2]}
		} else if m := goTestFailPattern.FindStringSubmatch(line); m != nil {
			failure = &Failure{Kind: KindTest, Name: m[1]}
		} else if m := packageFailPattern.FindStringSubmatch(line); m != nil {
			for _, f := range failures {
				if f.Package == "" {
					f.Package = m[1]
				}
			}
			continue
		} else {
			continue
		}

		key := failure.Package + "/" + failure.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		enrich(failure, window(lines, i))
		failures = append(failures, failure)
	}

	out := make([]Failure, len(failures))
	for i, f := range failures {
		out[i] = *f
	}
	return out
}

// window returns the lines around index.
func window(lines []string, index int) []string {
	start := max(0, index-contextLines)
	end := min(len(lines), index+contextLines)
	return lines[start:end]
}

// enrich fills file, line and message from testify output near the failure,
// falling back to the first file:line reference.
func enrich(failure *Failure, lines []string) {
	for i, line := range lines {
		line = strings.TrimSpace(line)

		if m := testifyErrorTracePattern.FindStringSubmatch(line); m != nil {
			failure.File = m[1][strings.LastIndex(m[1], "/")+1:]
			failure.Line, _ = strconv.Atoi(m[2])
		}

		if m := testifyErrorPattern.FindStringSubmatch(line); m != nil {
			parts := []string{strings.TrimSpace(m[1])}
			for _, next := range lines[i+1:] {
				next = strings.TrimSpace(next)
				if next == "" || strings.HasPrefix(next, "Error Trace:") ||
					strings.HasPrefix(next, "Test:") || strings.HasPrefix(next, "Messages:") {
					break
				}
				parts = append(parts, next)
			}
			failure.Message = strings.Join(parts, " ")
		}

		if failure.File == "" {
			if m := fileLinePattern.FindStringSubmatch(line); m != nil {
				failure.File = m[1]
				failure.Line, _ = strconv.Atoi(m[2])
			}
		}
	}
}
