package logtree

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// GroupStartMarker opens a collapsible step section in GitHub Actions logs.
	GroupStartMarker = "##[group]"
	// GroupEndMarker closes the open step section.
	GroupEndMarker = "##[endgroup]"

	// SingleLogsGroup collects lines that appear outside any group.
	SingleLogsGroup = "SingleLogs"
	// NoLogsFoundGroup is the only key of a log file without content.
	NoLogsFoundGroup = "(No logs found)"
	// NoAdditionalLogs is the single line stored for a group that captured nothing.
	NoAdditionalLogs = "(No additional logs)"
)

var (
	// ansiPattern matches CSI color and erase-line codes.
	// Input:  "\x1b[36;1mecho hi\x1b[0m"
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[mK]`)

	// timestampPattern matches the leading GitHub Actions timestamps of a line.
	// A run of consecutive timestamps is removed as one.
	// Format: 2026-01-26T14:49:40.776094Z or 2026-01-26T14:49:40.7760945Z
	timestampPattern = regexp.MustCompile(`^(?:\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6,7}Z\s+)+`)
)

// ignoredSetupPatterns are workflow setup lines dropped while structuring.
var ignoredSetupPatterns = []string{
	"Starting workflow run",
	"Complete job name",
	"Temporarily overriding HOME",
	"Adding repository directory to the temporary git global config",
	"Disabling automatic garbage collection",
	"Setting up auth",
	"Fetching repository",
	"Determining the checkout info",
	"Post job cleanup",
	"[command]/usr/bin/git",
}

// gitChatterPatterns are checkout and fetch lines removed by Clean.
var gitChatterPatterns = []string{
	"Fetching the repository",
	"remote: Enumerating objects",
	"remote: Counting objects",
	"remote: Compressing objects",
	"remote: Total",
	"From https://github.com/",
	"[command]/usr/bin/git",
	"hint:",
}

// byteOrderMark starts the first line of most GitHub Actions step files.
const byteOrderMark = '\ufeff'

// StripANSI removes ANSI color codes and surrounding whitespace from a line.
// Input:  "\x1b[31mFAIL\x1b[0m "
// Output: "FAIL"
func StripANSI(line string) string {
	return trim(ansiPattern.ReplaceAllString(line, ""))
}

// StripTimestamp removes a leading timestamp and surrounding whitespace.
// Input:  "\ufeff2026-01-26T14:49:40.7760945Z --- FAIL: TestName"
// Output: "--- FAIL: TestName"
func StripTimestamp(line string) string {
	return trim(timestampPattern.ReplaceAllString(trim(line), ""))
}

// trim removes surrounding whitespace and byte order marks.
func trim(line string) string {
	return strings.TrimFunc(line, func(r rune) bool {
		return unicode.IsSpace(r) || r == byteOrderMark
	})
}

// IsSetupNoise reports whether the line is workflow setup boilerplate.
func IsSetupNoise(line string) bool {
	return containsAny(line, ignoredSetupPatterns)
}

// IsGitChatter reports whether the line is git fetch output.
func IsGitChatter(line string) bool {
	return containsAny(line, gitChatterPatterns)
}

func containsAny(line string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}
