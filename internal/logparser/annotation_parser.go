package logparser

import (
	"regexp"
	"strings"
)

// AnnotationParser reports error annotations that are not linter findings:
// GitHub Actions "##[error]" lines and GitLab runner "ERROR:" lines.
type AnnotationParser struct{}

var annotationPattern = regexp.MustCompile(`^(?:##\[error\]|ERROR:\s)\s*(.+)$`)

// CanParse returns true if any line carries an error annotation.
func (p *AnnotationParser) CanParse(lines []string) bool {
	for _, line := range lines {
		if annotationPattern.MatchString(line) && !isLintLine(line) {
			return true
		}
	}
	return false
}

// Parse extracts one failure per annotation line.
func (p *AnnotationParser) Parse(lines []string) []Failure {
	var failures []Failure
	for _, line := range lines {
		if isLintLine(line) {
			continue
		}
		if m := annotationPattern.FindStringSubmatch(line); m != nil {
			failures = append(failures, Failure{Kind: KindAnnotation, Message: strings.TrimSpace(m[1])})
		}
	}
	return failures
}
