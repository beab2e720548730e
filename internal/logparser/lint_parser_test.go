package logparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLintParser_Parse(t *testing.T) {
	parser := &LintParser{}

	tests := []struct {
		name     string
		input    string
		expected Failure
	}{
		{
			name:  "With column",
			input: "##[error]core/segments/serial/condition_test.go:124:15: Error return value of `jobs.Backfill` is not checked (errcheck)",
			expected: Failure{
				Kind:    KindLint,
				Name:    "errcheck",
				File:    "core/segments/serial/condition_test.go",
				Line:    124,
				Message: "Error return value of `jobs.Backfill` is not checked",
			},
		},
		{
			name:  "Without column",
			input: "##[error]main.go:10: File is not `gofmt`-ed with `-s` (gofmt)",
			expected: Failure{
				Kind:    KindLint,
				Name:    "gofmt",
				File:    "main.go",
				Line:    10,
				Message: "File is not `gofmt`-ed with `-s`",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []string{tt.input}
			require.True(t, parser.CanParse(lines))
			failures := parser.Parse(lines)
			require.Len(t, failures, 1)
			assert.Equal(t, tt.expected, failures[0])
		})
	}
}

func TestLintParser_Deduplicates(t *testing.T) {
	parser := &LintParser{}
	line := "##[error]a.go:1:2: var x is unused (unused)"

	failures := parser.Parse([]string{line, line, "##[error]a.go:3:2: var y is unused (unused)"})
	assert.Len(t, failures, 2)
}

func TestLintParser_IgnoresPlainAnnotations(t *testing.T) {
	parser := &LintParser{}
	lines := []string{"##[error]Process completed with exit code 1."}

	assert.False(t, parser.CanParse(lines))
	assert.Empty(t, parser.Parse(lines))
}

func TestGroupByLinter(t *testing.T) {
	failures := []Failure{
		{Kind: KindLint, Name: "errcheck", File: "a.go"},
		{Kind: KindLint, Name: "unused", File: "b.go"},
		{Kind: KindLint, Name: "errcheck", File: "c.go"},
		{Kind: KindTest, Name: "TestA"},
	}

	groups := GroupByLinter(failures)
	require.Len(t, groups, 2)
	assert.Len(t, groups["errcheck"], 2)
	assert.Len(t, groups["unused"], 1)
}
