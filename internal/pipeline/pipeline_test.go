package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/pipewatch/internal/extract"
	"github.com/newhook/pipewatch/internal/logtree"
)

func buildZip(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const testsLog = "2024-05-01T10:00:00.1234567Z ##[group]Run go test ./...\n" +
	"2024-05-01T10:00:01.1234567Z \x1b[32mok  \tpkg/a\t0.1s\x1b[0m\n" +
	"2024-05-01T10:00:02.1234567Z --- FAIL: TestB (0.00s)\n" +
	"2024-05-01T10:00:03.1234567Z ##[endgroup]\n" +
	"2024-05-01T10:00:04.1234567Z ##[error]Process completed with exit code 1.\n"

const checkoutLog = "2024-05-01T09:59:58.1234567Z ##[group]Run actions/checkout@v4\n" +
	"2024-05-01T09:59:58.2234567Z Syncing repository: acme/api\n" +
	"2024-05-01T09:59:58.3234567Z ##[endgroup]\n" +
	"2024-05-01T09:59:58.4234567Z Fetching the repository\n" +
	"2024-05-01T09:59:58.5234567Z remote: Counting objects: 100% (10/10), done.\n"

func TestBuildTree(t *testing.T) {
	files := map[string]string{
		"0_build.txt":          "combined root log",
		"build/2_Test.txt":     testsLog,
		"build/1_Checkout.txt": checkoutLog,
		"build/3_Empty.txt":    "",
	}
	payload := buildZip(t, files, "0_build.txt", "build/2_Test.txt", "build/1_Checkout.txt", "build/3_Empty.txt")

	result, err := BuildTree(payload)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Entries)
	assert.Empty(t, result.Skipped)

	folder, ok := result.Tree.Get("build")
	require.True(t, ok)
	assert.Equal(t, []string{"build/1_Checkout.txt", "build/2_Test.txt"}, folder.Branch().Keys(),
		"sources are ordered by step and empty logs are pruned")

	tests, ok := result.Tree.Get("build", "build/2_Test.txt", "Run go test ./...")
	require.True(t, ok)
	assert.Equal(t, []string{"ok  \tpkg/a\t0.1s", "--- FAIL: TestB (0.00s)"}, tests.Lines())

	single, ok := result.Tree.Get("build", "build/2_Test.txt", logtree.SingleLogsGroup)
	require.True(t, ok)
	assert.Equal(t, []string{"##[error]Process completed with exit code 1."}, single.Lines())

	checkout, ok := result.Tree.Get("build", "build/1_Checkout.txt", logtree.SingleLogsGroup)
	require.False(t, ok, "git chatter is cleaned away: %v", checkout)

	_, ok = result.Tree.Get("0_build.txt")
	assert.False(t, ok, "root-level entries are ignored")
}

func TestBuildTree_JSONShape(t *testing.T) {
	payload := buildZip(t, map[string]string{
		"lint/1_Lint.txt": "##[group]golangci-lint\nall good\n##[endgroup]\n",
	}, "lint/1_Lint.txt")

	result, err := BuildTree(payload)
	require.NoError(t, err)

	data, err := json.Marshal(map[string]any{"cleanedLog": result.Tree})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cleanedLog":{"lint":{"lint/1_Lint.txt":{"golangci-lint":["all good"]}}}}`, string(data))
}

func TestBuildTree_AllPrunedIsNull(t *testing.T) {
	payload := buildZip(t, map[string]string{
		"build/1_Fetch.txt": "Fetching the repository\nremote: Total 3\n",
	}, "build/1_Fetch.txt")

	result, err := BuildTree(payload)
	require.NoError(t, err)
	assert.True(t, result.Tree.IsEmpty())

	data, err := json.Marshal(result.Tree)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestBuildTree_SkipsUndecodableEntries(t *testing.T) {
	payload := buildZip(t, map[string]string{
		"build/1_Bad.txt":  "\xff\xfe",
		"build/2_Good.txt": "fine",
	}, "build/1_Bad.txt", "build/2_Good.txt")

	result, err := BuildTree(payload)
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "build/1_Bad.txt", result.Skipped[0].Name)

	lines, ok := result.Tree.Get("build", "build/2_Good.txt", logtree.SingleLogsGroup)
	require.True(t, ok)
	assert.Equal(t, []string{"fine"}, lines.Lines())
}

func TestBuildTree_MalformedArchive(t *testing.T) {
	_, err := BuildTree([]byte("not a zip"))
	var extractionErr *extract.ExtractionError
	require.True(t, errors.As(err, &extractionErr))
}

func TestBuildTreeWithLimits_TooLarge(t *testing.T) {
	payload := buildZip(t, map[string]string{"tests/1_Run tests.txt": testsLog}, "tests/1_Run tests.txt")

	_, err := BuildTreeWithLimits(payload, extract.Limits{MaxTotalBytes: 16})
	require.ErrorIs(t, err, extract.ErrTooLarge)

	result, err := BuildTreeWithLimits(payload, extract.Limits{MaxTotalBytes: int64(len(testsLog))})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Entries)
}

func TestBuildTree_ByteOrderMarkedStepFile(t *testing.T) {
	payload := buildZip(t, map[string]string{"tests/1_Run tests.txt": "\ufeff" + testsLog}, "tests/1_Run tests.txt")

	result, err := BuildTree(payload)
	require.NoError(t, err)
	groups, ok := result.Tree.Get("tests", "tests/1_Run tests.txt")
	require.True(t, ok)
	assert.Equal(t, []string{"Run go test ./...", "SingleLogs"}, groups.Branch().Keys())
}

func TestTraceLines(t *testing.T) {
	lines := TraceLines([]byte("\x1b[0KRunning job\n\n\x1b[31mERROR: failed\x1b[0m\n"))
	assert.Equal(t, []string{"Running job", "ERROR: failed"}, lines)
}
