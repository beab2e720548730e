package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processed struct {
	path   string
	output string
	err    error
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func startWatcher(t *testing.T, opts Options) <-chan processed {
	t.Helper()
	results := make(chan processed, 16)
	opts.OnProcessed = func(path, output string, err error) {
		results <- processed{path: path, output: output, err: err}
	}
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}

	w, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return results
}

func waitProcessed(t *testing.T, results <-chan processed) processed {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file to be processed")
		return processed{}
	}
}

func TestProcessFile_Archive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-42.zip")
	writeZip(t, path, map[string]string{
		"build/1_Build.txt": "##[group]Compile\ngo build ./...\n##[endgroup]\n",
	})

	output, err := ProcessFile(path)
	require.NoError(t, err)
	assert.Equal(t, path+".json", output)

	doc := readJSON(t, output)
	assert.Equal(t, map[string]any{
		"build": map[string]any{
			"build/1_Build.txt": map[string]any{"Compile": []any{"go build ./..."}},
		},
	}, doc["cleanedLog"])
	assert.NotContains(t, doc, "skipped")
}

func TestProcessFile_Trace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job-7.log")
	require.NoError(t, os.WriteFile(path, []byte("\x1b[32mok\x1b[0m\n\nERROR: Job failed\n"), 0644))

	output, err := ProcessFile(path)
	require.NoError(t, err)

	doc := readJSON(t, output)
	assert.Equal(t, []any{"ok", "ERROR: Job failed"}, doc["logs"])
}

func TestProcessFile_BadArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0644))

	_, err := ProcessFile(path)
	require.Error(t, err)
	assert.NoFileExists(t, path+".json")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Dir: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.log")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = New(Options{Dir: file})
	require.Error(t, err)

	_, err = New(Options{Dir: t.TempDir(), Pattern: "[unclosed"})
	require.Error(t, err)
}

func TestWatcher_ProcessesNewFiles(t *testing.T) {
	dir := t.TempDir()
	results := startWatcher(t, Options{Dir: dir})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	path := filepath.Join(dir, "job.log")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0644))

	r := waitProcessed(t, results)
	require.NoError(t, r.err)
	assert.Equal(t, path, r.path)
	assert.Equal(t, []any{"line one", "line two"}, readJSON(t, r.output)["logs"])
	assert.NoFileExists(t, filepath.Join(dir, "notes.txt.json"))
}

func TestWatcher_ProcessExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "before.log")
	require.NoError(t, os.WriteFile(path, []byte("already here\n"), 0644))

	results := startWatcher(t, Options{Dir: dir, ProcessExisting: true})

	r := waitProcessed(t, results)
	require.NoError(t, r.err)
	assert.Equal(t, path, r.path)
	assert.FileExists(t, path+".json")
}

func TestWatcher_Matches(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{Dir: dir})
	require.NoError(t, err)
	defer w.fsw.Close()

	for _, name := range []string{"a.zip", "b.log", "b.log.json", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.log"), 0755))

	assert.True(t, w.matches(filepath.Join(dir, "a.zip")))
	assert.True(t, w.matches(filepath.Join(dir, "b.log")))
	assert.False(t, w.matches(filepath.Join(dir, "b.log.json")))
	assert.False(t, w.matches(filepath.Join(dir, "c.txt")))
	assert.False(t, w.matches(filepath.Join(dir, "d.log")), "directories are skipped")
	assert.False(t, w.matches(filepath.Join(dir, "missing.log")))
}

func TestWatcher_IgnoresOwnOutput(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{Dir: dir, Pattern: "*"})
	require.NoError(t, err)
	defer w.fsw.Close()

	for _, name := range []string{"job.log", "job.log.json", ".pipewatch-123.tmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	assert.True(t, w.matches(filepath.Join(dir, "job.log")))
	assert.False(t, w.matches(filepath.Join(dir, "job.log.json")))
	assert.False(t, w.matches(filepath.Join(dir, ".pipewatch-123.tmp")))
}

func TestWatcher_ProcessesFilesInExistingSubdirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "run-42")
	require.NoError(t, os.Mkdir(sub, 0755))
	results := startWatcher(t, Options{Dir: dir, Pattern: "**/*.log"})

	path := filepath.Join(sub, "job.log")
	require.NoError(t, os.WriteFile(path, []byte("nested\n"), 0644))

	r := waitProcessed(t, results)
	require.NoError(t, r.err)
	assert.Equal(t, path, r.path)
	assert.Equal(t, []any{"nested"}, readJSON(t, r.output)["logs"])
}

func TestWatcher_ProcessesFilesInNewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	results := startWatcher(t, Options{Dir: dir, Pattern: "**/*.log"})

	nested := filepath.Join(dir, "run-43", "jobs")
	require.NoError(t, os.MkdirAll(nested, 0755))
	path := filepath.Join(nested, "job.log")
	require.NoError(t, os.WriteFile(path, []byte("created later\n"), 0644))

	r := waitProcessed(t, results)
	require.NoError(t, r.err)
	assert.Equal(t, path, r.path)
	assert.Equal(t, []any{"created later"}, readJSON(t, r.output)["logs"])
}

func TestWatcher_SupersededTimerDoesNotFire(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{Dir: dir, Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	defer w.fsw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan string, 4)
	path := filepath.Join(dir, "job.log")

	// The first timer fires while the lock is held and blocks on it, then
	// the path is rescheduled before the lock is released.
	w.mu.Lock()
	w.scheduleLocked(ctx, path, ready)
	time.Sleep(50 * time.Millisecond)
	w.scheduleLocked(ctx, path, ready)
	w.mu.Unlock()

	select {
	case got := <-ready:
		assert.Equal(t, path, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the rescheduled timer")
	}
	select {
	case <-ready:
		t.Fatal("path became ready twice")
	case <-time.After(100 * time.Millisecond):
	}

	w.mu.Lock()
	assert.Empty(t, w.timers)
	w.mu.Unlock()
}
