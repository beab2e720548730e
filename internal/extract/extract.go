// Package extract pulls per-file log text out of downloaded CI log artifacts.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"github.com/klauspost/compress/zip"
)

// ErrTooLarge is wrapped in the ExtractionError of an archive whose entries
// decompress past the configured limits.
var ErrTooLarge = errors.New("log archive decompresses past the size limit")

// Limits bound the decompressed size of an archive. Zero disables a limit.
type Limits struct {
	MaxEntryBytes int64
	MaxTotalBytes int64
}

// DefaultLimits allow 256 MiB per entry and 1 GiB per archive.
var DefaultLimits = Limits{
	MaxEntryBytes: 256 << 20,
	MaxTotalBytes: 1 << 30,
}

// ExtractionError reports an archive that could not be opened.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to open log archive: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// EncodingError reports an archive entry that was skipped because its bytes
// could not be read or are not valid UTF-8.
type EncodingError struct {
	Name string
	Err  error // nil when the bytes were read but are not UTF-8
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to read log entry %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("log entry %s is not valid UTF-8", e.Name)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Entry is one log file found inside a job folder of an archive.
type Entry struct {
	Folder string // first path segment, e.g. "build"
	Name   string // full entry name, e.g. "build/1_Set up job.txt"
	Text   string
}

// Result holds the entries of an archive in archive order.
type Result struct {
	Entries []Entry
	Skipped []*EncodingError
}

// Archive reads the entries of a GitHub Actions log ZIP within DefaultLimits.
func Archive(payload []byte) (*Result, error) {
	return ArchiveWithLimits(payload, DefaultLimits)
}

// ArchiveWithLimits reads the entries of a GitHub Actions log ZIP.
// Directories and files at the archive root are ignored; only files inside a
// folder are returned. An entry or archive that decompresses past limits
// fails the whole archive with an ExtractionError wrapping ErrTooLarge.
func ArchiveWithLimits(payload []byte, limits Limits) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}

	var total int64
	result := &Result{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		parts := strings.Split(f.Name, "/")
		if len(parts) < 2 {
			continue
		}

		limit, limited := limits.entryLimit(total)
		data, err := readEntry(f, limit, limited)
		if errors.Is(err, ErrTooLarge) {
			return nil, &ExtractionError{Err: fmt.Errorf("%w: entry %s", ErrTooLarge, f.Name)}
		}
		if err != nil {
			result.Skipped = append(result.Skipped, &EncodingError{Name: f.Name, Err: err})
			continue
		}
		total += int64(len(data))
		if !utf8.Valid(data) {
			result.Skipped = append(result.Skipped, &EncodingError{Name: f.Name})
			continue
		}

		result.Entries = append(result.Entries, Entry{
			Folder: parts[0],
			Name:   f.Name,
			Text:   string(data),
		})
	}
	return result, nil
}

// entryLimit returns the most bytes the next entry may decompress to once
// used bytes were read, and whether any limit applies.
func (l Limits) entryLimit(used int64) (int64, bool) {
	limit, limited := l.MaxEntryBytes, l.MaxEntryBytes > 0
	if l.MaxTotalBytes > 0 {
		remaining := max(l.MaxTotalBytes-used, 0)
		if !limited || remaining < limit {
			limit, limited = remaining, true
		}
	}
	return limit, limited
}

// readEntry decompresses f. The declared size is checked first but not
// trusted: reading stops one byte past limit.
func readEntry(f *zip.File, limit int64, limited bool) ([]byte, error) {
	if limited && f.UncompressedSize64 > uint64(limit) {
		return nil, ErrTooLarge
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if !limited {
		return io.ReadAll(rc)
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Lines splits a log text into raw lines. A leading byte order mark is
// dropped, as is a trailing "\r" on each line. The empty remainder after a
// final newline is not a line.
// Input:  "a\r\nb\n"
// Output: ["a", "b"]
func Lines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Trace converts a single job trace into its non-blank lines with all ANSI
// escape sequences removed. Invalid UTF-8 is replaced rather than rejected.
func Trace(payload []byte) []string {
	text := ansi.Strip(strings.ToValidUTF8(string(payload), "�"))

	var lines []string
	for _, line := range Lines(text) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if lines == nil {
		return []string{}
	}
	return lines
}
