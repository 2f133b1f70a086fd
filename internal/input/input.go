// Package input reads the JSONL stream of Downloadables gamdam is asked to
// fetch, and writes the JSONL failure report at the end of a run.
//
// Grounded on the teacher's ReadURLs/ReadChecksums in
// internal/downloader/downloader.go: a buffered line scanner tolerant of a
// large single line (spec.md §6 promises lines up to 65535 bytes), with
// malformed lines logged and dropped rather than aborting the whole read.
package input

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gamdam-go/gamdam/internal/model"
)

// maxLineBytes matches spec.md §6's documented line-length ceiling for the
// input file.
const maxLineBytes = 65535

// Read parses one Downloadable per line from r. A line that isn't valid
// JSON, whose path fails relpath.Normalize during json.Unmarshal, or whose
// path or url is missing, is logged at warn level (with its 1-based line
// number) and dropped; it does not abort the read (spec.md S5). The url is
// only checked for being non-empty; it is not parsed as a URL.
func Read(r io.Reader, logger *slog.Logger) ([]model.Downloadable, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes+1)

	var items []model.Downloadable
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var d model.Downloadable
		if err := json.Unmarshal(line, &d); err != nil {
			logger.Warn("skipping unparseable input line", "line", lineNo, "error", err)
			continue
		}
		if d.URL == "" {
			logger.Warn("skipping input line with empty url", "line", lineNo)
			continue
		}
		if d.Path.IsZero() {
			logger.Warn("skipping input line with missing path", "line", lineNo)
			continue
		}
		items = append(items, d)
	}
	if err := scanner.Err(); err != nil {
		return items, fmt.Errorf("input: read: %w", err)
	}
	return items, nil
}

// Open opens path for reading, or stdin when path is "" or "-", per
// spec.md §6's `infile` positional argument.
func Open(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: open %s: %w", path, err)
	}
	return f, nil
}

// WriteFailures writes one JSON Downloadable per line, in results order,
// to path — the original input shape for each failed item (spec.md §6's
// failure-report format, supplemented per SPEC_FULL.md: this was a TODO
// stub in original_source/src/main.rs).
func WriteFailures(path string, failed []model.DownloadResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("input: create failures file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range failed {
		line, err := json.Marshal(r.Downloadable)
		if err != nil {
			return fmt.Errorf("input: encode failed downloadable: %w", err)
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("input: write failures file: %w", err)
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("input: write failures file: %w", err)
		}
	}
	return w.Flush()
}
