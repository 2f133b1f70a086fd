// Package journal writes a zstd-compressed, append-only JSONL log of every
// DownloadResult a run produces, for post-hoc auditing without replaying
// git log. It is read-only output, not a retry/resume mechanism (see
// SPEC_FULL.md's Non-goals).
//
// Grounded on the teacher's Bundler in internal/downloader/downloader.go,
// which wraps an *os.File in a *zstd.Encoder the same way; here the
// encoder sits in front of a flat JSONL stream instead of a tar archive.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/gamdam-go/gamdam/internal/model"
)

// Journal serializes writes so the pipeline's concurrent tasks can all
// append results without racing on the underlying zstd.Encoder.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	zw   *zstd.Encoder
}

// Open creates (or truncates) path and returns a Journal writing
// zstd-compressed JSONL to it.
func Open(path string) (*Journal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", path, err)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: new zstd writer: %w", err)
	}
	return &Journal{file: f, zw: zw}, nil
}

// Append writes one DownloadResult as a JSON line.
func (j *Journal) Append(r model.DownloadResult) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("journal: encode result: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.zw.Write(line); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying zstd stream and file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.zw.Close(); err != nil {
		j.file.Close()
		return fmt.Errorf("journal: close zstd writer: %w", err)
	}
	return j.file.Close()
}
