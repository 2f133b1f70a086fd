// Package progress renders git-annex addurl progress records as
// human-readable text and periodically logs run-wide throughput summaries.
//
// The percent/byte formatting is grounded on
// SatyamHitman-go-ofscraper/internal/download/progress/convert.go (the same
// go-humanize wrapping); the periodic ticker+counters idiom is adapted from
// the teacher's internal/sidecar.Generate ticker-driven progress logging.
package progress

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count the way a completed/failed summary line
// does.
func FormatBytes(n int64) string {
	return humanize.Bytes(uint64(n))
}

// FormatLine renders one addurl progress record. When git-annex hasn't
// reported a total size yet (S6: early in a download, or a server that
// never sends Content-Length), percentProgress is empty and this falls
// back to the literal "??.??%"/"???" placeholders spec.md's S6 scenario
// requires, rather than printing a misleading 0%/0B.
func FormatLine(file string, byteProgress int64, totalSize *int64, percentProgress string) string {
	percent := percentProgress
	if percent == "" {
		percent = "??.??%"
	}
	total := "???"
	if totalSize != nil {
		total = humanize.Bytes(uint64(*totalSize))
	}
	return file + ": " + FormatBytes(byteProgress) + " / " + total + " (" + percent + ")"
}

// Counters accumulates run-wide totals as the pipeline produces results.
// All fields are updated with atomic operations so addurl/metadata/
// registerurl workers and the reporting ticker can touch them concurrently
// without a lock.
type Counters struct {
	Completed int64
	Failed    int64
	BytesDone int64
}

func (c *Counters) AddCompleted(bytes int64) {
	atomic.AddInt64(&c.Completed, 1)
	atomic.AddInt64(&c.BytesDone, bytes)
}

func (c *Counters) AddFailed() {
	atomic.AddInt64(&c.Failed, 1)
}

func (c *Counters) snapshot() (completed, failed, bytesDone int64) {
	return atomic.LoadInt64(&c.Completed), atomic.LoadInt64(&c.Failed), atomic.LoadInt64(&c.BytesDone)
}

// Reporter periodically logs a summary of Counters until ctx is cancelled.
type Reporter struct {
	counters *Counters
	logger   *slog.Logger
	interval time.Duration
}

// NewReporter builds a Reporter. interval <= 0 disables periodic logging
// (Run returns immediately).
func NewReporter(counters *Counters, logger *slog.Logger, interval time.Duration) *Reporter {
	return &Reporter{counters: counters, logger: logger, interval: interval}
}

// Run logs one summary line every interval until ctx.Done(), and one final
// summary right before returning.
func (r *Reporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logSummary()
			return
		case <-ticker.C:
			r.logSummary()
		}
	}
}

func (r *Reporter) logSummary() {
	completed, failed, bytesDone := r.counters.snapshot()
	r.logger.Info("progress",
		"completed", completed,
		"failed", failed,
		"bytes", FormatBytes(bytesDone),
	)
}

// EveryN reports progress every n completed-or-failed items instead of on a
// timer, for --progress-every. Call Tick after each result is processed;
// it logs a summary when the processed count is a multiple of n.
type EveryN struct {
	counters *Counters
	logger   *slog.Logger
	n        int64
}

// NewEveryN builds an EveryN reporter. n <= 0 disables it (Tick is a no-op).
func NewEveryN(counters *Counters, logger *slog.Logger, n int64) *EveryN {
	return &EveryN{counters: counters, logger: logger, n: n}
}

func (e *EveryN) Tick() {
	if e.n <= 0 {
		return
	}
	completed, failed, _ := e.counters.snapshot()
	if (completed+failed)%e.n == 0 {
		e.logSummary(completed, failed)
	}
}

func (e *EveryN) logSummary(completed, failed int64) {
	_, _, bytesDone := e.counters.snapshot()
	e.logger.Info("progress",
		"completed", completed,
		"failed", failed,
		"bytes", FormatBytes(bytesDone),
	)
}
