// Package pipeline is the core of gamdam: it multiplexes a producer of
// Downloadables into a long-lived `git-annex addurl` batch worker,
// concurrently drains that worker's interleaved progress/completion
// records, and for each completed download chats with two further batch
// workers (`git-annex metadata`, `git-annex registerurl`) to attach
// metadata and mirror URLs to the resulting key.
//
// Ported from the Coordinator described in spec.md §4.5, with the
// concurrent feed/read/post-process fan-in implemented as an errgroup.Group
// the way _examples/other_examples' download pipelines
// (gocica-go-gocica's internal/remote/core/download.go,
// xieincz-huggingface-go's main.go) use golang.org/x/sync/errgroup to
// cancel siblings on the first error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/gamdam-go/gamdam/internal/annex"
	"github.com/gamdam-go/gamdam/internal/chanutil"
	"github.com/gamdam-go/gamdam/internal/inflight"
	"github.com/gamdam-go/gamdam/internal/model"
)

// Options configures one Download run.
type Options struct {
	// RepoDir is the git-annex working tree to run the three workers in.
	RepoDir string
	// AddURLOpts is passed through to `git-annex addurl` verbatim (already
	// shell-split by the caller).
	AddURLOpts []string
	// Jobs is addurl's `--jobs` value: "cpus" or a positive integer,
	// per spec.md §6's `-J`.
	Jobs string
	// AnnexBin overrides the "git-annex" binary name; tests point this at
	// a fake batch-protocol script. Empty means "git-annex".
	AnnexBin string

	Logger *slog.Logger

	// OnResult, when non-nil, is called once per DownloadResult in the
	// order the post-processor produces them (successes and failures
	// alike) — the journal and progress reporter hang off this hook.
	OnResult func(model.DownloadResult)
	// InFlightGauge, when non-nil, is called after every Add/Pop with the
	// current InFlightMap size, for the --metrics-addr gauge.
	InFlightGauge func(n int)
}

// Download runs the full three-worker pipeline over items and returns the
// partitioned Report. A single failure in any of the feed/read/post-process
// tasks cancels the others and forces a bounded-grace termination of all
// three git-annex subprocesses.
func Download(ctx context.Context, items []model.Downloadable, opts Options) (model.Report, error) {
	jobs := opts.Jobs
	if jobs == "" {
		jobs = "cpus"
	}

	bin := opts.AnnexBin
	if bin == "" {
		bin = "git-annex"
	}

	addArgs := append([]string{"addurl", "--batch", "--json", "--json-error-messages",
		"--with-files", "--jobs", jobs, "--json-progress"}, opts.AddURLOpts...)

	var report model.Report
	err := annex.InContext[*annex.AddURLOutput](ctx, bin, opts.RepoDir, addArgs, func(addProc *annex.Process[*annex.AddURLOutput]) error {
		return annex.InContext[*annex.MetadataOutput](ctx, bin, opts.RepoDir,
			[]string{"metadata", "--batch", "--json", "--json-error-messages"},
			func(metaProc *annex.Process[*annex.MetadataOutput]) error {
				return annex.InContext[*annex.RegisterURLOutput](ctx, bin, opts.RepoDir,
					[]string{"registerurl", "--batch", "--json", "--json-error-messages"},
					func(regProc *annex.Process[*annex.RegisterURLOutput]) error {
						rep, rerr := run(ctx, items, opts, addProc, metaProc, regProc)
						report = rep
						return rerr
					})
			})
	})

	return report, err
}

// run wires the feed/read/post-process tasks together. It assumes the three
// workers are already spawned and owns none of their teardown: that is the
// surrounding InContext calls' job, triggered by this function's return
// value.
func run(
	ctx context.Context,
	items []model.Downloadable,
	opts Options,
	addProc *annex.Process[*annex.AddURLOutput],
	metaProc *annex.Process[*annex.MetadataOutput],
	regProc *annex.Process[*annex.RegisterURLOutput],
) (model.Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	flight := inflight.New()
	results := chanutil.NewUnbounded[model.DownloadResult]()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return feed(gctx, items, flight, addProc, logger, opts.InFlightGauge)
	})

	g.Go(func() error {
		defer close(results.In)
		return read(gctx, addProc, flight, results.In, logger, opts.InFlightGauge)
	})

	var report model.Report
	g.Go(func() error {
		return postProcess(gctx, results.Out, metaProc, regProc, &report, logger, opts.OnResult)
	})

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// feed sends one AddURLRequest per item, in order, then closes addurl's
// stdin so it drains its remaining work and EOFs its stdout. A duplicate
// path is logged and dropped rather than failing the run (spec.md S3).
func feed(
	ctx context.Context,
	items []model.Downloadable,
	flight *inflight.Map,
	addProc *annex.Process[*annex.AddURLOutput],
	logger *slog.Logger,
	gauge func(int),
) error {
	for _, d := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := flight.Add(d); err != nil {
			logger.Warn("duplicate path, dropping", "path", d.Path.String(), "url", d.URL)
			continue
		}
		if gauge != nil {
			gauge(flight.Len())
		}

		logger.Info("feeding", "path", d.Path.String(), "url", d.URL)
		if err := addProc.Send(annex.AddURLRequest{URL: d.URL, Path: d.Path.String()}); err != nil {
			return fmt.Errorf("pipeline: feed: %w", err)
		}
	}
	return addProc.CloseStdin()
}

// read drains addurl's stdout until EOF, logging progress and turning each
// Completion into a DownloadResult on out. It is the only task permitted to
// Pop from flight: every file it sees was, by construction, previously
// Added by feed.
func read(
	ctx context.Context,
	addProc *annex.Process[*annex.AddURLOutput],
	flight *inflight.Map,
	out chan<- model.DownloadResult,
	logger *slog.Logger,
	gauge func(int),
) (err error) {
	// flight.Pop panics on a path that was never Added — a protocol
	// violation per spec.md §7. Recover it here so it aborts the pipeline
	// through the normal errgroup error path (and so the other two
	// workers still get torn down) instead of crashing the process.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: read: %v", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := addProc.Recv()
		if err != nil {
			if isEOF(err) {
				return nil
			}
			return fmt.Errorf("pipeline: read: %w", err)
		}

		file := rec.File()

		if rec.IsProgress {
			// A progress record's file is optional: git-annex can report
			// progress for a not-yet-named target mid-download.
			logProgress(logger, file, rec)
			continue
		}

		if file == "" {
			return fmt.Errorf("pipeline: read: completion record with no file: %+v", rec)
		}

		logger.Info("completed", "path", file, "success", rec.AnnexResult.Success)
		d := flight.Pop(file)
		if gauge != nil {
			gauge(flight.Len())
		}

		result := model.DownloadResult{Downloadable: d, Key: rec.Key}
		if err := rec.Check(); err != nil {
			result.AddURL = model.Failed(err.Error())
		} else {
			result.AddURL = model.Ok()
		}

		select {
		case out <- result:
		case <-ctx.Done():
			// The post-processor (or another sibling) already failed;
			// tolerate the drop per spec.md §4.5.
			return ctx.Err()
		}
	}
}

func logProgress(logger *slog.Logger, file string, rec *annex.AddURLOutput) {
	percent := rec.PercentProgress
	if percent == "" {
		percent = "??.??%"
	}
	logger.Debug("progress", "path", file, "bytes", rec.ByteProgress, "percent", percent)
}

// postProcess consumes DownloadResults in arrival order and, for each
// successful keyed download, chats the metadata and registerurl workers
// strictly sequentially (metadata first, then extra_urls in declaration
// order) before partitioning the result into report.Successful or
// report.Failed.
func postProcess(
	ctx context.Context,
	in <-chan model.DownloadResult,
	metaProc *annex.Process[*annex.MetadataOutput],
	regProc *annex.Process[*annex.RegisterURLOutput],
	report *model.Report,
	logger *slog.Logger,
	onResult func(model.DownloadResult),
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-in:
			if !ok {
				return nil
			}

			if !result.AddURL.OK {
				report.Add(result)
				if onResult != nil {
					onResult(result)
				}
				continue
			}

			if result.Key == "" {
				if len(result.Downloadable.Metadata) > 0 || len(result.Downloadable.ExtraURLs) > 0 {
					logger.Warn("download succeeded without a key; cannot attach metadata/extra urls",
						"path", result.Downloadable.Path.String())
				}
				report.Add(result)
				if onResult != nil {
					onResult(result)
				}
				continue
			}

			if len(result.Downloadable.Metadata) > 0 {
				out, err := metaProc.Chat(annex.MetadataRequest{Key: result.Key, Fields: result.Downloadable.Metadata})
				if err != nil {
					return fmt.Errorf("pipeline: postprocess: metadata chat: %w", err)
				}
				if cerr := out.Check(); cerr != nil {
					result.Metadata = ptrOutcome(model.Failed(cerr.Error()))
				} else {
					result.Metadata = ptrOutcome(model.Ok())
				}
			}

			if n := len(result.Downloadable.ExtraURLs); n > 0 {
				result.RegisterURLs = make(map[string]model.Outcome, n)
				for _, u := range result.Downloadable.ExtraURLs {
					out, err := regProc.Chat(annex.RegisterURLRequest{Key: result.Key, URL: u})
					if err != nil {
						return fmt.Errorf("pipeline: postprocess: registerurl chat: %w", err)
					}
					if cerr := out.Check(); cerr != nil {
						result.RegisterURLs[u] = model.Failed(cerr.Error())
					} else {
						result.RegisterURLs[u] = model.Ok()
					}
				}
			}

			report.Add(result)
			if onResult != nil {
				onResult(result)
			}
		}
	}
}

func ptrOutcome(o model.Outcome) *model.Outcome { return &o }

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
