// Command gamdam drives git-annex to mass-download a JSONL stream of URLs
// into a working tree, attaching per-file metadata and mirror URLs as it
// goes, then optionally commits the result.
//
// Flag wiring follows the teacher's cmd/download-crates and
// cmd/generate-sidecars: the standard library flag package, no config
// file, -log-level/-log-format exactly as internal/logging documents.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/shlex"

	"github.com/gamdam-go/gamdam/internal/bootstrap"
	"github.com/gamdam-go/gamdam/internal/input"
	"github.com/gamdam-go/gamdam/internal/journal"
	"github.com/gamdam-go/gamdam/internal/logging"
	"github.com/gamdam-go/gamdam/internal/metrics"
	"github.com/gamdam-go/gamdam/internal/model"
	"github.com/gamdam-go/gamdam/internal/pipeline"
	"github.com/gamdam-go/gamdam/internal/progress"
	"github.com/gamdam-go/gamdam/internal/verify"
)

type config struct {
	addURLOpts    string
	chdir         string
	failures      string
	jobs          int
	logLevel      string
	logFormat     string
	message       string
	noSaveOnFail  bool
	save          bool
	noSave        bool
	metricsAddr   string
	journalPath   string
	progressIntv  time.Duration
	progressEvery int
	verifyDigests bool
	infile        string
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("gamdam", flag.ContinueOnError)
	cfg := &config{}

	fs.StringVar(&cfg.addURLOpts, "addurl-opts", "", "shell-quoted options passed through to `git-annex addurl`")
	fs.StringVar(&cfg.chdir, "chdir", ".", "working repository")
	fs.StringVar(&cfg.chdir, "C", ".", "working repository (shorthand)")
	fs.StringVar(&cfg.failures, "failures", "", "write one JSON record per failed Downloadable to FILE")
	fs.StringVar(&cfg.failures, "F", "", "write one JSON record per failed Downloadable to FILE (shorthand)")
	fs.IntVar(&cfg.jobs, "J", 0, "parallelism for add-URL (positive int; omitted means \"cpus\")")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "off|error|warn|info|debug|trace")
	fs.StringVar(&cfg.logLevel, "l", "info", "log level (shorthand)")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "text|json")
	fs.StringVar(&cfg.message, "message", "Downloaded {downloaded} URLs", "commit message ({downloaded} is replaced by the success count)")
	fs.StringVar(&cfg.message, "m", "Downloaded {downloaded} URLs", "commit message (shorthand)")
	fs.BoolVar(&cfg.noSaveOnFail, "no-save-on-fail", false, "skip the commit when any item failed")
	fs.BoolVar(&cfg.save, "save", true, "commit the working tree after the run")
	fs.BoolVar(&cfg.noSave, "no-save", false, "skip the commit entirely")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "serve Prometheus metrics and pprof at this address (e.g. :9090)")
	fs.StringVar(&cfg.journalPath, "journal", "", "append a zstd-compressed JSONL log of every DownloadResult to FILE")
	fs.DurationVar(&cfg.progressIntv, "progress-interval", 0, "periodic progress logging interval (0=disabled)")
	fs.IntVar(&cfg.progressEvery, "progress-every", 0, "log progress every N processed items (0=disabled)")
	fs.BoolVar(&cfg.verifyDigests, "verify-digests", false, "compute and log supplementary digests for each completed download")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.noSave {
		cfg.save = false
	}

	cfg.infile = "-"
	if fs.NArg() > 0 {
		cfg.infile = fs.Arg(0)
	}
	return cfg, nil
}

func (c *config) jobsArg() string {
	if c.jobs > 0 {
		return strconv.Itoa(c.jobs)
	}
	return "cpus"
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	level, err := logging.ParseLevel(strings.ToLower(cfg.logLevel))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	logger, runID := logging.New(os.Stderr, level, logging.Format(cfg.logFormat), "")
	logger.Info("starting", "run_id", runID, "pid", os.Getpid())

	addURLOpts, err := shlex.Split(cfg.addURLOpts)
	if err != nil {
		logger.Error("parsing --addurl-opts", "error", err)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	in, err := input.Open(cfg.infile)
	if err != nil {
		logger.Error("opening input", "error", err)
		return 1
	}
	items, err := input.Read(in, logger)
	in.Close()
	if err != nil {
		logger.Error("reading input", "error", err)
		return 1
	}
	logger.Info("loaded downloadables", "count", len(items))

	repoDir, err := bootstrap.EnsureAnnexRepo(ctx, logger, cfg.chdir)
	if err != nil {
		logger.Error("repository bootstrap failed", "error", err)
		return 1
	}

	met := metrics.New()
	metSrv := metrics.StartServer(cfg.metricsAddr, met, logger)
	defer metSrv.Shutdown(context.Background())

	var jr *journal.Journal
	if cfg.journalPath != "" {
		jr, err = journal.Open(cfg.journalPath)
		if err != nil {
			logger.Error("opening journal", "error", err)
			return 1
		}
		defer jr.Close()
	}

	counters := &progress.Counters{}
	reporter := progress.NewReporter(counters, logger, cfg.progressIntv)
	everyN := progress.NewEveryN(counters, logger, int64(cfg.progressEvery))

	progressCtx, stopProgress := context.WithCancel(ctx)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		reporter.Run(progressCtx)
	}()

	onResult := func(r model.DownloadResult) {
		if r.Successful() {
			counters.AddCompleted(0)
		} else {
			counters.AddFailed()
		}
		everyN.Tick()

		if jr != nil {
			if err := jr.Append(r); err != nil {
				logger.Error("journal append failed", "error", err)
			}
		}
		met.ObserveAddURL(r.AddURL.OK)
		if r.Metadata != nil {
			met.ObserveMetadata(r.Metadata.OK)
		}
		for _, o := range r.RegisterURLs {
			met.ObserveRegisterURL(o.OK)
		}

		if cfg.verifyDigests && r.Successful() && r.Key != "" {
			full := r.Downloadable.Path.String()
			digests, derr := verify.File(filepath.Join(repoDir, full))
			if derr != nil {
				logger.Debug("verify-digests failed", "path", full, "error", derr)
			} else {
				logger.Debug("verify-digests", append([]any{"path", full}, digests.LogFields()...)...)
			}
		}
	}

	report, err := pipeline.Download(ctx, items, pipeline.Options{
		RepoDir:       repoDir,
		AddURLOpts:    addURLOpts,
		Jobs:          cfg.jobsArg(),
		Logger:        logger,
		OnResult:      onResult,
		InFlightGauge: met.SetInFlight,
	})

	stopProgress()
	<-progressDone

	if err != nil {
		logger.Error("pipeline failed", "error", err)
		return 1
	}

	logger.Info("run complete", "successful", len(report.Successful), "failed", len(report.Failed))

	if cfg.failures != "" && len(report.Failed) > 0 {
		if err := input.WriteFailures(cfg.failures, report.Failed); err != nil {
			logger.Error("writing failures file", "error", err)
		}
	}

	if cfg.save && len(report.Successful) > 0 && !(cfg.noSaveOnFail && len(report.Failed) > 0) {
		message := strings.ReplaceAll(cfg.message, "{downloaded}", strconv.Itoa(len(report.Successful)))
		if err := bootstrap.CommitIfNeeded(ctx, logger, repoDir, message); err != nil {
			logger.Error("commit failed", "error", err)
			return 1
		}
	}

	if len(report.Failed) > 0 {
		return 1
	}
	return 0
}
