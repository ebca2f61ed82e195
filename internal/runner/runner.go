// Package runner drives one Wayback download job: it validates the request,
// appends everything the downloader prints to the job log and derives the
// run result from that log.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"warc-ops/internal/config"
	"warc-ops/internal/model"
	"warc-ops/internal/runstore"
	"warc-ops/internal/sink"
	"warc-ops/internal/wbdl"
)

const (
	ExitUsage          = 2
	ExitDownloader     = 3
	ExitBadConcurrency = 4

	// ArgCount is url, concurrency, output_dir, job_name.
	ArgCount = 4
)

// InputError is a request rejected before any side effect. Code is the process
// exit status the caller should use.
type InputError struct {
	Code int
	Err  error
}

func (e *InputError) Error() string { return e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }
func (e *InputError) ExitStatus() int { return e.Code }

type Request struct {
	URL         string
	Concurrency int
	OutputDir   string
	JobName     string
	Downloader  string
}

type Options struct {
	CompletionMarker string
	Echo             io.Writer
	Logger           *slog.Logger
	Sinks            *sink.Fanout
	Now              func() time.Time
}

// Validate checks the positional arguments in order: count, downloader,
// concurrency. Nothing is written before all three pass.
func Validate(args []string, downloaderBin string) (Request, error) {
	if len(args) != ArgCount {
		return Request{}, &InputError{
			Code: ExitUsage,
			Err:  fmt.Errorf("usage: run <url> <concurrency> <output_dir> <job_name> (got %d arguments)", len(args)),
		}
	}
	bin, err := wbdl.CheckExecutable(downloaderBin)
	if err != nil {
		return Request{}, &InputError{Code: ExitDownloader, Err: err}
	}
	if !config.ValidConcurrency(args[1]) {
		return Request{}, &InputError{
			Code: ExitBadConcurrency,
			Err:  fmt.Errorf("concurrency must be a positive integer, got %q", args[1]),
		}
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return Request{}, &InputError{Code: ExitBadConcurrency, Err: fmt.Errorf("concurrency %q: %w", args[1], err)}
	}
	return Request{
		URL:         args[0],
		Concurrency: n,
		OutputDir:   args[2],
		JobName:     args[3],
		Downloader:  bin,
	}, nil
}

// WaybackJobName derives the job name used for a whole-domain download.
func WaybackJobName(domain string) string {
	return "wb-" + strings.ReplaceAll(strings.TrimSpace(domain), ".", "-")
}

// Run executes a validated request. A non-zero downloader exit is recorded, not
// returned; err is only set when the job log itself cannot be written.
func Run(ctx context.Context, req Request, opts Options) (model.RunRecord, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	marker := opts.CompletionMarker
	if strings.TrimSpace(marker) == "" {
		marker = config.DefaultCompletionMarker
	}

	runID := newRunID()
	rec := model.RunRecord{
		RunResult:   model.RunResult{JobName: req.JobName},
		RunID:       runID,
		URL:         req.URL,
		Concurrency: req.Concurrency,
		OutputDir:   req.OutputDir,
		LogPath:     runstore.JobLogPath(req.OutputDir, req.JobName),
	}

	if err := runstore.Mkdir(runstore.JobLogDir(req.OutputDir)); err != nil {
		return rec, err
	}
	logFile, err := runstore.OpenAppend(rec.LogPath)
	if err != nil {
		return rec, err
	}

	started := now().UTC()
	rec.StartedAt = started.Format(time.RFC3339)
	if _, err := fmt.Fprintf(logFile, "[%s] START job=%s run_id=%s url=%s concurrency=%d output_dir=%s\n",
		rec.StartedAt, req.JobName, runID, req.URL, req.Concurrency, req.OutputDir); err != nil {
		_ = logFile.Close()
		return rec, fmt.Errorf("write start marker to %s: %w", rec.LogPath, err)
	}
	logger.Info("download started", "job", req.JobName, "run_id", runID, "url", req.URL, "concurrency", req.Concurrency)

	res, dlErr := wbdl.Download(ctx, wbdl.DownloadOptions{
		Binary:      req.Downloader,
		TargetURL:   req.URL,
		OutputDir:   req.OutputDir,
		Concurrency: req.Concurrency,
		LogWriter:   logFile,
		Echo:        opts.Echo,
		Progress: func(stream wbdl.OutputStream, line string) {
			logger.Debug("downloader", "job", req.JobName, "stream", string(stream), "line", line)
		},
	})
	if dlErr != nil {
		logger.Warn("downloader output incomplete", "job", req.JobName, "err", dlErr)
	}
	rec.ExitCode = res.ExitCode

	finished := now().UTC()
	rec.FinishedAt = finished.Format(time.RFC3339)
	_, werr := fmt.Fprintf(logFile, "[%s] END job=%s run_id=%s exit_code=%d\n", rec.FinishedAt, req.JobName, runID, rec.ExitCode)
	cerr := logFile.Close()
	if werr != nil {
		return rec, fmt.Errorf("write end marker to %s: %w", rec.LogPath, werr)
	}
	if cerr != nil {
		return rec, fmt.Errorf("close %s: %w", rec.LogPath, cerr)
	}

	summary, err := wbdl.ScanLogFile(rec.LogPath, marker)
	if err != nil {
		return rec, err
	}
	rec.Status = model.StatusFromLog(summary.Completed)
	rec.FilesDownloaded = summary.FilesDownloaded
	logger.Info("download ended",
		"job", req.JobName,
		"run_id", runID,
		"exit_code", rec.ExitCode,
		"status", rec.Status,
		"files", rec.FilesDownloaded,
		"elapsed", finished.Sub(started).String(),
	)

	if err := runstore.WriteJSON(runstore.RunRecordPath(req.OutputDir, req.JobName), rec); err != nil {
		logger.Warn("run record not written", "job", req.JobName, "err", err)
	}
	opts.Sinks.Publish(ctx, rec)
	return rec, nil
}

// Recompute derives the run result from an existing job log.
func Recompute(outputDir, jobName, marker string) (model.RunResult, error) {
	if strings.TrimSpace(marker) == "" {
		marker = config.DefaultCompletionMarker
	}
	path := runstore.JobLogPath(outputDir, jobName)
	if _, err := os.Stat(path); err != nil {
		return model.RunResult{}, fmt.Errorf("job log %s: %w", path, err)
	}
	summary, err := wbdl.ScanLogFile(path, marker)
	if err != nil {
		return model.RunResult{}, err
	}
	return model.RunResult{
		JobName:         jobName,
		Status:          model.StatusFromLog(summary.Completed),
		FilesDownloaded: summary.FilesDownloaded,
	}, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
