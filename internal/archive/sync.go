package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"warc-ops/internal/discovery"
	"warc-ops/internal/model"
	"warc-ops/internal/replay"
	"warc-ops/internal/runstore"
)

type SyncOptions struct {
	Globs         []string
	Collection    string
	ArchiveDir    string
	IndexDir      string
	Indexer       replay.Indexer
	FailurePolicy string
	Logger        *slog.Logger
	Progress      func(entry model.SyncEntry)
}

// ErrSyncFailures is returned under the continue policy when at least one WARC
// could not be linked or indexed.
var ErrSyncFailures = errors.New("sync finished with failures")

// Sync links every discovered WARC into the archive directory and indexes the
// ones without a non-empty index artifact. Files are handled one at a time in
// glob order. The returned report is populated even when err is non-nil.
func Sync(ctx context.Context, opts SyncOptions) (model.SyncReport, error) {
	if opts.Indexer == nil {
		return model.SyncReport{}, errors.New("sync requires an indexer")
	}
	if strings.TrimSpace(opts.Collection) == "" {
		return model.SyncReport{}, errors.New("sync requires a collection name")
	}
	policy, err := model.NormalizeFailurePolicy(opts.FailurePolicy)
	if err != nil {
		return model.SyncReport{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	report := model.SyncReport{
		Collection: opts.Collection,
		Mode:       opts.Indexer.Mode(),
		Entries:    make([]model.SyncEntry, 0),
	}
	if err := runstore.Mkdir(opts.ArchiveDir); err != nil {
		return report, err
	}
	if err := runstore.Mkdir(opts.IndexDir); err != nil {
		return report, err
	}

	warcs, err := discovery.DiscoverWARCs(opts.Globs)
	if err != nil {
		return report, err
	}
	report.Matched = len(warcs)
	logger.Info("sync started", "collection", opts.Collection, "mode", report.Mode, "warcs", len(warcs))
	started := time.Now()

	for _, w := range warcs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry, err := syncOne(ctx, opts, logger, w)
		switch {
		case err != nil:
			report.Failures++
		case entry.SkipReason != "":
			report.Skipped++
		}
		if entry.LinkedNow {
			report.Linked++
		}
		if entry.IndexedNow {
			report.Indexed++
		}
		report.Entries = append(report.Entries, entry)
		if opts.Progress != nil {
			opts.Progress(entry)
		}
		if err != nil {
			logger.Error("sync item failed", "warc", w.Path, "err", err)
			if policy == model.FailurePolicyFailFast {
				return report, err
			}
		}
	}

	logger.Info("sync finished",
		"collection", opts.Collection,
		"linked", report.Linked,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failures", report.Failures,
		"elapsed", FormatElapsed(time.Since(started)),
	)
	if report.Failures > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrSyncFailures, report.Failures, report.Matched)
	}
	return report, nil
}

func syncOne(ctx context.Context, opts SyncOptions, logger *slog.Logger, w model.WARCFile) (model.SyncEntry, error) {
	entry := model.SyncEntry{
		WARC:      w.Path,
		LinkPath:  filepath.Join(opts.ArchiveDir, w.Name),
		IndexPath: replay.IndexPathFor(opts.IndexDir, w.Name),
	}

	created, err := runstore.EnsureSymlink(w.Path, entry.LinkPath)
	if err != nil {
		entry.Error = err.Error()
		return entry, err
	}
	entry.LinkedNow = created
	if created {
		logger.Info("linked", "warc", w.Path, "link", entry.LinkPath)
	}

	indexed, size, err := runstore.NonEmptyFile(entry.IndexPath)
	if err != nil {
		entry.Error = err.Error()
		return entry, err
	}
	if indexed {
		entry.SkipReason = "already indexed"
		logger.Info("index exists, skipping", "warc", w.Name, "index", entry.IndexPath, "size", FormatBytesIEC(size))
		return entry, nil
	}

	logger.Info("indexing", "warc", w.Name, "mode", opts.Indexer.Mode())
	err = opts.Indexer.Index(ctx, replay.Target{
		Collection: opts.Collection,
		WARCPath:   w.Path,
		LinkPath:   entry.LinkPath,
		IndexPath:  entry.IndexPath,
	})
	if err != nil {
		entry.Error = err.Error()
		return entry, fmt.Errorf("index %s: %w", w.Name, err)
	}
	entry.IndexedNow = true
	logger.Info("indexed", "warc", w.Name, "index", entry.IndexPath)
	return entry, nil
}
