package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"warc-ops/internal/archive"
	"warc-ops/internal/config"
	"warc-ops/internal/model"
	"warc-ops/internal/replay"
)

func newSyncCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Link new WARC files into the collection and index the unindexed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			return runSync(cmd, a, nil, jsonOut)
		},
	}
	f := cmd.Flags()
	f.StringSlice("glob", nil, "WARC glob pattern (repeatable, or comma-separated)")
	f.String("collection", "", "replay collection name")
	f.String("collections-root", "", "directory holding the replay collections")
	f.String("archive-dir", "", "collection archive dir (default: <collections_root>/<collection>/archive)")
	f.String("index-dir", "", "collection index dir (default: <collections_root>/<collection>/indexes)")
	f.String("indexer", "", "indexing mode: manager|cdxj")
	f.String("failure-policy", "", "on link/index failure: fail-fast|continue")
	f.Bool("priority", true, "run indexers under nice/ionice")
	f.BoolVar(&jsonOut, "json", false, "print the sync report as JSON")
	bindFlag(f, "glob", "sync.warc_globs")
	bindFlag(f, "collection", "sync.collection")
	bindFlag(f, "collections-root", "sync.collections_root")
	bindFlag(f, "archive-dir", "sync.archive_dir")
	bindFlag(f, "index-dir", "sync.index_dir")
	bindFlag(f, "indexer", "sync.indexer")
	bindFlag(f, "failure-policy", "sync.failure_policy")
	bindFlag(f, "priority", "priority.enabled")
	return cmd
}

// runSync runs one sync pass. globs, when non-empty, replaces the configured
// patterns.
func runSync(cmd *cobra.Command, a *app, globs []string, jsonOut bool) error {
	cfg := a.cfg
	if err := cfg.ValidateSync(); err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	idx, err := newIndexer(cfg)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	if len(globs) == 0 {
		globs = cfg.Sync.WARCGlobs
	}

	opts := archive.SyncOptions{
		Globs:         globs,
		Collection:    cfg.Sync.Collection,
		ArchiveDir:    cfg.Sync.ArchiveDir,
		IndexDir:      cfg.Sync.IndexDir,
		Indexer:       idx,
		FailurePolicy: cfg.Sync.FailurePolicy,
		Logger:        a.log.Logger,
	}
	report, err := archive.Sync(cmd.Context(), opts)
	if jsonOut {
		if perr := printJSON(a.stdout, report); perr != nil && err == nil {
			err = perr
		}
	} else {
		fmt.Fprintf(a.stdout, "sync: collection=%s mode=%s matched=%d linked=%d indexed=%d skipped=%d failures=%d\n",
			report.Collection, report.Mode, report.Matched, report.Linked, report.Indexed, report.Skipped, report.Failures)
	}
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}

func newIndexer(cfg *config.Config) (replay.Indexer, error) {
	mode, err := model.NormalizeIndexerMode(cfg.Sync.Indexer)
	if err != nil {
		return nil, err
	}
	return replay.NewIndexer(replay.IndexerOptions{
		Mode:            mode,
		ManagerBin:      cfg.Sync.ManagerBin,
		CDXJIndexerBin:  cfg.Sync.CDXJIndexerBin,
		CollectionsRoot: cfg.Sync.CollectionsRoot,
		Priority:        priorityFrom(cfg),
	})
}

func priorityFrom(cfg *config.Config) replay.Priority {
	return replay.Priority{
		Enabled:     cfg.Priority.Enabled,
		Nice:        cfg.Priority.Nice,
		IONiceClass: cfg.Priority.IONiceClass,
	}
}
