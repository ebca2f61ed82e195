package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"warc-ops/internal/discovery"
	"warc-ops/internal/model"
	"warc-ops/internal/replay"
)

type initResult struct {
	Collection   replay.InitResult      `json:"collection"`
	DoctorResult discovery.DoctorResult `json:"doctor"`
}

func newInitCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the replay collection and run environment checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			cfg := a.cfg
			col, err := replay.EnsureCollection(cmd.Context(),
				cfg.Sync.ManagerBin,
				cfg.Sync.CollectionsRoot,
				cfg.Sync.Collection,
				cfg.Sync.ArchiveDir,
				cfg.Sync.IndexDir,
			)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			res := initResult{Collection: col, DoctorResult: runDoctorChecks(a)}
			if jsonOut {
				if err := printJSON(a.stdout, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(a.stdout, "collection initialized")
				fmt.Fprintf(a.stdout, "collection_dir: %s\n", col.CollectionDir)
				fmt.Fprintf(a.stdout, "created: %t\n", col.Created)
				fmt.Fprintf(a.stdout, "archive_dir: %s\n", col.ArchiveDir)
				fmt.Fprintf(a.stdout, "index_dir: %s\n", col.IndexDir)
				fmt.Fprintln(a.stdout, "checks:")
				printChecks(a.stdout, res.DoctorResult, "  ")
			}
			if !res.DoctorResult.OK {
				return errors.New("doctor checks failed")
			}
			if !jsonOut {
				fmt.Fprintln(a.stdout, "next: warc-ops sync")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func newDoctorCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run dependency and filesystem preflight checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			res := runDoctorChecks(a)
			if jsonOut {
				if err := printJSON(a.stdout, res); err != nil {
					return err
				}
			} else {
				printChecks(a.stdout, res, "")
			}
			if !res.OK {
				return errors.New("doctor checks failed")
			}
			if !jsonOut {
				fmt.Fprintln(a.stdout, "doctor: all checks passed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func runDoctorChecks(a *app) discovery.DoctorResult {
	cfg := a.cfg
	mode, err := model.NormalizeIndexerMode(cfg.Sync.Indexer)
	if err != nil {
		a.log.Warn("unknown indexer mode, treating both indexers as optional", "indexer", cfg.Sync.Indexer)
	}
	return discovery.Doctor(discovery.DoctorOptions{
		DownloaderBin:  cfg.Runner.DownloaderBin,
		ManagerBin:     cfg.Sync.ManagerBin,
		CDXJIndexerBin: cfg.Sync.CDXJIndexerBin,
		IndexerMode:    mode,
		PriorityOn:     cfg.Priority.Enabled,
		ArchiveDir:     cfg.Sync.ArchiveDir,
		IndexDir:       cfg.Sync.IndexDir,
		OutputRoot:     cfg.Runner.OutputRoot,
	})
}

func printChecks(w io.Writer, res discovery.DoctorResult, indent string) {
	for _, c := range res.Checks {
		status := "ok"
		switch {
		case !c.OK && c.Required:
			status = "fail"
		case !c.OK:
			status = "warn"
		}
		fmt.Fprintf(w, "%s%s: %s (%s)\n", indent, c.Name, status, c.Message)
	}
}
