package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"warc-ops/internal/runner"
	"warc-ops/internal/sink"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url> <concurrency> <output_dir> <job_name>",
		Short: "Run one Wayback download and print job_name:STATUS,files_downloaded",
		Long: `Run the Wayback Machine downloader for <url>, appending all of its output to
<output_dir>/log/<job_name>.log. Prints exactly one line to stdout:

  job_name:FINISHED|FAILED,files_downloaded

Exit codes: 2 wrong argument count, 3 downloader missing or not executable,
4 invalid concurrency, 0 otherwise (the downloader's own exit code is logged).`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			return runDownload(cmd, a, args)
		},
	}
	addRunnerFlags(cmd)
	// flags end at the first positional so a negative concurrency reaches Validate
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newWaybackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wayback <domain>",
		Short: "Download a whole domain into <output_root>/wb-<domain>",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if len(args) != 1 {
				return &ExitError{Code: runner.ExitUsage, Err: errors.New("usage: wayback <domain>")}
			}
			job := runner.WaybackJobName(args[0])
			outDir := filepath.Join(a.cfg.Runner.OutputRoot, job)
			return runDownload(cmd, a, []string{args[0], strconv.Itoa(a.cfg.Runner.Concurrency), outDir, job})
		},
	}
	addRunnerFlags(cmd)
	cmd.Flags().Int("concurrency", 0, "downloader concurrency (default from runner.concurrency)")
	cmd.Flags().String("output-root", "", "parent directory for job output")
	bindFlag(cmd.Flags(), "concurrency", "runner.concurrency")
	bindFlag(cmd.Flags(), "output-root", "runner.output_root")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newResultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result <output_dir> <job_name>",
		Short: "Recompute the result line from an existing job log",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if len(args) != 2 {
				return &ExitError{Code: runner.ExitUsage, Err: errors.New("usage: result <output_dir> <job_name>")}
			}
			res, err := runner.Recompute(args[0], args[1], a.cfg.Runner.CompletionMarker)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, res.Line())
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func addRunnerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("downloader", "", "downloader executable (name on PATH or path)")
	f.String("marker", "", "completion marker searched in the job log")
	f.Bool("echo", false, "mirror downloader output to stderr")
	bindFlag(f, "downloader", "runner.downloader_bin")
	bindFlag(f, "marker", "runner.completion_marker")
	bindFlag(f, "echo", "runner.echo")
}

func runDownload(cmd *cobra.Command, a *app, args []string) error {
	req, err := runner.Validate(args, a.cfg.Runner.DownloaderBin)
	if err != nil {
		return err
	}

	sinks := sink.FromConfig(cmd.Context(), a.cfg.Sinks, a.log.Logger)
	defer func() {
		if err := sinks.Close(); err != nil {
			a.log.Warn("closing result sinks", "err", err)
		}
	}()

	opts := runner.Options{
		CompletionMarker: a.cfg.Runner.CompletionMarker,
		Logger:           a.log.Logger,
		Sinks:            sinks,
	}
	if a.cfg.Runner.Echo {
		opts.Echo = a.stderr
	}
	rec, err := runner.Run(cmd.Context(), req, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, rec.Line())
	return nil
}
