package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"warc-ops/internal/config"
	"warc-ops/internal/logging"
)

type contextKey string

const appContextKey contextKey = "warcops"

// flagKeyAnnotation maps a flag to the config key it overrides.
const flagKeyAnnotation = "warcops_config_key"

// app is the per-invocation state every command reads from its context.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	stdout io.Writer
	stderr io.Writer
}

func Run(ctx context.Context, args []string) error {
	return Execute(ctx, args, os.Stdout, os.Stderr)
}

// Execute runs one command line. stdout only ever receives results; logs and
// diagnostics go to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var state *app
	root := newRootCmd(stdout, stderr, &state)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if state != nil {
		_ = state.log.Close()
	}
	return err
}

func newRootCmd(stdout, stderr io.Writer, state **app) *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:   "warc-ops",
		Short: "Operator tooling for WARC collections and Wayback downloads",
		Long: `warc-ops links freshly crawled WARC files into a replay collection and
indexes them, and runs Wayback Machine downloads with a parseable result line.

Quick start:
  warc-ops init
  warc-ops sync
  warc-ops run <url> <concurrency> <output_dir> <job_name>`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				keys := f.Annotations[flagKeyAnnotation]
				if len(keys) == 0 {
					return
				}
				if sv, ok := f.Value.(pflag.SliceValue); ok {
					cfg.Override(keys[0], sv.GetSlice())
					return
				}
				cfg.Override(keys[0], f.Value.String())
			})
			if err := cfg.Refresh(); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
				Output: stderr,
			})
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			a := &app{cfg: cfg, log: logger, stdout: stdout, stderr: stderr}
			*state = a
			if used := cfg.ConfigFileUsed(); used != "" {
				logger.Debug("config loaded", "file", used)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appContextKey, a))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (YAML). Searches: warc-ops.yaml, .warc-ops/config.yaml")
	pf.String("log-level", "", "log level: debug|info|warn|error")
	pf.String("log-format", "", "log format: text|json")
	pf.String("log-file", "", "also append logs to this file")
	bindFlag(pf, "log-level", "log.level")
	bindFlag(pf, "log-format", "log.format")
	bindFlag(pf, "log-file", "log.file")

	root.AddCommand(
		newSyncCmd(),
		newRunCmd(),
		newWaybackCmd(),
		newResultCmd(),
		newInitCmd(),
		newDoctorCmd(),
		newStatusCmd(),
		newBrowseCmd(),
	)
	return root
}

// bindFlag marks a flag so that, when set, it overrides key in the config.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	_ = fs.SetAnnotation(name, flagKeyAnnotation, []string{key})
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appContextKey).(*app)
	if !ok {
		return nil, errors.New("no config in context")
	}
	return a, nil
}
