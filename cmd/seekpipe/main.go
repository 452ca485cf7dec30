/*
seekpipe - buffer standard input into a seekable file, then exec a command.

Some programs seek on their standard input and fail when it is a pipe.
seekpipe reads the whole stream into an unlinked temporary file, puts that
file on descriptor 0 and replaces itself with the command.

Usage:

	seekpipe [flags] command [arg]...
	seekpipe --history n
	seekpipe --dump-config
	seekpipe --version
*/
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/ushineko/seekpipe/internal/config"
	"github.com/ushineko/seekpipe/internal/journal"
	"github.com/ushineko/seekpipe/internal/logging"
	"github.com/ushineko/seekpipe/internal/pipeline"
	"github.com/ushineko/seekpipe/internal/transfer"
	"github.com/ushineko/seekpipe/internal/version"
)

// options holds the parsed flags of one invocation.
type options struct {
	prefix     string
	configPath string
	strategy   string
	bufferSize int
	logDir     string
	verbose    bool
	journal    bool
	history    int
	dumpConfig bool
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit status. When the
// target is launched it does not return at all.
func run(args []string, stdout, stderr io.Writer) int {
	prog := filepath.Base(args[0])
	rep := &pipeline.Reporter{Prog: prog, Out: stderr}

	cmd := newRootCmd(prog, rep)
	cmd.SetArgs(args[1:])
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		rep.Fatal(err)
		return pipeline.KindOf(err).ExitCode()
	}
	return 0
}

func newRootCmd(prog string, rep *pipeline.Reporter) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   prog + " [-p prefix] command [arg]...",
		Short: "Buffer standard input into a seekable file, then exec a command",
		Long: `seekpipe reads all of standard input into a temporary file, attaches that
file to the command's standard input and replaces itself with the command.
Programs that seek on stdin then work at the end of a pipeline.

Flag parsing stops at the command name; everything after it is passed to
the command untouched.`,
		Example: `  # Let a seeking tool read from a pipe
  curl -s https://example.com/archive.zip | seekpipe unzip -l /dev/stdin

  # Keep the buffer on a bigger filesystem
  zcat huge.gz | seekpipe -p /var/tmp/sp sometool`,
		Version:       version.Full(),
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, args, opts, rep)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &pipeline.Error{Kind: pipeline.KindUsage, Err: err}
	})

	f := cmd.Flags()
	f.SetInterspersed(false)
	f.StringVarP(&opts.prefix, "prefix", "p", "", fmt.Sprintf("temp file path prefix (default %q)", config.Default().Prefix))
	f.StringVarP(&opts.configPath, "config", "c", "", "config file path (default: seekpipe/config.yml in the user config directory)")
	f.StringVarP(&opts.strategy, "strategy", "s", "", "transfer strategy: auto, splice or copy")
	f.IntVar(&opts.bufferSize, "buffer-size", 0, "copy buffer size in bytes")
	f.StringVar(&opts.logDir, "log-dir", "", "directory for log files (empty to disable file logging)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose (DEBUG) logging on stderr")
	f.BoolVar(&opts.journal, "journal", false, "record this invocation in the journal")
	f.IntVar(&opts.history, "history", 0, "print the n most recent journal entries and exit")
	f.BoolVar(&opts.dumpConfig, "dump-config", false, "print the resolved configuration as YAML and exit")

	return cmd
}

// loadConfig loads and merges configuration from file and CLI flags.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, string, error) {
	cfg, cfgPath, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, cfgPath, err
	}

	// Build CLI overrides - only include flags that were explicitly set.
	overrides := config.CLIOverrides{}

	if cmd.Flags().Changed("prefix") {
		overrides.Prefix = &opts.prefix
	}
	if cmd.Flags().Changed("strategy") {
		overrides.Strategy = &opts.strategy
	}
	if cmd.Flags().Changed("buffer-size") {
		overrides.BufferSize = &opts.bufferSize
	}
	if cmd.Flags().Changed("log-dir") {
		overrides.LogDir = &opts.logDir
	}
	if cmd.Flags().Changed("verbose") {
		overrides.Verbose = &opts.verbose
	}
	if cmd.Flags().Changed("journal") {
		overrides.Journal = &opts.journal
	}

	cfg.Merge(overrides)

	if err := cfg.Validate(); err != nil {
		return cfg, cfgPath, err
	}

	return cfg, cfgPath, nil
}

func execute(cmd *cobra.Command, args []string, opts *options, rep *pipeline.Reporter) error {
	cfg, cfgPath, err := loadConfig(cmd, opts)
	if err != nil {
		return &pipeline.Error{Kind: pipeline.KindConfig, Err: err}
	}

	if opts.dumpConfig {
		out, err := cfg.Dump()
		if err != nil {
			return &pipeline.Error{Kind: pipeline.KindConfig, Op: "dump config", Err: err}
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	}

	logger, cleanupLog := logging.Setup(logging.Config{
		Prog:    rep.Prog,
		LogDir:  cfg.LogDir,
		Verbose: cfg.Verbose,
	})
	defer cleanupLog()
	rep.Logger = logger

	if cfgPath != "" {
		logger.Debug("config loaded", "path", cfgPath)
	}

	if cmd.Flags().Changed("history") {
		return showHistory(cmd.OutOrStdout(), &cfg, opts.history, logger)
	}

	if len(args) == 0 {
		return pipeline.Errorf(pipeline.KindUsage, "missing command")
	}

	strategy, err := transfer.ParseStrategy(cfg.Strategy)
	if err != nil {
		return &pipeline.Error{Kind: pipeline.KindConfig, Err: err}
	}
	engine, err := transfer.New(strategy, cfg.BufferSize, logger)
	if err != nil {
		return &pipeline.Error{Kind: pipeline.KindConfig, Err: err}
	}

	runner := &pipeline.Runner{
		Reporter: rep,
		Logger:   logger,
		Engine:   engine,
	}

	closeJournal := func() {}
	if cfg.Journal.Enabled {
		j, err := openJournal(&cfg, logger)
		if err != nil {
			rep.Warn("journal disabled", err)
		} else {
			runner.Recorder = j
			closeJournal = sync.OnceFunc(func() {
				if err := j.Close(); err != nil {
					rep.Warn("close journal", err)
				}
			})
		}
	}
	defer closeJournal()

	runner.BeforeExec = func() {
		closeJournal()
		cleanupLog()
	}

	logger.Debug("seekpipe starting",
		"version", version.Full(),
		"prefix", cfg.Prefix,
		"strategy", strategy,
		"journal", cfg.Journal.Enabled,
	)

	return runner.Run(pipeline.Invocation{Prefix: cfg.Prefix, Command: args})
}

// openJournal opens the journal and drops entries past the retention window.
func openJournal(cfg *config.Config, logger *slog.Logger) (*journal.Journal, error) {
	path, err := cfg.JournalPath()
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(path, logger)
	if err != nil {
		return nil, err
	}

	if keep := cfg.Journal.Retention.Duration; keep > 0 {
		n, err := j.Prune(time.Now().Add(-keep))
		if err != nil {
			logger.Warn("journal prune failed", "error", err)
		} else if n > 0 {
			logger.Debug("journal pruned", "removed", n, "retention", keep)
		}
	}
	return j, nil
}

func showHistory(w io.Writer, cfg *config.Config, n int, logger *slog.Logger) error {
	if n <= 0 {
		return pipeline.Errorf(pipeline.KindUsage, "--history needs a positive count, got %d", n)
	}

	path, err := cfg.JournalPath()
	if err != nil {
		return &pipeline.Error{Kind: pipeline.KindOS, Op: "open journal", Err: err}
	}
	if _, err := os.Stat(path); err != nil {
		return &pipeline.Error{Kind: pipeline.KindOS, Op: "open journal", Err: err}
	}

	j, err := journal.Open(path, logger)
	if err != nil {
		return &pipeline.Error{Kind: pipeline.KindOS, Err: err}
	}
	defer j.Close() //nolint:errcheck // read-only use

	entries, err := j.Recent(n)
	if err != nil {
		return &pipeline.Error{Kind: pipeline.KindIO, Op: "read journal", Err: err}
	}
	return journal.Write(w, entries)
}
