package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/dirsync/internal/config"
	"github.com/bamsammich/dirsync/internal/engine"
	"github.com/bamsammich/dirsync/internal/event"
	"github.com/bamsammich/dirsync/internal/filter"
	"github.com/bamsammich/dirsync/internal/stats"
	"github.com/bamsammich/dirsync/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared filter.Chain.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

// options holds every root command flag.
type options struct {
	workers      int
	noParallel   bool
	dateSizeOnly bool
	dryRun       bool
	verify       bool
	verbose      bool
	quiet        bool
	noProgress   bool
	showVersion  bool
	filterFile   string
	minSizeStr   string
	maxSizeStr   string
	bwLimitStr   string
	logFile      string
}

//nolint:revive // cognitive-complexity: CLI entry point wires flags, logging and the engine
func run() int {
	var opts options
	chain := filter.NewChain()

	rootCmd := &cobra.Command{
		Use:   "dirsync [flags] <source> <destination>",
		Short: "One-way parallel directory sync",
		Long: "dirsync lists the source and destination trees in parallel, diffs them by\n" +
			"relative path and copies whatever the destination is missing or has stale.\n" +
			"Nothing is ever deleted from the destination.",
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(os.Stdout, "dirsync %s\n", version)
				return nil
			}
			return runSync(cmd, &opts, chain, args[0], args[1])
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flags.IntVarP(&opts.workers, "workers", "n", 0,
		"total number of workers, listers included (default: min(NumCPU*2, 32))")
	flags.BoolVar(&opts.noParallel, "no-parallel", false, "list both trees inline, one after the other")
	flags.BoolVar(&opts.dateSizeOnly, "date-size-only", false,
		"compare files by size and mtime only, skip content hashing")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "show what would be copied without writing")
	flags.BoolVar(&opts.verify, "verify", false, "verify checksums of copied files (BLAKE3)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "disable the periodic progress line")

	// Filter flags use a custom pflag.Value to preserve CLI ordering.
	flags.Var(&filterFlag{chain: chain}, "exclude", "exclude paths matching PATTERN (repeatable)")
	flags.Var(&filterFlag{chain: chain, include: true}, "include", "include paths matching PATTERN (repeatable)")
	flags.StringVar(&opts.filterFile, "filter", "", "read filter rules from FILE")
	flags.StringVar(&opts.minSizeStr, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	flags.StringVar(&opts.maxSizeStr, "max-size", "", "skip files larger than SIZE (e.g. 1G, 500M)")
	flags.StringVar(&opts.bwLimitStr, "bwlimit", "", "bandwidth limit for copies (e.g. 100M, 1G)")
	flags.StringVar(&opts.logFile, "log", "", "write a rotated structured JSON log to FILE")

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "exclude" || f.Name == "include" {
			f.NoOptDefVal = ""
		}
	})

	rootCmd.AddCommand(docsCmd)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

//nolint:gocyclo // flag resolution is a flat list of independent steps
func runSync(cmd *cobra.Command, opts *options, chain *filter.Chain, src, dst string) error {
	cfg, cfgErr := config.Load()
	applyConfigDefaults(cmd, cfg.Defaults, opts)
	ui.ApplyTheme(cfg.Theme)

	for _, pattern := range cfg.Defaults.Excludes {
		if err := chain.AddExclude(pattern); err != nil {
			return fmt.Errorf("config exclude %q: %w", pattern, err)
		}
	}
	if opts.filterFile != "" {
		if err := chain.LoadFile(opts.filterFile); err != nil {
			return fmt.Errorf("load filter file: %w", err)
		}
	}
	if opts.minSizeStr != "" {
		n, err := filter.ParseSize(opts.minSizeStr)
		if err != nil {
			return fmt.Errorf("invalid --min-size: %w", err)
		}
		chain.SetMinSize(n)
	}
	if opts.maxSizeStr != "" {
		n, err := filter.ParseSize(opts.maxSizeStr)
		if err != nil {
			return fmt.Errorf("invalid --max-size: %w", err)
		}
		chain.SetMaxSize(n)
	}

	var bwLimit int64
	if opts.bwLimitStr != "" {
		n, err := filter.ParseSize(opts.bwLimitStr)
		if err != nil {
			return fmt.Errorf("invalid --bwlimit: %w", err)
		}
		bwLimit = n
	}

	logger, closeLog := newLogger(opts.verbose, opts.quiet, opts.logFile)
	defer closeLog()
	logger = logger.With("run", uuid.NewString())
	slog.SetDefault(logger)

	if cfgErr != nil {
		logger.Warn("failed to load config", "path", config.Path(), "error", cfgErr)
	}
	if opts.dryRun {
		logger.Info("dry run mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	// With --log, tee events through a goroutine that writes structured
	// records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if opts.logFile != "" {
		presenterEvents = teeEvents(logger, events)
	}

	isTTY := ui.IsTTY(os.Stderr.Fd())
	presenter := ui.NewPresenter(ui.Config{
		Writer:     os.Stdout,
		ErrWriter:  os.Stderr,
		Stats:      collector,
		SrcRoot:    src,
		DstRoot:    dst,
		Width:      ui.TermWidth(os.Stderr.Fd()),
		IsTTY:      isTTY,
		Quiet:      opts.quiet,
		Verbose:    opts.verbose,
		NoProgress: opts.noProgress,
	})

	engineCfg := engine.Config{
		Src:      src,
		Dst:      dst,
		Workers:  opts.workers,
		BWLimit:  bwLimit,
		Parallel: !opts.noParallel,
		Hash:     !opts.dateSizeOnly,
		DryRun:   opts.dryRun,
		Verify:   opts.verify,
		Events:   events,
		Stats:    collector,
		Logger:   logger,
	}
	if !chain.Empty() {
		engineCfg.Filter = chain
	}

	logger.Debug("starting sync",
		"src", src,
		"dst", dst,
		"workers", opts.workers,
		"parallel", engineCfg.Parallel,
		"hash", engineCfg.Hash,
	)

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	result := engine.Run(ctx, engineCfg)
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
	}

	if !opts.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(os.Stderr, summary)
		}
	}

	switch {
	case result.Err != nil:
		logger.Error("sync failed", "error", result.Err)
		return &exitError{code: 2}
	case result.Failures > 0:
		logger.Debug("sync finished with failures", "failures", result.Failures)
		if !opts.quiet {
			fmt.Fprintln(os.Stderr, ui.Warn(fmt.Sprintf("%d entries failed", result.Failures)))
		}
		return &exitError{code: 1}
	}
	logger.Info("sync complete", "stats", result.Stats.String())
	return nil
}

// teeEvents logs each event and forwards it on the returned channel, which
// closes once in does.
func teeEvents(logger *slog.Logger, in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("path", ev.Path),
				slog.Int64("size", ev.Size),
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			logger.LogAttrs(context.Background(), slog.LevelDebug, "dirsync.event", attrs...)
			out <- ev
		}
	}()
	return out
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, opts *options) {
	flags := cmd.Flags()
	if !flags.Changed("workers") && defaults.Workers != nil {
		opts.workers = *defaults.Workers
	}
	if !flags.Changed("date-size-only") && defaults.Hash != nil {
		opts.dateSizeOnly = !*defaults.Hash
	}
	if !flags.Changed("no-parallel") && defaults.Parallel != nil {
		opts.noParallel = !*defaults.Parallel
	}
	if !flags.Changed("verify") && defaults.Verify != nil {
		opts.verify = *defaults.Verify
	}
	if !flags.Changed("bwlimit") && defaults.BWLimit != nil {
		opts.bwLimitStr = *defaults.BWLimit
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
