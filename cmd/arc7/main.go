package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/bamsammich/arc7/internal/codec"
	"github.com/bamsammich/arc7/internal/config"
	"github.com/bamsammich/arc7/internal/engine"
	"github.com/bamsammich/arc7/internal/ui"
)

var version = "dev"

func main() {
	code := run()
	// Wipe sealed passwords before exiting; os.Exit skips deferred calls.
	memguard.Purge()
	os.Exit(code)
}

// app holds state shared by every subcommand.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	verbose    bool
	quiet      bool
	noProgress bool
	noColor    bool
	tuiFlag    bool
	nativeOnly bool
	sevenZip   string
	logFile    string

	cfg     config.Config
	logger  *slog.Logger
	logSink io.Closer
	disp    *engine.Dispatcher
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	defer a.close()
	return a.execute(ctx, os.Args[1:])
}

// execute runs the command line args and maps the outcome to an exit code.
func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	code := exitCode(err)
	if code == exitCancelled {
		fmt.Fprintln(a.stderr, "cancelled")
	} else {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	return code
}

func (a *app) rootCmd() *cobra.Command {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "arc7",
		Short: "Create, extract and inspect 7z, zip, tar and compressed archives",
		Long: `arc7 compresses files into archives and extracts them safely.

Entries whose names would land outside the destination are never written.
Zip archives with legacy (non-UTF-8) file names can be decoded with --encoding.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unknown command %q for arc7", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(a.stdout, "arc7 %s\n", version)
				return nil
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress all output except errors and warnings")
	pf.BoolVar(&a.noProgress, "no-progress", false, "disable progress display")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&a.tuiFlag, "tui", false, "full-screen TUI (Bubble Tea)")
	pf.BoolVar(&a.nativeOnly, "native-only", false, "never run the 7-Zip binary")
	pf.StringVar(&a.sevenZip, "7z", "", "path to the 7-Zip binary (default: 7zz, 7z or 7za on PATH)")
	pf.StringVar(&a.logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(a.compressCmd())
	rootCmd.AddCommand(a.extractCmd())
	rootCmd.AddCommand(a.listCmd())
	rootCmd.AddCommand(a.infoCmd())
	rootCmd.AddCommand(docsCmd())
	return rootCmd
}

// setup loads the config, configures logging and builds the dispatcher.
// Runs once before any subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, cfgErr := config.Load()
	a.cfg = cfg
	if err := applyConfigDefaults(cmd, cfg); err != nil {
		return usageError{err}
	}

	var logLevel slog.Level
	switch {
	case a.verbose:
		logLevel = slog.LevelDebug
	case a.quiet:
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}
	textHandler := slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: logLevel})
	var logHandler slog.Handler = textHandler
	if a.logFile != "" {
		lf, err := os.Create(a.logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logSink = lf
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	a.logger = slog.New(logHandler)
	slog.SetDefault(a.logger)

	if cfgErr != nil {
		a.logger.Warn("failed to load config", "error", cfgErr)
	}

	native := codec.NewNative(a.logger)
	var sz *codec.SevenZip
	if !a.nativeOnly {
		bin, err := codec.Locate(a.sevenZip)
		switch {
		case err != nil && a.sevenZip != "":
			a.logger.Warn("configured 7-Zip binary not usable, using the built-in codec only", "error", err)
		case err != nil:
			a.logger.Debug("7-Zip not available, using the built-in codec only", "error", err)
		default:
			a.logger.Debug("using 7-Zip", "binary", bin)
			sz = codec.NewSevenZip(bin, a.logger)
		}
	}
	a.disp = engine.NewDispatcher(codec.NewRouter(native, sz), a.logger)
	return nil
}

func (a *app) close() {
	if a.logSink != nil {
		a.logSink.Close()
	}
}

// applyConfigDefaults applies config file defaults for flags not explicitly
// set on the CLI. Flags the running command does not define are ignored.
func applyConfigDefaults(cmd *cobra.Command, cfg config.Config) error {
	strs := []struct {
		flag string
		val  *string
	}{
		{"format", cfg.Defaults.Format},
		{"level", cfg.Defaults.Level},
		{"method", cfg.Defaults.Method},
		{"encoding", cfg.Defaults.Encoding},
		{"zero-files", cfg.Defaults.ZeroFiles},
		{"bwlimit", cfg.Defaults.BWLimit},
		{"7z", cfg.Codec.SevenZip},
	}
	bools := []struct {
		flag string
		val  *bool
	}{
		{"skip-existing", cfg.Defaults.SkipExisting},
		{"tui", cfg.Defaults.TUI},
		{"native-only", cfg.Codec.NativeOnly},
	}

	flags := cmd.Flags()
	set := func(name, value string) error {
		if flags.Lookup(name) == nil || flags.Changed(name) {
			return nil
		}
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("config default for --%s: %w", name, err)
		}
		return nil
	}
	for _, s := range strs {
		if s.val != nil {
			if err := set(s.flag, *s.val); err != nil {
				return err
			}
		}
	}
	for _, b := range bools {
		if b.val != nil {
			if err := set(b.flag, strconv.FormatBool(*b.val)); err != nil {
				return err
			}
		}
	}
	return nil
}
