package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bamsammich/arc7/internal/codec"
	"github.com/bamsammich/arc7/internal/engine"
	"github.com/bamsammich/arc7/internal/filter"
	"github.com/bamsammich/arc7/internal/format"
	"github.com/bamsammich/arc7/internal/stats"
)

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

type compressFlags struct {
	format       string
	level        string
	method       string
	flatten      bool
	skipEmpty    bool
	preserveRoot bool
	recursive    bool
	appendTo     bool
	volumeSize   string
	encryptNames bool
	filter       string
	excludeFrom  string
	minSize      string
	maxSize      string
	password     passwordFlags
}

func (a *app) compressCmd() *cobra.Command {
	var f compressFlags
	rules := filter.NewChain(false)

	cmd := &cobra.Command{
		Use:   "compress [flags] <archive> <source>...",
		Short: "Add files and directories to an archive",
		Long: `Compress the given sources into <archive>.

The format follows the archive's extension unless --format is given; a name
without an extension gets ".7z". Several files may be given, but at most one
directory. Directory contents are stored relative to the directory unless
--preserve-root is set.`,
		Example: `  arc7 compress backup.7z ~/Documents
  arc7 compress -f zip -l ultra --prompt photos.zip ~/Pictures --exclude '*.tmp'
  arc7 compress --volume-size 700m big.7z disk.img`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 2 {
				return usageError{fmt.Errorf("compress needs an archive and at least one source")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(args[0], args[1:], rules)
			if err != nil {
				return err
			}
			req.Password, err = f.password.resolve(a)
			if err != nil {
				return err
			}
			col := stats.NewCollector()
			req.Stats = col

			h, err := engine.StartCompress(cmd.Context(), a.disp, req)
			if err != nil {
				return err
			}
			return a.present(cmd.Context(), h, "compress", col)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.format, "format", "f", "auto", "archive format: auto, 7z, zip, tar, gzip, bzip2, xz")
	fs.StringVarP(&f.level, "level", "l", "normal", "compression level: none, fast, low, normal, high, ultra or 0-9")
	fs.StringVarP(&f.method, "method", "m", "", "compression method: Copy, Deflate, Deflate64, BZip2, LZMA, LZMA2, PPMd")
	fs.BoolVar(&f.flatten, "flatten", false, "store every file at the archive root")
	fs.BoolVar(&f.skipEmpty, "skip-empty-dirs", false, "do not store empty directories")
	fs.BoolVar(&f.preserveRoot, "preserve-root", false, "store a directory under its own name")
	fs.BoolVarP(&f.recursive, "recursive", "r", true, "descend into subdirectories")
	fs.BoolVar(&f.appendTo, "append", false, "add to an existing archive instead of replacing it")
	fs.StringVar(&f.volumeSize, "volume-size", "", "split into volumes of SIZE (e.g. 700m, 4.7G)")
	fs.BoolVar(&f.encryptNames, "encrypt-filenames", false, "encrypt archive headers (7z only, needs a password)")
	fs.StringVar(&f.filter, "filter", "", "only add files whose base name matches GLOB")
	fs.Var(&filterFlag{chain: rules, include: false}, "exclude", "exclude paths matching PATTERN (repeatable)")
	fs.Var(&filterFlag{chain: rules, include: true}, "include", "include paths matching PATTERN (repeatable)")
	fs.StringVar(&f.excludeFrom, "exclude-from", "", "read exclude/include rules from FILE")
	fs.StringVar(&f.minSize, "min-size", "", "skip files smaller than SIZE")
	fs.StringVar(&f.maxSize, "max-size", "", "skip files larger than SIZE")
	f.password.register(fs)
	return cmd
}

// request converts the parsed flags into an engine request. Parse failures
// are usage errors; semantic checks are left to the engine.
func (f *compressFlags) request(archive string, sources []string, rules *filter.Chain) (engine.CompressRequest, error) {
	mode, err := format.ParseMode(f.format)
	if err != nil {
		return engine.CompressRequest{}, err
	}
	level, err := codec.ParseLevel(f.level)
	if err != nil {
		return engine.CompressRequest{}, usageError{err}
	}
	method, err := codec.ParseMethod(f.method)
	if err != nil {
		return engine.CompressRequest{}, usageError{err}
	}
	var volume int64
	if f.volumeSize != "" {
		if volume, err = filter.ParseSize(f.volumeSize); err != nil {
			return engine.CompressRequest{}, usageError{fmt.Errorf("--volume-size: %w", err)}
		}
	}
	if f.excludeFrom != "" {
		if err := rules.LoadFile(f.excludeFrom); err != nil {
			return engine.CompressRequest{}, usageError{fmt.Errorf("--exclude-from: %w", err)}
		}
	}
	for _, s := range []struct {
		flag string
		val  string
		set  func(int64)
	}{
		{"--min-size", f.minSize, rules.SetMinSize},
		{"--max-size", f.maxSize, rules.SetMaxSize},
	} {
		if s.val == "" {
			continue
		}
		n, err := filter.ParseSize(s.val)
		if err != nil {
			return engine.CompressRequest{}, usageError{fmt.Errorf("%s: %w", s.flag, err)}
		}
		s.set(n)
	}

	req := engine.CompressRequest{
		Sources:          sources,
		Destination:      archive,
		Mode:             mode,
		Level:            level,
		Method:           method,
		Flatten:          f.flatten,
		SkipEmptyDirs:    f.skipEmpty,
		PreserveRoot:     f.preserveRoot,
		Recursive:        f.recursive,
		Append:           f.appendTo,
		VolumeSize:       volume,
		EncryptFilenames: f.encryptNames,
		Filter:           f.filter,
	}
	if !rules.Empty() {
		req.Rules = rules
	}
	return req, nil
}
