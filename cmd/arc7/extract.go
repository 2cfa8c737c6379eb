package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bamsammich/arc7/internal/engine"
	"github.com/bamsammich/arc7/internal/filter"
	"github.com/bamsammich/arc7/internal/stats"
)

func (a *app) extractCmd() *cobra.Command {
	var (
		encoding     string
		zeroFiles    string
		skipExisting bool
		bwlimit      string
		password     passwordFlags
	)

	cmd := &cobra.Command{
		Use:   "extract [flags] <archive> <destination>",
		Short: "Extract an archive into a directory",
		Long: `Extract every entry of <archive> below <destination>.

Entries whose names are absolute or climb out of the destination are
skipped with a warning. Use --encoding for zip archives created with a
legacy code page, or --encoding auto to guess it.`,
		Example: `  arc7 extract backup.7z ./restore
  arc7 extract -e shift_jis old.zip ./out
  arc7 extract --zero-files fail --bwlimit 20m dump.tar.gz /srv/data`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 2 {
				return usageError{fmt.Errorf("extract needs an archive and a destination")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := engine.ParseZeroFiles(zeroFiles)
			if err != nil {
				return err
			}
			var limit int64
			if bwlimit != "" {
				if limit, err = filter.ParseSize(bwlimit); err != nil {
					return usageError{fmt.Errorf("--bwlimit: %w", err)}
				}
			}
			pw, err := password.resolve(a)
			if err != nil {
				return err
			}
			col := stats.NewCollector()
			req := engine.ExtractRequest{
				Archive:      args[0],
				Destination:  args[1],
				Password:     pw,
				Encoding:     encoding,
				ZeroFiles:    policy,
				SkipExisting: skipExisting,
				BWLimit:      limit,
				Stats:        col,
			}
			h, err := engine.StartExtract(cmd.Context(), a.disp, req)
			if err != nil {
				return err
			}
			return a.present(cmd.Context(), h, "extract", col)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&encoding, "encoding", "e", "", `charset of legacy zip entry names, or "auto"`)
	fs.StringVar(&zeroFiles, "zero-files", "succeed", "outcome when every entry is skipped: succeed or fail")
	fs.BoolVar(&skipExisting, "skip-existing", false, "keep files that already exist in the destination")
	fs.StringVar(&bwlimit, "bwlimit", "", "limit write throughput to SIZE per second (e.g. 50m)")
	password.register(fs)
	return cmd
}
