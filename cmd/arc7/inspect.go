package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/bamsammich/arc7/internal/codec"
	"github.com/bamsammich/arc7/internal/engine"
	"github.com/bamsammich/arc7/internal/secret"
	"github.com/bamsammich/arc7/internal/ui"
)

func archivesArgs(cmd string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) == 0 {
			return usageError{fmt.Errorf("%s needs at least one archive", cmd)}
		}
		return nil
	}
}

// eachArchive runs fn for every archive, reporting failures as it goes so one
// bad archive does not hide the rest. The joined error decides the exit code.
func (a *app) eachArchive(archives []string, fn func(archive string) error) error {
	var errs []error
	for i, archive := range archives {
		if len(archives) > 1 {
			if i > 0 {
				fmt.Fprintln(a.stdout)
			}
			fmt.Fprintf(a.stdout, "%s:\n", archive)
		}
		if err := fn(archive); err != nil {
			if len(archives) > 1 {
				fmt.Fprintf(a.stderr, "Error: %v\n", err)
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(archives) > 1 {
		return &multiArchiveError{errs: errs}
	}
	return errors.Join(errs...)
}

// multiArchiveError carries failures that were already printed.
type multiArchiveError struct {
	errs []error
}

func (e *multiArchiveError) Error() string {
	return fmt.Sprintf("%d archives failed", len(e.errs))
}

func (e *multiArchiveError) Unwrap() []error { return e.errs }

func (a *app) listCmd() *cobra.Command {
	var (
		encoding string
		bare     bool
		password passwordFlags
	)
	cmd := &cobra.Command{
		Use:     "list [flags] <archive>...",
		Aliases: []string{"ls"},
		Short:   "List the entries of one or more archives",
		Args:    archivesArgs("list"),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := password.resolve(a)
			if err != nil {
				return err
			}
			return a.eachArchive(args, func(archive string) error {
				entries, err := a.disp.List(cmd.Context(), engine.ListRequest{
					Archive:  archive,
					Password: pw,
					Encoding: encoding,
				})
				if err != nil {
					return err
				}
				a.printEntries(entries, bare)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&encoding, "encoding", "e", "", `charset of legacy zip entry names, or "auto"`)
	cmd.Flags().BoolVar(&bare, "bare", false, "print entry names only")
	password.register(cmd.Flags())
	return cmd
}

func (a *app) printEntries(entries []codec.Entry, bare bool) {
	if bare {
		for _, e := range entries {
			fmt.Fprintln(a.stdout, e.Name)
		}
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderColumn(false).
		Headers("MODIFIED", "SIZE", "PACKED", "METHOD", "NAME")
	var total int64
	for _, e := range entries {
		mod := ""
		if !e.ModTime.IsZero() {
			mod = e.ModTime.Format("2006-01-02 15:04")
		}
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		if e.Encrypted {
			name += " *"
		}
		t.Row(mod, ui.FormatBytes(e.Size), ui.FormatBytes(e.Packed), e.Method, name)
		total += e.Size
	}
	fmt.Fprintln(a.stdout, t.Render())
	fmt.Fprintf(a.stdout, "%s entries, %s\n", ui.FormatCount(int64(len(entries))), ui.FormatBytes(total))
}

func (a *app) infoCmd() *cobra.Command {
	var password passwordFlags
	cmd := &cobra.Command{
		Use:   "info [flags] <archive>...",
		Short: "Test archives and print their summaries",
		Args:  archivesArgs("info"),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := password.resolve(a)
			if err != nil {
				return err
			}
			return a.eachArchive(args, func(archive string) error {
				return a.printInfo(cmd, archive, pw)
			})
		},
	}
	password.register(cmd.Flags())
	return cmd
}

func (a *app) printInfo(cmd *cobra.Command, archive string, pw secret.Spec) error {
	info, err := a.disp.Info(cmd.Context(), engine.ListRequest{Archive: archive, Password: pw})
	if err != nil {
		return err
	}
	rows := [][2]string{
		{"path", info.Path},
		{"format", info.Kind.String()},
		{"files", strconv.Itoa(info.FileCount)},
		{"packed", ui.FormatBytes(info.PackedSize)},
		{"unpacked", ui.FormatBytes(info.UnpackedSize)},
		{"method", info.Method},
		{"blake3", info.Checksum},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(a.stdout, "%-9s %s\n", r[0]+":", r[1])
	}
	return nil
}
