package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/guard"
	"github.com/danielhopkins/forscore-cli/internal/repo"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// NewFixesCommand creates the fixes command group.
func NewFixesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixes",
		Short: "Repair known inconsistencies the host leaves behind",
	}
	cmd.AddCommand(newFixDuplicateBookmarksCommand(rootOpts))
	cmd.AddCommand(newFixOrphansCommand(rootOpts))
	return cmd
}

func newFixDuplicateBookmarksCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:           "duplicate-bookmarks",
		Short:         "Delete bookmarks duplicating an older one",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fixDuplicateBookmarks(rootOpts, dryRun, cmd)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report duplicates without deleting")

	return cmd
}

func fixDuplicateBookmarks(opts *RootOptions, dryRun bool, cmd *cobra.Command) error {
	f := formatter(cmd, opts)
	ctx := cmd.Context()

	if dryRun {
		st, err := openStore(opts)
		if err != nil {
			return err
		}
		defer st.Close()

		dups, err := repo.FindDuplicateBookmarks(ctx, st)
		if err != nil {
			return err
		}
		return reportDuplicates(f, dups, true)
	}

	st, err := openStoreRW(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	var dups []repo.DuplicateBookmark
	err = st.Transact(ctx, func(tx *store.Tx) error {
		dups, err = repo.FindDuplicateBookmarks(ctx, tx)
		if err != nil {
			return err
		}
		for _, d := range dups {
			if err := repo.DeleteBookmark(ctx, tx, d.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return reportDuplicates(f, dups, false)
}

func reportDuplicates(f *OutputFormatter, dups []repo.DuplicateBookmark, dryRun bool) error {
	if f.Format == "json" {
		return f.Success(map[string]any{"dry_run": dryRun, "duplicates": dups})
	}
	if len(dups) == 0 {
		fmt.Fprintln(f.Writer, "No duplicate bookmarks found.")
		return nil
	}
	for _, d := range dups {
		fmt.Fprintf(f.Writer, "  %q (ID %d) pages %d-%d in %q duplicates ID %d\n",
			d.Title, d.ID, d.StartPage, d.EndPage, d.ScoreTitle, d.OriginalID)
	}
	if dryRun {
		fmt.Fprintf(f.Writer, "Dry run: %d duplicate(s) left in place.\n", len(dups))
	} else {
		fmt.Fprintf(f.Writer, "Deleted %d duplicate bookmark(s).\n", len(dups))
	}
	return nil
}

func newFixOrphansCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:           "orphans",
		Short:         "Delete membership rows referencing missing entities",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fixOrphans(rootOpts, dryRun, cmd)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting")

	return cmd
}

func fixOrphans(opts *RootOptions, dryRun bool, cmd *cobra.Command) error {
	f := formatter(cmd, opts)
	ctx := cmd.Context()

	if dryRun {
		st, err := openStore(opts)
		if err != nil {
			return err
		}
		defer st.Close()

		orphans, err := guard.FindOrphans(ctx, st)
		if err != nil {
			return err
		}
		return reportOrphans(f, orphans, true)
	}

	st, err := openStoreRW(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	var orphans []guard.Orphan
	err = st.Transact(ctx, func(tx *store.Tx) error {
		orphans, err = guard.FindOrphans(ctx, tx)
		if err != nil {
			return err
		}
		return guard.DeleteOrphans(ctx, tx, orphans)
	})
	if err != nil {
		return err
	}
	return reportOrphans(f, orphans, false)
}

func reportOrphans(f *OutputFormatter, orphans []guard.Orphan, dryRun bool) error {
	if f.Format == "json" {
		return f.Success(map[string]any{"dry_run": dryRun, "orphans": orphans})
	}
	if len(orphans) == 0 {
		fmt.Fprintln(f.Writer, "No orphaned membership rows found.")
		return nil
	}
	for _, o := range orphans {
		fmt.Fprintf(f.Writer, "  %s: owner %d, member %d (%s missing)\n",
			o.Table, o.OwnerID, o.MemberID, o.Missing)
	}
	if dryRun {
		fmt.Fprintf(f.Writer, "Dry run: %d orphan(s) left in place.\n", len(orphans))
	} else {
		fmt.Fprintf(f.Writer, "Deleted %d orphaned row(s).\n", len(orphans))
	}
	return nil
}
