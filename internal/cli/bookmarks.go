package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/repo"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// NewBookmarksCommand creates the bookmarks command group.
func NewBookmarksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookmarks",
		Short: "List, edit and delete bookmarks",
	}
	cmd.AddCommand(newBookmarksLsCommand(rootOpts))
	cmd.AddCommand(newBookmarksShowCommand(rootOpts))
	cmd.AddCommand(newBookmarksEditCommand(rootOpts))
	cmd.AddCommand(newBookmarksDeleteCommand(rootOpts))
	return cmd
}

func printBookmarks(f *OutputFormatter, bookmarks []*repo.Bookmark) error {
	rows := make([][]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		rows = append(rows, []string{
			strconv.FormatInt(b.ID, 10),
			b.Title,
			b.ScoreTitle,
			fmt.Sprintf("%d-%d", b.StartPage, b.EndPage),
			blankIfZero(b.Rating),
		})
	}
	return f.Table([]string{"ID", "TITLE", "SCORE", "PAGES", "RATING"}, rows, bookmarks)
}

func newBookmarksLsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ls [score]",
		Short:         "List bookmarks, optionally for one score",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			var bookmarks []*repo.Bookmark
			if len(args) == 1 {
				s, err := resolveScoreRef(ctx, st, args[0])
				if err != nil {
					return err
				}
				bookmarks, err = repo.ListBookmarks(ctx, st, s.ID)
				if err != nil {
					return err
				}
			} else {
				bookmarks, err = repo.AllBookmarks(ctx, st)
				if err != nil {
					return err
				}
			}
			return printBookmarks(formatter(cmd, rootOpts), bookmarks)
		},
	}
}

func newBookmarksShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one bookmark",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid bookmark id", err)
			}

			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			b, err := repo.BookmarkByID(cmd.Context(), st, id)
			if err != nil {
				return err
			}
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(b)
			}
			printBookmarkDetail(f, b)
			return nil
		},
	}
}

func printBookmarkDetail(f *OutputFormatter, b *repo.Bookmark) {
	fmt.Fprintf(f.Writer, "ID:      %d\n", b.ID)
	fmt.Fprintf(f.Writer, "Title:   %s\n", b.Title)
	fmt.Fprintf(f.Writer, "Score:   %s (ID %d)\n", b.ScoreTitle, b.ScoreID)
	fmt.Fprintf(f.Writer, "Pages:   %d-%d\n", b.StartPage, b.EndPage)
	if b.Key != "" {
		fmt.Fprintf(f.Writer, "Key:     %s\n", b.Key)
	}
	if b.Rating > 0 {
		fmt.Fprintf(f.Writer, "Rating:  %d\n", b.Rating)
	}
	if b.UUID != "" {
		fmt.Fprintf(f.Writer, "UUID:    %s\n", b.UUID)
	}
}

func newBookmarksEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &scoresEditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "edit <id>",
		Short:         "Edit a bookmark's metadata",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bookmarks live in the same table as scores; the shared edit
			// path applies, resolving strictly by id.
			return editItem(opts, args[0], cmd, resolveBookmarkAsScore)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.Key, "key", "", `musical key ("C Major"; empty string clears)`)
	cmd.Flags().IntVar(&opts.Rating, "rating", 0, "rating 1-6 (0 clears)")
	cmd.Flags().IntVar(&opts.Difficulty, "difficulty", 0, "difficulty 1-5 (0 clears)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report the change without writing")

	return cmd
}

func resolveBookmarkAsScore(ctx context.Context, q schema.Querier, ref string) (*repo.Score, error) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid bookmark id", err)
	}
	b, err := repo.BookmarkByID(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return repo.ScoreByID(ctx, q, b.ID)
}

func newBookmarksDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a bookmark and its membership rows",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid bookmark id", err)
			}

			st, err := openStoreRW(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			var deleted *repo.Bookmark
			err = st.Transact(ctx, func(tx *store.Tx) error {
				deleted, err = repo.BookmarkByID(ctx, tx, id)
				if err != nil {
					return err
				}
				if err := repo.DeleteBookmark(ctx, tx, id); err != nil {
					return err
				}
				if dryRun {
					return errDryRun
				}
				return nil
			})
			if err != nil && !errors.Is(err, errDryRun) {
				return err
			}

			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(deleted)
			}
			if dryRun {
				fmt.Fprintf(f.Writer, "Would delete bookmark %q (ID %d)\n", deleted.Title, deleted.ID)
			} else {
				fmt.Fprintf(f.Writer, "Deleted bookmark %q (ID %d)\n", deleted.Title, deleted.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the change without writing")

	return cmd
}
