package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/relation"
	"github.com/danielhopkins/forscore-cli/internal/repo"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// NewSetlistsCommand creates the setlists command group.
func NewSetlistsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setlists",
		Short: "Manage setlists and their ordered contents",
	}
	cmd.AddCommand(newCollectionLsCommand(rootOpts, repo.Setlists))
	cmd.AddCommand(newCollectionShowCommand(rootOpts, repo.Setlists))
	cmd.AddCommand(newCollectionCreateCommand(rootOpts, repo.Setlists))
	cmd.AddCommand(newCollectionRenameCommand(rootOpts, repo.Setlists))
	cmd.AddCommand(newCollectionDeleteCommand(rootOpts, repo.Setlists))
	cmd.AddCommand(newCollectionAddCommand(rootOpts, repo.Setlists))
	cmd.AddCommand(newCollectionRemoveCommand(rootOpts, repo.Setlists))
	cmd.AddCommand(newSetlistReorderCommand(rootOpts))
	cmd.AddCommand(newSetlistShuffleCommand(rootOpts))
	return cmd
}

// resolveCollectionRef finds a setlist or library from an id or title.
func resolveCollectionRef(ctx context.Context, q schema.Querier, kind repo.CollectionKind, ref string) (*repo.Collection, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if c, err := repo.CollectionByID(ctx, q, kind, id); err == nil {
			return c, nil
		} else if !liberr.IsNotFound(err) {
			return nil, err
		}
	}
	return repo.ResolveCollection(ctx, q, kind, ref)
}

func newCollectionLsCommand(rootOpts *RootOptions, kind repo.CollectionKind) *cobra.Command {
	return &cobra.Command{
		Use:           "ls",
		Short:         fmt.Sprintf("List all %ss", kind.Name),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			cols, err := repo.ListCollections(cmd.Context(), st, kind)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(cols))
			for _, c := range cols {
				rows = append(rows, []string{
					strconv.FormatInt(c.ID, 10), c.Title, strconv.Itoa(c.ScoreCount),
				})
			}
			return formatter(cmd, rootOpts).Table([]string{"ID", "TITLE", "SCORES"}, rows, cols)
		},
	}
}

func newCollectionShowCommand(rootOpts *RootOptions, kind repo.CollectionKind) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id|name>",
		Short:         fmt.Sprintf("Show a %s and its scores", kind.Name),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			c, err := resolveCollectionRef(ctx, st, kind, args[0])
			if err != nil {
				return err
			}
			var scores []*repo.Score
			if kind.Rel.Ordered {
				scores, err = repo.ScoresInSetlist(ctx, st, c.ID)
			} else {
				scores, err = repo.ScoresInLibrary(ctx, st, c.ID)
			}
			if err != nil {
				return err
			}

			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(struct {
					*repo.Collection
					Scores []*repo.Score `json:"scores"`
				}{c, scores})
			}
			fmt.Fprintf(f.Writer, "%s (ID %d, %d scores)\n\n", c.Title, c.ID, len(scores))
			return printScores(f, scores)
		},
	}
}

func newCollectionCreateCommand(rootOpts *RootOptions, kind repo.CollectionKind) *cobra.Command {
	return &cobra.Command{
		Use:           "create <name>",
		Short:         fmt.Sprintf("Create a %s", kind.Name),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreRW(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			var created *repo.Collection
			err = st.Transact(ctx, func(tx *store.Tx) error {
				created, err = repo.CreateCollection(ctx, tx, kind, args[0])
				return err
			})
			if err != nil {
				return err
			}
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(created)
			}
			fmt.Fprintf(f.Writer, "Created %s %q (ID %d)\n", kind.Name, created.Title, created.ID)
			return nil
		},
	}
}

func newCollectionRenameCommand(rootOpts *RootOptions, kind repo.CollectionKind) *cobra.Command {
	return &cobra.Command{
		Use:           "rename <id|name> <new-name>",
		Short:         fmt.Sprintf("Rename a %s", kind.Name),
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreRW(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			err = st.Transact(ctx, func(tx *store.Tx) error {
				c, err := resolveCollectionRef(ctx, tx, kind, args[0])
				if err != nil {
					return err
				}
				return repo.RenameCollection(ctx, tx, kind, c.ID, args[1])
			})
			if err != nil {
				return err
			}
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(map[string]string{"renamed": args[0], "to": args[1]})
			}
			fmt.Fprintf(f.Writer, "Renamed %s %q to %q\n", kind.Name, args[0], args[1])
			return nil
		},
	}
}

func newCollectionDeleteCommand(rootOpts *RootOptions, kind repo.CollectionKind) *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:           "delete <id|name>",
		Short:         fmt.Sprintf("Delete a %s", kind.Name),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreRW(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			err = st.Transact(ctx, func(tx *store.Tx) error {
				c, err := resolveCollectionRef(ctx, tx, kind, args[0])
				if err != nil {
					return err
				}
				return repo.DeleteCollection(ctx, tx, kind, c.ID, cascade)
			})
			if err != nil {
				return err
			}
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(f.Writer, "Deleted %s %q\n", kind.Name, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "also remove the membership rows")

	return cmd
}

func newCollectionAddCommand(rootOpts *RootOptions, kind repo.CollectionKind) *cobra.Command {
	return &cobra.Command{
		Use:           "add <id|name> <score>",
		Short:         fmt.Sprintf("Add a score to a %s", kind.Name),
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreRW(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			var pos int
			err = st.Transact(ctx, func(tx *store.Tx) error {
				c, err := resolveCollectionRef(ctx, tx, kind, args[0])
				if err != nil {
					return err
				}
				s, err := resolveScoreRef(ctx, tx, args[1])
				if err != nil {
					return err
				}
				pos, err = relation.AddMember(ctx, tx, kind.Rel, c.ID, s.ID)
				return err
			})
			if err != nil {
				return err
			}
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(map[string]int{"position": pos})
			}
			if kind.Rel.Ordered {
				fmt.Fprintf(f.Writer, "Added %q to %q at position %d\n", args[1], args[0], pos)
			} else {
				fmt.Fprintf(f.Writer, "Added %q to %q\n", args[1], args[0])
			}
			return nil
		},
	}
}

func newCollectionRemoveCommand(rootOpts *RootOptions, kind repo.CollectionKind) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <id|name> <score>",
		Short:         fmt.Sprintf("Remove a score from a %s", kind.Name),
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreRW(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			err = st.Transact(ctx, func(tx *store.Tx) error {
				c, err := resolveCollectionRef(ctx, tx, kind, args[0])
				if err != nil {
					return err
				}
				s, err := resolveScoreRef(ctx, tx, args[1])
				if err != nil {
					return err
				}
				return relation.RemoveMember(ctx, tx, kind.Rel, c.ID, s.ID)
			})
			if err != nil {
				return err
			}
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(map[string]string{"removed": args[1], "from": args[0]})
			}
			fmt.Fprintf(f.Writer, "Removed %q from %q\n", args[1], args[0])
			return nil
		},
	}
}

func newSetlistReorderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "reorder <setlist> <score> <position>",
		Short:         "Move a score to a new position in a setlist",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[2])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid position", err)
			}

			st, err := openStoreRW(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			err = st.Transact(ctx, func(tx *store.Tx) error {
				c, err := resolveCollectionRef(ctx, tx, repo.Setlists, args[0])
				if err != nil {
					return err
				}
				s, err := resolveScoreRef(ctx, tx, args[1])
				if err != nil {
					return err
				}
				return relation.Reorder(ctx, tx, relation.SetlistItems, c.ID, s.ID, pos)
			})
			if err != nil {
				return err
			}
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(map[string]int{"position": pos})
			}
			fmt.Fprintf(f.Writer, "Moved %q to position %d in %q\n", args[1], pos, args[0])
			return nil
		},
	}
}

func newSetlistShuffleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "shuffle <setlist>",
		Short:         "Regenerate a setlist's shuffle-playback order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreRW(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			err = st.Transact(ctx, func(tx *store.Tx) error {
				c, err := resolveCollectionRef(ctx, tx, repo.Setlists, args[0])
				if err != nil {
					return err
				}
				return relation.ReshuffleOwner(ctx, tx, relation.SetlistItems, c.ID)
			})
			if err != nil {
				return err
			}
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(map[string]string{"shuffled": args[0]})
			}
			fmt.Fprintf(f.Writer, "Shuffled %q\n", args[0])
			return nil
		},
	}
}
