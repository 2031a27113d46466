package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/repo"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

func metaKindFor(name string) repo.MetaKind {
	switch name {
	case "composer":
		return repo.Composers
	case "genre":
		return repo.Genres
	case "label":
		return repo.Labels
	default:
		return repo.Keywords
	}
}

// NewMetaCommand creates one tag-like command group (composers, genres or
// tags). All three share the same ls/rename/merge/delete shape.
func NewMetaCommand(rootOpts *RootOptions, use, kindName string) *cobra.Command {
	kind := metaKindFor(kindName)

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("List, rename, merge and delete %ss", kindName),
	}
	cmd.AddCommand(newMetaLsCommand(rootOpts, kind))
	cmd.AddCommand(newMetaRenameCommand(rootOpts, kind))
	cmd.AddCommand(newMetaMergeCommand(rootOpts, kind))
	cmd.AddCommand(newMetaDeleteCommand(rootOpts, kind))
	return cmd
}

func newMetaLsCommand(rootOpts *RootOptions, kind repo.MetaKind) *cobra.Command {
	var unused bool

	cmd := &cobra.Command{
		Use:           "ls",
		Short:         fmt.Sprintf("List %ss with usage counts", kind.Name),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			metas, err := repo.ListMeta(cmd.Context(), st, kind, unused)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(metas))
			for _, m := range metas {
				rows = append(rows, []string{
					strconv.FormatInt(m.ID, 10), m.Name, strconv.Itoa(m.ScoreCount),
				})
			}
			return formatter(cmd, rootOpts).Table([]string{"ID", "NAME", "SCORES"}, rows, metas)
		},
	}

	cmd.Flags().BoolVar(&unused, "unused", false, "only entries no score references")

	return cmd
}

func newMetaRenameCommand(rootOpts *RootOptions, kind repo.MetaKind) *cobra.Command {
	return &cobra.Command{
		Use:           "rename <old-name> <new-name>",
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
				return repo.RenameMeta(ctx, tx, kind, args[0], args[1])
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

func newMetaDeleteCommand(rootOpts *RootOptions, kind repo.MetaKind) *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:           "delete <name>",
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
				return repo.DeleteMeta(ctx, tx, kind, args[0], cascade)
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

	cmd.Flags().BoolVar(&cascade, "cascade", false, "also remove score references")

	return cmd
}

func newMetaMergeCommand(rootOpts *RootOptions, kind repo.MetaKind) *cobra.Command {
	return &cobra.Command{
		Use:           "merge <source-name> <target-name>",
		Short:         fmt.Sprintf("Merge one %s into another", kind.Name),
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
				return repo.MergeMeta(ctx, tx, kind, args[0], args[1])
			})
			if err != nil {
				return err
			}
			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(map[string]string{"merged": args[0], "into": args[1]})
			}
			fmt.Fprintf(f.Writer, "Merged %s %q into %q\n", kind.Name, args[0], args[1])
			return nil
		},
	}
}
