package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/repo"
)

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "info",
		Short:         "Show library statistics",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := repo.CollectStats(cmd.Context(), st)
			if err != nil {
				return err
			}

			f := formatter(cmd, rootOpts)
			if f.Format == "json" {
				return f.Success(stats)
			}

			fmt.Fprintf(f.Writer, "Library: %s\n\n", st.Path())
			fmt.Fprintln(f.Writer, "Content:")
			fmt.Fprintf(f.Writer, "  Scores:     %6d\n", stats.Scores)
			fmt.Fprintf(f.Writer, "  Bookmarks:  %6d\n", stats.Bookmarks)
			fmt.Fprintf(f.Writer, "  Pages:      %6d\n", stats.Pages)
			fmt.Fprintf(f.Writer, "  Setlists:   %6d\n", stats.Setlists)
			fmt.Fprintf(f.Writer, "  Libraries:  %6d\n", stats.Libraries)
			fmt.Fprintln(f.Writer)
			fmt.Fprintln(f.Writer, "Metadata:")
			fmt.Fprintf(f.Writer, "  Composers:  %6d\n", stats.Composers)
			fmt.Fprintf(f.Writer, "  Genres:     %6d\n", stats.Genres)
			fmt.Fprintf(f.Writer, "  Tags:       %6d\n", stats.Keywords)
			fmt.Fprintf(f.Writer, "  Labels:     %6d\n", stats.Labels)
			fmt.Fprintf(f.Writer, "  Tracks:     %6d\n", stats.Tracks)
			fmt.Fprintln(f.Writer)
			fmt.Fprintln(f.Writer, "Scores with metadata:")
			fmt.Fprintf(f.Writer, "  With rating:     %6d (%.1f%%)\n",
				stats.WithRating, stats.Coverage(stats.WithRating))
			fmt.Fprintf(f.Writer, "  With difficulty: %6d (%.1f%%)\n",
				stats.WithDifficulty, stats.Coverage(stats.WithDifficulty))
			fmt.Fprintf(f.Writer, "  With key:        %6d (%.1f%%)\n",
				stats.WithKey, stats.Coverage(stats.WithKey))
			return nil
		},
	}
}
