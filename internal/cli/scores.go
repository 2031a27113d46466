package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/repo"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// errDryRun aborts a dry-run transaction after the mutation has been
// applied and reported, forcing a rollback.
var errDryRun = errors.New("dry run requested")

// NewScoresCommand creates the scores command group.
func NewScoresCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "List, search and edit scores",
	}
	cmd.AddCommand(newScoresLsCommand(rootOpts))
	cmd.AddCommand(newScoresSearchCommand(rootOpts))
	cmd.AddCommand(newScoresShowCommand(rootOpts))
	cmd.AddCommand(newScoresEditCommand(rootOpts))
	return cmd
}

// resolveScoreRef finds a score from an id, path or title reference.
func resolveScoreRef(ctx context.Context, q schema.Querier, ref string) (*repo.Score, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if s, err := repo.ScoreByID(ctx, q, id); err == nil {
			return s, nil
		} else if !liberr.IsNotFound(err) {
			return nil, err
		}
	}
	if s, err := repo.ScoreByPath(ctx, q, ref); err == nil {
		return s, nil
	} else if !liberr.IsNotFound(err) {
		return nil, err
	}
	return repo.ResolveScore(ctx, q, ref)
}

type scoresLsOptions struct {
	*RootOptions
	Sort  string
	Desc  bool
	Limit int
}

func newScoresLsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &scoresLsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "ls",
		Short:         "List all scores",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listScores(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sort, "sort", "title", "sort column (id|title|path|rating|difficulty|added|modified|played)")
	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results (0 for all)")

	return cmd
}

func listScores(opts *scoresLsOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	scores, err := repo.ListScores(cmd.Context(), st, opts.Sort, opts.Desc, opts.Limit)
	if err != nil {
		return err
	}
	return printScores(formatter(cmd, opts.RootOptions), scores)
}

func printScores(f *OutputFormatter, scores []*repo.Score) error {
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Title,
			blankIfZero(s.Rating),
			blankIfZero(s.Difficulty),
			s.Key,
			s.Path,
		})
	}
	return f.Table([]string{"ID", "TITLE", "RATING", "DIFFICULTY", "KEY", "PATH"}, rows, scores)
}

func blankIfZero(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

type scoresSearchOptions struct {
	*RootOptions
	repo.SearchFilter
}

func newScoresSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &scoresSearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "search [query]",
		Short:         "Search scores by title, composer and metadata",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Query = args[0]
			}
			return searchScores(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SearchFilter.Title, "title", "", "match title substring")
	cmd.Flags().StringVar(&opts.Composer, "composer", "", "match composer substring")
	cmd.Flags().StringVar(&opts.Genre, "genre", "", "match genre substring")
	cmd.Flags().StringVar(&opts.Key, "key", "", `match musical key (e.g. "C Major", "F# Minor")`)
	cmd.Flags().BoolVar(&opts.NoKey, "no-key", false, "only scores without a key")
	cmd.Flags().IntVar(&opts.MinRating, "min-rating", 0, "minimum rating (1-6)")
	cmd.Flags().BoolVar(&opts.NoRating, "no-rating", false, "only unrated scores")
	cmd.Flags().IntVar(&opts.Difficulty, "difficulty", 0, "exact difficulty (1-5)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum results")
	cmd.Flags().BoolVar(&opts.ScoresOnly, "scores-only", false, "exclude bookmarks")

	return cmd
}

func searchScores(opts *scoresSearchOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	scores, err := repo.Search(cmd.Context(), st, opts.SearchFilter)
	if err != nil {
		return err
	}
	return printScores(formatter(cmd, opts.RootOptions), scores)
}

func newScoresShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show <id|path|title>",
		Short:         "Show one score with full metadata",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showScore(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func showScore(opts *RootOptions, ref string, cmd *cobra.Command) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	s, err := resolveScoreRef(ctx, st, ref)
	if err != nil {
		return err
	}
	if err := repo.LoadMetadata(ctx, st, s); err != nil {
		return err
	}

	f := formatter(cmd, opts)
	if f.Format == "json" {
		return f.Success(s)
	}
	printScoreDetail(f, s)
	return nil
}

func printScoreDetail(f *OutputFormatter, s *repo.Score) {
	fmt.Fprintf(f.Writer, "ID:         %d\n", s.ID)
	fmt.Fprintf(f.Writer, "Title:      %s\n", s.Title)
	fmt.Fprintf(f.Writer, "Path:       %s\n", s.Path)
	if len(s.Composers) > 0 {
		fmt.Fprintf(f.Writer, "Composers:  %s\n", strings.Join(s.Composers, ", "))
	}
	if len(s.Genres) > 0 {
		fmt.Fprintf(f.Writer, "Genres:     %s\n", strings.Join(s.Genres, ", "))
	}
	if len(s.Keywords) > 0 {
		fmt.Fprintf(f.Writer, "Tags:       %s\n", strings.Join(s.Keywords, ", "))
	}
	if len(s.Labels) > 0 {
		fmt.Fprintf(f.Writer, "Labels:     %s\n", strings.Join(s.Labels, ", "))
	}
	if s.Key != "" {
		fmt.Fprintf(f.Writer, "Key:        %s\n", s.Key)
	}
	if s.Rating > 0 {
		fmt.Fprintf(f.Writer, "Rating:     %d\n", s.Rating)
	}
	if s.Difficulty > 0 {
		fmt.Fprintf(f.Writer, "Difficulty: %d\n", s.Difficulty)
	}
	if s.BPM > 0 {
		fmt.Fprintf(f.Writer, "BPM:        %d\n", s.BPM)
	}
	if s.UUID != "" {
		fmt.Fprintf(f.Writer, "UUID:       %s\n", s.UUID)
	}
}

type scoresEditOptions struct {
	*RootOptions
	Title      string
	Key        string
	Rating     int
	Difficulty int
	Composer   string
	Genre      string
	Tags       []string
	DryRun     bool
}

func newScoresEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &scoresEditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "edit <id|path|title>",
		Short:         "Edit a score's metadata",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editItem(opts, args[0], cmd, resolveScoreRef)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.Key, "key", "", `musical key ("C Major"; empty string clears)`)
	cmd.Flags().IntVar(&opts.Rating, "rating", 0, "rating 1-6 (0 clears)")
	cmd.Flags().IntVar(&opts.Difficulty, "difficulty", 0, "difficulty 1-5 (0 clears)")
	cmd.Flags().StringVar(&opts.Composer, "composer", "", "composer name (empty string clears)")
	cmd.Flags().StringVar(&opts.Genre, "genre", "", "genre name (empty string clears)")
	cmd.Flags().StringSliceVar(&opts.Tags, "tags", nil, "replace the full tag set")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report the change without writing")

	return cmd
}

type scoreResolver func(ctx context.Context, q schema.Querier, ref string) (*repo.Score, error)

func editItem(opts *scoresEditOptions, ref string, cmd *cobra.Command, resolve scoreResolver) error {
	upd := repo.ScoreUpdate{}
	flags := cmd.Flags()
	if flags.Changed("title") {
		upd.Title = &opts.Title
	}
	if flags.Changed("key") {
		upd.Key = &opts.Key
	}
	if flags.Changed("rating") {
		upd.Rating = &opts.Rating
	}
	if flags.Changed("difficulty") {
		upd.Difficulty = &opts.Difficulty
	}
	if flags.Changed("composer") {
		upd.Composer = &opts.Composer
	}
	if flags.Changed("genre") {
		upd.Genre = &opts.Genre
	}
	if flags.Changed("tags") {
		upd.Keywords = &opts.Tags
	}
	if upd == (repo.ScoreUpdate{}) {
		return NewExitError(ExitCommandError, "nothing to change: pass at least one edit flag")
	}

	st, err := openStoreRW(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	f := formatter(cmd, opts.RootOptions)
	ctx := cmd.Context()
	var edited *repo.Score
	err = st.Transact(ctx, func(tx *store.Tx) error {
		s, err := resolve(ctx, tx, ref)
		if err != nil {
			return err
		}
		if err := repo.UpdateItem(ctx, tx, s.ID, upd); err != nil {
			return err
		}
		edited, err = repo.ScoreByID(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if err := repo.LoadMetadata(ctx, tx, edited); err != nil {
			return err
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return err
	}

	if opts.DryRun {
		f.VerboseLog("dry run: rolled back")
	}
	if f.Format == "json" {
		return f.Success(edited)
	}
	printScoreDetail(f, edited)
	return nil
}
