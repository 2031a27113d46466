package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/repo"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

var csvHeader = []string{
	"id", "path", "title", "composer", "genre", "key", "rating", "difficulty", "keywords",
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:           "export csv",
		Short:         "Export score metadata as CSV",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "csv" {
				return NewExitError(ExitCommandError, "only csv export is supported")
			}
			return exportCSV(rootOpts, output, cmd)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func exportCSV(opts *RootOptions, output string, cmd *cobra.Command) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	scores, err := repo.ListScores(ctx, st, "id", false, 0)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range scores {
		if err := repo.LoadMetadata(ctx, st, s); err != nil {
			return err
		}
		record := []string{
			strconv.FormatInt(s.ID, 10),
			s.Path,
			s.Title,
			strings.Join(s.Composers, "; "),
			strings.Join(s.Genres, "; "),
			s.Key,
			blankIfZero(s.Rating),
			blankIfZero(s.Difficulty),
			strings.Join(s.Keywords, "; "),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if output == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := atomic.WriteFile(output, &buf); err != nil {
		return WrapExitError(ExitCommandError, "write export file", err)
	}
	formatter(cmd, opts).VerboseLog("exported %d scores to %s", len(scores), output)
	return nil
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:           "import csv <file>",
		Short:         "Import score metadata from CSV, keyed on id",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "csv" {
				return NewExitError(ExitCommandError, "only csv import is supported")
			}
			return importCSV(rootOpts, args[1], dryRun, cmd)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report would-be changes without writing")

	return cmd
}

// csvChange is one field-level difference between the file and the store.
type csvChange struct {
	ID    int64  `json:"id"`
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func importCSV(opts *RootOptions, path string, dryRun bool, cmd *cobra.Command) error {
	file, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "open import file", err)
	}
	defer file.Close()

	records, err := readCSVRecords(file)
	if err != nil {
		return err
	}

	st, err := openStoreRW(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	var changes []csvChange
	err = st.Transact(ctx, func(tx *store.Tx) error {
		for _, rec := range records {
			recChanges, err := applyCSVRecord(ctx, tx, rec)
			if err != nil {
				return err
			}
			changes = append(changes, recChanges...)
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return err
	}

	f := formatter(cmd, opts)
	if f.Format == "json" {
		return f.Success(map[string]any{"dry_run": dryRun, "changes": changes})
	}
	if len(changes) == 0 {
		fmt.Fprintln(f.Writer, "No changes.")
		return nil
	}
	for _, c := range changes {
		fmt.Fprintf(f.Writer, "  score %d: %s %q -> %q\n", c.ID, c.Field, c.From, c.To)
	}
	if dryRun {
		fmt.Fprintf(f.Writer, "Dry run: %d change(s) rolled back.\n", len(changes))
	} else {
		fmt.Fprintf(f.Writer, "Applied %d change(s).\n", len(changes))
	}
	return nil
}

type csvRecord struct {
	id                             int64
	title, composer, genre, key    string
	rating, difficulty             int
	keywords                       []string
	hasRating, hasDifficulty       bool
}

func readCSVRecords(r io.Reader) ([]csvRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, liberr.Wrap(liberr.CodeValidation, "read csv header", err)
	}
	for i, want := range csvHeader {
		if header[i] != want {
			return nil, liberr.New(liberr.CodeValidation,
				"unexpected csv column %d: got %q, want %q", i, header[i], want)
		}
	}

	var records []csvRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, liberr.Wrap(liberr.CodeValidation, "read csv record", err)
		}

		var rec csvRecord
		rec.id, err = strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, liberr.New(liberr.CodeValidation, "line %d: invalid id %q", line, row[0])
		}
		rec.title = row[2]
		rec.composer = row[3]
		rec.genre = row[4]
		rec.key = row[5]
		if row[6] != "" {
			rec.rating, err = strconv.Atoi(row[6])
			if err != nil {
				return nil, liberr.New(liberr.CodeValidation, "line %d: invalid rating %q", line, row[6])
			}
			rec.hasRating = true
		}
		if row[7] != "" {
			rec.difficulty, err = strconv.Atoi(row[7])
			if err != nil {
				return nil, liberr.New(liberr.CodeValidation, "line %d: invalid difficulty %q", line, row[7])
			}
			rec.hasDifficulty = true
		}
		if row[8] != "" {
			for _, kw := range strings.Split(row[8], ";") {
				rec.keywords = append(rec.keywords, strings.TrimSpace(kw))
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// applyCSVRecord diffs one record against the stored score and applies the
// delta. Only fields that actually differ are written.
func applyCSVRecord(ctx context.Context, tx *store.Tx, rec csvRecord) ([]csvChange, error) {
	s, err := repo.ScoreByID(ctx, tx, rec.id)
	if err != nil {
		return nil, err
	}
	if err := repo.LoadMetadata(ctx, tx, s); err != nil {
		return nil, err
	}

	var changes []csvChange
	var upd repo.ScoreUpdate

	if rec.title != "" && rec.title != s.Title {
		changes = append(changes, csvChange{s.ID, "title", s.Title, rec.title})
		upd.Title = &rec.title
	}
	if rec.key != s.Key {
		changes = append(changes, csvChange{s.ID, "key", s.Key, rec.key})
		upd.Key = &rec.key
	}
	if rec.hasRating && rec.rating != s.Rating {
		changes = append(changes, csvChange{s.ID, "rating",
			blankIfZero(s.Rating), blankIfZero(rec.rating)})
		upd.Rating = &rec.rating
	}
	if rec.hasDifficulty && rec.difficulty != s.Difficulty {
		changes = append(changes, csvChange{s.ID, "difficulty",
			blankIfZero(s.Difficulty), blankIfZero(rec.difficulty)})
		upd.Difficulty = &rec.difficulty
	}
	if cur := strings.Join(s.Composers, "; "); rec.composer != cur {
		changes = append(changes, csvChange{s.ID, "composer", cur, rec.composer})
		upd.Composer = &rec.composer
	}
	if cur := strings.Join(s.Genres, "; "); rec.genre != cur {
		changes = append(changes, csvChange{s.ID, "genre", cur, rec.genre})
		upd.Genre = &rec.genre
	}
	if cur := strings.Join(s.Keywords, "; "); strings.Join(rec.keywords, "; ") != cur {
		changes = append(changes, csvChange{s.ID, "keywords",
			cur, strings.Join(rec.keywords, "; ")})
		upd.Keywords = &rec.keywords
	}

	if len(changes) == 0 {
		return nil, nil
	}
	if err := repo.UpdateItem(ctx, tx, s.ID, upd); err != nil {
		return nil, err
	}
	return changes, nil
}
