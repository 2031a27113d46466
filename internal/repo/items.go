package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/text/cases"

	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// Score is a score or bookmark row from ZITEM with its joined metadata.
// Zero-valued Rating, Difficulty, KeyCode and BPM mean unset.
type Score struct {
	ID         int64    `json:"id"`
	Path       string   `json:"path"`
	Title      string   `json:"title"`
	SortTitle  string   `json:"sort_title,omitempty"`
	UUID       string   `json:"uuid,omitempty"`
	Rating     int      `json:"rating,omitempty"`
	Difficulty int      `json:"difficulty,omitempty"`
	KeyCode    int      `json:"key_code,omitempty"`
	Key        string   `json:"key,omitempty"`
	BPM        int      `json:"bpm,omitempty"`
	StartPage  int      `json:"start_page,omitempty"`
	EndPage    int      `json:"end_page,omitempty"`
	Composers  []string `json:"composers,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Labels     []string `json:"labels,omitempty"`
}

// scoreSelect joins the rating and difficulty values out of their ZMETA
// rows; ZITEM stores references, not the values themselves.
const scoreSelect = `SELECT i.Z_PK, i.ZPATH, i.ZTITLE, i.ZSORTTITLE, i.ZUUID,
	r.ZVALUE5, d.ZVALUE1, i.ZKEY, i.ZBPM, i.ZSTARTPAGE, i.ZENDPAGE
	FROM ZITEM i
	LEFT JOIN ZMETA r ON i.ZRATING = r.Z_PK
	LEFT JOIN ZMETA d ON i.ZDIFFICULTY = d.Z_PK`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*Score, error) {
	var s Score
	var path, title, sortTitle, uuid sql.NullString
	var rating, difficulty, key, bpm, start, end sql.NullInt64
	err := row.Scan(&s.ID, &path, &title, &sortTitle, &uuid,
		&rating, &difficulty, &key, &bpm, &start, &end)
	if err != nil {
		return nil, err
	}
	s.Path = path.String
	s.Title = title.String
	s.SortTitle = sortTitle.String
	s.UUID = uuid.String
	s.Rating = int(rating.Int64)
	s.Difficulty = int(difficulty.Int64)
	s.BPM = int(bpm.Int64)
	s.StartPage = int(start.Int64)
	s.EndPage = int(end.Int64)
	if k, ok := schema.KeyFromCode(int(key.Int64)); ok {
		s.KeyCode = k.Code
		s.Key = k.String()
	}
	return &s, nil
}

// folder derives the host's sort title: a case- and width-folded form of the
// display title. Unicode-aware, unlike a plain ASCII lowering.
var folder = cases.Fold()

// SortTitle returns the stored sort form of a display title.
func SortTitle(title string) string {
	return folder.String(title)
}

// markModified stamps an item with the current Core Data timestamp and bumps
// its optimistic-lock counter, the way the host records every edit.
func markModified(ctx context.Context, tx *store.Tx, itemID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE ZITEM SET ZMODIFIED = ?, Z_OPT = Z_OPT + 1 WHERE Z_PK = ?",
		schema.Timestamp(time.Now()), itemID)
	if err != nil {
		return fmt.Errorf("mark item %d modified: %w", itemID, err)
	}
	return nil
}

// LoadMetadata fills a score's composer, genre, keyword and label names from
// the meta join tables.
func LoadMetadata(ctx context.Context, q schema.Querier, s *Score) error {
	for _, part := range []struct {
		dest *[]string
		kind MetaKind
	}{
		{&s.Composers, Composers},
		{&s.Genres, Genres},
		{&s.Keywords, Keywords},
		{&s.Labels, Labels},
	} {
		names, err := metaNamesForItem(ctx, q, part.kind, s.ID)
		if err != nil {
			return err
		}
		*part.dest = names
	}
	return nil
}

func metaNamesForItem(ctx context.Context, q schema.Querier, kind MetaKind, itemID int64) ([]string, error) {
	rel := kind.Rel
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT m.%s FROM ZMETA m JOIN %s j ON m.Z_PK = j.%s WHERE j.%s = ? ORDER BY m.%s",
		kind.ValueCol, rel.Table, rel.MemberCol, rel.OwnerCol, kind.ValueCol), itemID)
	if err != nil {
		return nil, fmt.Errorf("load %s names for item %d: %w", kind.Name, itemID, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan %s name: %w", kind.Name, err)
		}
		if name.Valid && name.String != "" {
			names = append(names, name.String)
		}
	}
	return names, rows.Err()
}
