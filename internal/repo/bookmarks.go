package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/relation"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// Bookmark is a page region inside a score, stored as a ZITEM row of its
// own entity type with ZSCORE pointing at the owner.
type Bookmark struct {
	ID         int64  `json:"id"`
	ScoreID    int64  `json:"score_id"`
	ScoreTitle string `json:"score_title,omitempty"`
	Title      string `json:"title"`
	UUID       string `json:"uuid,omitempty"`
	StartPage  int    `json:"start_page"`
	EndPage    int    `json:"end_page"`
	Rating     int    `json:"rating,omitempty"`
	Difficulty int    `json:"difficulty,omitempty"`
	KeyCode    int    `json:"key_code,omitempty"`
	Key        string `json:"key,omitempty"`
}

const bookmarkSelect = `SELECT b.Z_PK, b.ZSCORE, s.ZTITLE, b.ZTITLE, b.ZUUID,
	b.ZSTARTPAGE, b.ZENDPAGE, r.ZVALUE5, d.ZVALUE1, b.ZKEY
	FROM ZITEM b
	JOIN ZITEM s ON b.ZSCORE = s.Z_PK
	LEFT JOIN ZMETA r ON b.ZRATING = r.Z_PK
	LEFT JOIN ZMETA d ON b.ZDIFFICULTY = d.Z_PK`

func scanBookmark(row rowScanner) (*Bookmark, error) {
	var b Bookmark
	var scoreID sql.NullInt64
	var scoreTitle, title, uid sql.NullString
	var start, end, rating, difficulty, key sql.NullInt64
	err := row.Scan(&b.ID, &scoreID, &scoreTitle, &title, &uid,
		&start, &end, &rating, &difficulty, &key)
	if err != nil {
		return nil, err
	}
	b.ScoreID = scoreID.Int64
	b.ScoreTitle = scoreTitle.String
	b.Title = title.String
	b.UUID = uid.String
	b.StartPage = int(start.Int64)
	b.EndPage = int(end.Int64)
	b.Rating = int(rating.Int64)
	b.Difficulty = int(difficulty.Int64)
	if k, ok := schema.KeyFromCode(int(key.Int64)); ok {
		b.KeyCode = k.Code
		b.Key = k.String()
	}
	return &b, nil
}

// ListBookmarks returns a score's bookmarks in page order.
func ListBookmarks(ctx context.Context, q schema.Querier, scoreID int64) ([]*Bookmark, error) {
	rows, err := q.QueryContext(ctx,
		bookmarkSelect+" WHERE b.ZSCORE = ? AND b.Z_ENT = ? ORDER BY b.ZSTARTPAGE, b.Z_PK",
		scoreID, schema.EntBookmark)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks of score %d: %w", scoreID, err)
	}
	return collectBookmarks(rows)
}

// AllBookmarks returns every bookmark in the store, grouped by score.
func AllBookmarks(ctx context.Context, q schema.Querier) ([]*Bookmark, error) {
	rows, err := q.QueryContext(ctx,
		bookmarkSelect+" WHERE b.Z_ENT = ? ORDER BY s.ZSORTTITLE, b.ZSTARTPAGE, b.Z_PK",
		schema.EntBookmark)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return collectBookmarks(rows)
}

func collectBookmarks(rows *sql.Rows) ([]*Bookmark, error) {
	defer rows.Close()
	bookmarks := []*Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// BookmarkByID loads one bookmark by primary key.
func BookmarkByID(ctx context.Context, q schema.Querier, id int64) (*Bookmark, error) {
	b, err := scanBookmark(q.QueryRowContext(ctx,
		bookmarkSelect+" WHERE b.Z_PK = ? AND b.Z_ENT = ?", id, schema.EntBookmark))
	if err == sql.ErrNoRows {
		return nil, liberr.New(liberr.CodeNotFound, "no bookmark with id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load bookmark %d: %w", id, err)
	}
	return b, nil
}

// DeleteBookmark removes a bookmark and every membership row referencing
// it, keeping setlists and libraries free of dangling entries.
func DeleteBookmark(ctx context.Context, tx *store.Tx, id int64) error {
	if _, err := BookmarkByID(ctx, tx, id); err != nil {
		return err
	}
	if err := relation.RemoveAll(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM ZITEM WHERE Z_PK = ? AND Z_ENT = ?", id, schema.EntBookmark); err != nil {
		return fmt.Errorf("delete bookmark %d: %w", id, err)
	}
	return nil
}

// DuplicateBookmark is a newer bookmark whose score, title and page span
// all match an older one.
type DuplicateBookmark struct {
	Bookmark
	OriginalID int64 `json:"original_id"`
}

// FindDuplicateBookmarks reports bookmarks duplicating an older row. The
// lowest primary key in each duplicate group is the keeper.
func FindDuplicateBookmarks(ctx context.Context, q schema.Querier) ([]DuplicateBookmark, error) {
	rows, err := q.QueryContext(ctx, `SELECT b.Z_PK, b.ZSCORE, s.ZTITLE, b.ZTITLE, b.ZUUID,
		b.ZSTARTPAGE, b.ZENDPAGE, r.ZVALUE5, d.ZVALUE1, b.ZKEY,
		(SELECT MIN(b2.Z_PK) FROM ZITEM b2
		 WHERE b2.Z_ENT = b.Z_ENT AND b2.ZSCORE = b.ZSCORE
		 AND b2.ZTITLE = b.ZTITLE
		 AND b2.ZSTARTPAGE = b.ZSTARTPAGE AND b2.ZENDPAGE = b.ZENDPAGE)
		FROM ZITEM b
		JOIN ZITEM s ON b.ZSCORE = s.Z_PK
		LEFT JOIN ZMETA r ON b.ZRATING = r.Z_PK
		LEFT JOIN ZMETA d ON b.ZDIFFICULTY = d.Z_PK
		WHERE b.Z_ENT = ?
		AND b.Z_PK > (SELECT MIN(b2.Z_PK) FROM ZITEM b2
		 WHERE b2.Z_ENT = b.Z_ENT AND b2.ZSCORE = b.ZSCORE
		 AND b2.ZTITLE = b.ZTITLE
		 AND b2.ZSTARTPAGE = b.ZSTARTPAGE AND b2.ZENDPAGE = b.ZENDPAGE)
		ORDER BY s.ZSORTTITLE, b.ZSTARTPAGE, b.Z_PK`, schema.EntBookmark)
	if err != nil {
		return nil, fmt.Errorf("find duplicate bookmarks: %w", err)
	}
	defer rows.Close()

	dups := []DuplicateBookmark{}
	for rows.Next() {
		var d DuplicateBookmark
		var scoreID sql.NullInt64
		var scoreTitle, title, uid sql.NullString
		var start, end, rating, difficulty, key sql.NullInt64
		err := rows.Scan(&d.ID, &scoreID, &scoreTitle, &title, &uid,
			&start, &end, &rating, &difficulty, &key, &d.OriginalID)
		if err != nil {
			return nil, fmt.Errorf("scan duplicate bookmark: %w", err)
		}
		d.ScoreID = scoreID.Int64
		d.ScoreTitle = scoreTitle.String
		d.Title = title.String
		d.UUID = uid.String
		d.StartPage = int(start.Int64)
		d.EndPage = int(end.Int64)
		dups = append(dups, d)
	}
	return dups, rows.Err()
}
