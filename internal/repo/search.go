package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/schema"
)

// SearchFilter narrows a score search. Zero values mean "no constraint";
// NoKey and NoRating flip their field into an absence test instead.
type SearchFilter struct {
	Query      string // matches title or composer, words joined loosely
	Title      string
	Composer   string
	Genre      string
	Key        string
	NoKey      bool
	MinRating  int
	NoRating   bool
	Difficulty int
	Limit      int
	ScoresOnly bool // exclude bookmarks from the results
}

const defaultSearchLimit = 50

// Search runs a filtered score search. Every value is parameterized; the
// filter only ever contributes fixed SQL fragments. Results come back in
// sort-title order, capped at the limit.
func Search(ctx context.Context, q schema.Querier, f SearchFilter) ([]*Score, error) {
	var (
		joins      []string
		conditions []string
		args       []any
	)

	if f.ScoresOnly {
		conditions = append(conditions, "i.Z_ENT = ?")
		args = append(args, schema.EntScore)
	} else {
		conditions = append(conditions, "i.Z_ENT IN (?, ?)")
		args = append(args, schema.EntScore, schema.EntBookmark)
	}

	// The free-form query matches either the title or a composer name, so
	// both it and the composer filter need the composer join.
	if f.Query != "" || f.Composer != "" {
		joins = append(joins,
			"LEFT JOIN Z_4COMPOSERS c ON i.Z_PK = c.Z_4ITEMS1 LEFT JOIN ZMETA mc ON c.Z_10COMPOSERS = mc.Z_PK")
	}

	if f.Query != "" {
		// Words joined with % so "Op 28" still finds "Op. 28".
		pattern := "%" + strings.Join(strings.Fields(f.Query), "%") + "%"
		conditions = append(conditions, "(i.ZTITLE LIKE ? OR mc.ZVALUE LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if f.Composer != "" {
		conditions = append(conditions, "mc.ZVALUE LIKE ?")
		args = append(args, "%"+f.Composer+"%")
	}
	if f.Genre != "" {
		joins = append(joins,
			"JOIN Z_4GENRES g ON i.Z_PK = g.Z_4ITEMS4 JOIN ZMETA mg ON g.Z_12GENRES = mg.Z_PK")
		conditions = append(conditions, "mg.ZVALUE2 LIKE ?")
		args = append(args, "%"+f.Genre+"%")
	}
	if f.Title != "" {
		conditions = append(conditions, "i.ZTITLE LIKE ?")
		args = append(args, "%"+f.Title+"%")
	}

	switch {
	case f.Key != "":
		key, err := schema.ParseKey(f.Key)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, "i.ZKEY = ?")
		args = append(args, key.Code)
	case f.NoKey:
		conditions = append(conditions, "(i.ZKEY IS NULL OR i.ZKEY = 0)")
	}

	switch {
	case f.MinRating != 0:
		if !schema.ValidRating(f.MinRating) {
			return nil, liberr.New(liberr.CodeRange, "rating %d out of range", f.MinRating)
		}
		conditions = append(conditions, "r.ZVALUE5 >= ?")
		args = append(args, f.MinRating)
	case f.NoRating:
		conditions = append(conditions, "i.ZRATING IS NULL")
	}

	if f.Difficulty != 0 {
		if !schema.ValidDifficulty(f.Difficulty) {
			return nil, liberr.New(liberr.CodeRange, "difficulty %d out of range", f.Difficulty)
		}
		conditions = append(conditions, "d.ZVALUE1 = ?")
		args = append(args, f.Difficulty)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf("SELECT DISTINCT %s %s WHERE %s ORDER BY i.ZSORTTITLE, i.ZTITLE, i.Z_PK LIMIT ?",
		strings.TrimPrefix(scoreSelect, "SELECT "),
		strings.Join(joins, " "),
		strings.Join(conditions, " AND "))
	return queryScores(ctx, q, query, args...)
}
