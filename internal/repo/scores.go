package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/relation"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// ScoreByID loads one score (or bookmark) by primary key.
func ScoreByID(ctx context.Context, q schema.Querier, id int64) (*Score, error) {
	s, err := scanScore(q.QueryRowContext(ctx, scoreSelect+" WHERE i.Z_PK = ?", id))
	if err == sql.ErrNoRows {
		return nil, liberr.New(liberr.CodeNotFound, "no item with id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load item %d: %w", id, err)
	}
	return s, nil
}

// ScoreByPath loads a score by its stored file name.
func ScoreByPath(ctx context.Context, q schema.Querier, path string) (*Score, error) {
	s, err := scanScore(q.QueryRowContext(ctx,
		scoreSelect+" WHERE i.Z_ENT = ? AND i.ZPATH = ?", schema.EntScore, path))
	if err == sql.ErrNoRows {
		return nil, liberr.New(liberr.CodeNotFound, "no score with path %q", path)
	}
	if err != nil {
		return nil, fmt.Errorf("load score %q: %w", path, err)
	}
	return s, nil
}

// ResolveScore finds a single score from a free-form reference. Tries the
// exact title first, then a case-insensitive match, then a substring match.
// More than one candidate at any stage is AMBIGUOUS; a reference matching
// nothing at all is NOT_FOUND.
func ResolveScore(ctx context.Context, q schema.Querier, ref string) (*Score, error) {
	stages := []struct {
		clause string
		arg    any
	}{
		{"i.ZTITLE = ?", ref},
		{"i.ZTITLE = ? COLLATE NOCASE", ref},
		{"i.ZTITLE LIKE ? ESCAPE '\\'", "%" + likeEscape(ref) + "%"},
	}
	for _, stage := range stages {
		scores, err := queryScores(ctx, q,
			scoreSelect+" WHERE i.Z_ENT = ? AND "+stage.clause+" ORDER BY i.Z_PK",
			schema.EntScore, stage.arg)
		if err != nil {
			return nil, err
		}
		switch len(scores) {
		case 0:
			continue
		case 1:
			return scores[0], nil
		default:
			titles := make([]string, 0, len(scores))
			for _, s := range scores {
				titles = append(titles, fmt.Sprintf("%q (id %d)", s.Title, s.ID))
			}
			return nil, liberr.New(liberr.CodeAmbiguous,
				"%q matches %d scores: %s", ref, len(scores), strings.Join(titles, ", "))
		}
	}
	return nil, liberr.New(liberr.CodeNotFound, "no score matching %q", ref)
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}

// Sortable column names accepted by ListScores.
var scoreSortColumns = map[string]string{
	"id":         "i.Z_PK",
	"title":      "i.ZSORTTITLE",
	"path":       "i.ZPATH",
	"rating":     "r.ZVALUE5",
	"difficulty": "d.ZVALUE1",
	"added":      "i.ZADDED",
	"modified":   "i.ZMODIFIED",
	"played":     "i.ZLASTPLAYED",
}

// ListScores returns every score ordered by the named column, capped at
// limit when positive. Unknown sort names are a VALIDATION error. Rows with
// a missing sort value sort last.
func ListScores(ctx context.Context, q schema.Querier, sortBy string, descending bool, limit int) ([]*Score, error) {
	if sortBy == "" {
		sortBy = "title"
	}
	col, ok := scoreSortColumns[sortBy]
	if !ok {
		return nil, liberr.New(liberr.CodeValidation, "unknown sort column %q", sortBy)
	}
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	query := fmt.Sprintf(
		"%s WHERE i.Z_ENT = ? ORDER BY %s %s NULLS LAST, i.Z_PK", scoreSelect, col, dir)
	if limit > 0 {
		return queryScores(ctx, q, query+" LIMIT ?", schema.EntScore, limit)
	}
	return queryScores(ctx, q, query, schema.EntScore)
}

// ScoresInSetlist returns a setlist's scores in playback order. The same
// score appears once per occurrence.
func ScoresInSetlist(ctx context.Context, q schema.Querier, setlistID int64) ([]*Score, error) {
	rel := relation.SetlistItems
	return queryScores(ctx, q, fmt.Sprintf(
		"%s JOIN %s c ON c.%s = i.Z_PK WHERE c.%s = ? ORDER BY c.ZINDEX, c.Z_PK",
		scoreSelect, rel.Table, rel.MemberCol, rel.OwnerCol), setlistID)
}

// ScoresInLibrary returns a library's scores in sort-title order.
func ScoresInLibrary(ctx context.Context, q schema.Querier, libraryID int64) ([]*Score, error) {
	rel := relation.LibraryItems
	return queryScores(ctx, q, fmt.Sprintf(
		"%s JOIN %s j ON j.%s = i.Z_PK WHERE j.%s = ? ORDER BY i.ZSORTTITLE NULLS LAST, i.Z_PK",
		scoreSelect, rel.Table, rel.MemberCol, rel.OwnerCol), libraryID)
}

func queryScores(ctx context.Context, q schema.Querier, query string, args ...any) ([]*Score, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	scores := []*Score{}
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// ScoreUpdate holds the fields an edit may change. Nil means leave alone;
// a pointer to the zero value clears the field.
type ScoreUpdate struct {
	Title      *string
	Key        *string
	Rating     *int
	Difficulty *int
	Composer   *string
	Genre      *string
	Keywords   *[]string
}

// UpdateItem applies an edit to a score or bookmark. Shared by both command
// surfaces since the host stores them in the same table.
func UpdateItem(ctx context.Context, tx *store.Tx, itemID int64, upd ScoreUpdate) error {
	if _, err := ScoreByID(ctx, tx, itemID); err != nil {
		return err
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return liberr.New(liberr.CodeValidation, "title must not be empty")
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE ZITEM SET ZTITLE = ?, ZSORTTITLE = ? WHERE Z_PK = ?",
			title, SortTitle(title), itemID)
		if err != nil {
			return fmt.Errorf("set title on item %d: %w", itemID, err)
		}
	}

	if upd.Key != nil {
		var code any
		if *upd.Key != "" {
			key, err := schema.ParseKey(*upd.Key)
			if err != nil {
				return err
			}
			code = key.Code
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE ZITEM SET ZKEY = ? WHERE Z_PK = ?", code, itemID); err != nil {
			return fmt.Errorf("set key on item %d: %w", itemID, err)
		}
	}

	if upd.Rating != nil {
		if err := setValueRef(ctx, tx, itemID, "ZRATING", schema.EntRating, "ZVALUE5",
			*upd.Rating, schema.ValidRating, "rating"); err != nil {
			return err
		}
	}
	if upd.Difficulty != nil {
		if err := setValueRef(ctx, tx, itemID, "ZDIFFICULTY", schema.EntDifficulty, "ZVALUE1",
			*upd.Difficulty, schema.ValidDifficulty, "difficulty"); err != nil {
			return err
		}
	}

	if upd.Composer != nil {
		if err := replaceMeta(ctx, tx, itemID, Composers, splitOne(*upd.Composer)); err != nil {
			return err
		}
	}
	if upd.Genre != nil {
		if err := replaceMeta(ctx, tx, itemID, Genres, splitOne(*upd.Genre)); err != nil {
			return err
		}
	}
	if upd.Keywords != nil {
		if err := replaceMeta(ctx, tx, itemID, Keywords, *upd.Keywords); err != nil {
			return err
		}
	}

	return markModified(ctx, tx, itemID)
}

func splitOne(name string) []string {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	return []string{name}
}

// setValueRef points an item's rating or difficulty column at the ZMETA row
// holding the value, creating that row on first use. A zero value clears
// the reference.
func setValueRef(ctx context.Context, tx *store.Tx, itemID int64, col string, ent int,
	valueCol string, value int, valid func(int) bool, what string) error {

	var ref any
	if value != 0 {
		if !valid(value) {
			return liberr.New(liberr.CodeRange, "%s %d out of range", what, value)
		}
		pk, err := getOrCreateValueMeta(ctx, tx, ent, valueCol, value)
		if err != nil {
			return err
		}
		ref = pk
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE ZITEM SET %s = ? WHERE Z_PK = ?", col), ref, itemID)
	if err != nil {
		return fmt.Errorf("set %s on item %d: %w", what, itemID, err)
	}
	return nil
}

// replaceMeta swaps an item's full set of links of one meta kind for the
// given names, creating meta rows as needed.
func replaceMeta(ctx context.Context, tx *store.Tx, itemID int64, kind MetaKind, names []string) error {
	rel := kind.Rel
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE %s = ?", rel.Table, rel.OwnerCol), itemID)
	if err != nil {
		return fmt.Errorf("clear %s links on item %d: %w", kind.Name, itemID, err)
	}
	for _, name := range names {
		metaID, err := GetOrCreateMeta(ctx, tx, kind, name)
		if err != nil {
			return err
		}
		if _, err := relation.AddMember(ctx, tx, rel, itemID, metaID); err != nil {
			return err
		}
	}
	tx.TouchRelation(rel.Name, itemID)
	return nil
}
