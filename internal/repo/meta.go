package repo

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/relation"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// MetaKind describes one tag-like entity kind stored in ZMETA.
type MetaKind struct {
	Name     string
	Ent      int
	ValueCol string // genre names live in ZVALUE2, everything else in ZVALUE
	Rel      relation.Kind
}

var (
	Composers = MetaKind{Name: "composer", Ent: schema.EntComposer, ValueCol: "ZVALUE", Rel: relation.ItemComposers}
	Genres    = MetaKind{Name: "genre", Ent: schema.EntGenre, ValueCol: "ZVALUE2", Rel: relation.ItemGenres}
	Keywords  = MetaKind{Name: "tag", Ent: schema.EntKeyword, ValueCol: "ZVALUE", Rel: relation.ItemKeywords}
	Labels    = MetaKind{Name: "label", Ent: schema.EntLabel, ValueCol: "ZVALUE", Rel: relation.ItemLabels}
)

// Meta is one tag-like entity with its usage count.
type Meta struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScoreCount int    `json:"score_count"`
}

// metaCollator orders meta names Unicode-aware and case-insensitively;
// SQLite's NOCASE only folds ASCII.
var metaCollator = collate.New(language.Und, collate.IgnoreCase)

// ListMeta returns all entities of kind in collated name order, with usage
// counts. unusedOnly keeps only entities no item references.
func ListMeta(ctx context.Context, q schema.Querier, kind MetaKind, unusedOnly bool) ([]Meta, error) {
	rel := kind.Rel
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT m.Z_PK, m.%s,
			(SELECT COUNT(*) FROM %s j WHERE j.%s = m.Z_PK)
		FROM ZMETA m WHERE m.Z_ENT = ?`,
		kind.ValueCol, rel.Table, rel.MemberCol), kind.Ent)
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind.Name, err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		var name sql.NullString
		if err := rows.Scan(&m.ID, &name, &m.ScoreCount); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind.Name, err)
		}
		m.Name = name.String
		if unusedOnly && m.ScoreCount > 0 {
			continue
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %ss: %w", kind.Name, err)
	}

	// Collated sort with the primary key as a stable tie-break.
	slices.SortStableFunc(metas, func(a, b Meta) int {
		if c := metaCollator.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return metas, nil
}

// MetaByName finds an entity of kind with the exact name.
func MetaByName(ctx context.Context, q schema.Querier, kind MetaKind, name string) (*Meta, error) {
	rel := kind.Rel
	var m Meta
	var stored sql.NullString
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT m.Z_PK, m.%s,
			(SELECT COUNT(*) FROM %s j WHERE j.%s = m.Z_PK)
		FROM ZMETA m WHERE m.Z_ENT = ? AND m.%s = ?`,
		kind.ValueCol, rel.Table, rel.MemberCol, kind.ValueCol), kind.Ent, name).
		Scan(&m.ID, &stored, &m.ScoreCount)
	if err == sql.ErrNoRows {
		return nil, liberr.New(liberr.CodeNotFound, "%s not found: %s", kind.Name, name)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %q: %w", kind.Name, name, err)
	}
	m.Name = stored.String
	return &m, nil
}

// GetOrCreateMeta resolves an entity of kind by exact name, creating it with
// a freshly allocated store-wide key when absent.
func GetOrCreateMeta(ctx context.Context, tx *store.Tx, kind MetaKind, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, liberr.New(liberr.CodeValidation, "%s name must not be empty", kind.Name)
	}
	if m, err := MetaByName(ctx, tx, kind, name); err == nil {
		return m.ID, nil
	} else if !liberr.IsNotFound(err) {
		return 0, err
	}

	pk, err := schema.NextPrimaryKey(ctx, tx)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO ZMETA (Z_PK, Z_ENT, Z_OPT, %s) VALUES (?, ?, 1, ?)", kind.ValueCol),
		pk, kind.Ent, name)
	if err != nil {
		return 0, fmt.Errorf("create %s %q: %w", kind.Name, name, err)
	}
	// The host allocates ZMETA keys under the META supertype's registry row.
	if err := schema.BumpPrimaryKey(ctx, tx, schema.EntMeta, pk); err != nil {
		return 0, err
	}
	tx.TouchName(kind.Ent, pk)
	return pk, nil
}

// RenameMeta renames an entity of kind. The new name must not collide
// case-sensitively with another entity of the same kind.
func RenameMeta(ctx context.Context, tx *store.Tx, kind MetaKind, oldName, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return liberr.New(liberr.CodeValidation, "%s name must not be empty", kind.Name)
	}
	m, err := MetaByName(ctx, tx, kind, oldName)
	if err != nil {
		return err
	}
	if _, err := MetaByName(ctx, tx, kind, newName); err == nil {
		return liberr.New(liberr.CodeDuplicate, "%s %q already exists", kind.Name, newName)
	} else if !liberr.IsNotFound(err) {
		return err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE ZMETA SET %s = ?, Z_OPT = Z_OPT + 1 WHERE Z_PK = ?", kind.ValueCol),
		newName, m.ID)
	if err != nil {
		return fmt.Errorf("rename %s %q: %w", kind.Name, oldName, err)
	}
	tx.TouchName(kind.Ent, m.ID)
	return nil
}

// MergeMeta re-points every item reference from the source entity to the
// target, then deletes the source. De-duplication for composer, genre and
// tag cleanup.
func MergeMeta(ctx context.Context, tx *store.Tx, kind MetaKind, sourceName, targetName string) error {
	source, err := MetaByName(ctx, tx, kind, sourceName)
	if err != nil {
		return err
	}
	target, err := MetaByName(ctx, tx, kind, targetName)
	if err != nil {
		return err
	}

	if err := relation.RepointMember(ctx, tx, kind.Rel, source.ID, target.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM ZMETA WHERE Z_PK = ?", source.ID); err != nil {
		return fmt.Errorf("delete merged %s %q: %w", kind.Name, sourceName, err)
	}
	return nil
}

// DeleteMeta removes an entity of kind. Entities still referenced by items
// are kept unless cascade is set, in which case the references go with them.
func DeleteMeta(ctx context.Context, tx *store.Tx, kind MetaKind, name string, cascade bool) error {
	m, err := MetaByName(ctx, tx, kind, name)
	if err != nil {
		return err
	}
	if m.ScoreCount > 0 && !cascade {
		return liberr.New(liberr.CodeReferential,
			"%s %q is still used by %d score(s)", kind.Name, name, m.ScoreCount)
	}
	if err := relation.RemoveAll(ctx, tx, m.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM ZMETA WHERE Z_PK = ?", m.ID); err != nil {
		return fmt.Errorf("delete %s %q: %w", kind.Name, name, err)
	}
	return nil
}

// getOrCreateValueMeta resolves the ZMETA row holding a numeric rating or
// difficulty value, creating it when the value has never been used.
func getOrCreateValueMeta(ctx context.Context, tx *store.Tx, ent int, valueCol string, value int) (int64, error) {
	var pk int64
	err := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT Z_PK FROM ZMETA WHERE Z_ENT = ? AND %s = ?", valueCol), ent, value).Scan(&pk)
	if err == nil {
		return pk, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("find %s value %d: %w", schema.KindName(ent), value, err)
	}

	pk, err = schema.NextPrimaryKey(ctx, tx)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO ZMETA (Z_PK, Z_ENT, Z_OPT, %s) VALUES (?, ?, 1, ?)", valueCol),
		pk, ent, value)
	if err != nil {
		return 0, fmt.Errorf("create %s value %d: %w", schema.KindName(ent), value, err)
	}
	if err := schema.BumpPrimaryKey(ctx, tx, schema.EntMeta, pk); err != nil {
		return 0, err
	}
	return pk, nil
}
