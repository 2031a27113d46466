package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/relation"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// CollectionKind describes one collection entity kind (setlist or library)
// and the membership relation it owns.
type CollectionKind struct {
	Name    string
	Ent     int
	Table   string
	HasUUID bool // ZLIBRARY has no ZUUID column
	Rel     relation.Kind
}

var (
	Setlists = CollectionKind{
		Name: "setlist", Ent: schema.EntSetlist, Table: "ZSETLIST",
		HasUUID: true, Rel: relation.SetlistItems,
	}
	Libraries = CollectionKind{
		Name: "library", Ent: schema.EntLibrary, Table: "ZLIBRARY",
		Rel: relation.LibraryItems,
	}
)

// Collection is a setlist or library row with its member count.
type Collection struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	UUID       string `json:"uuid,omitempty"`
	ScoreCount int    `json:"score_count"`
}

func (k CollectionKind) uuidCol() string {
	if k.HasUUID {
		return "ZUUID"
	}
	return "NULL"
}

// ListCollections returns every collection of kind in title order.
func ListCollections(ctx context.Context, q schema.Querier, kind CollectionKind) ([]Collection, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT t.Z_PK, t.ZTITLE, %s,
			(SELECT COUNT(*) FROM %s j WHERE j.%s = t.Z_PK)
		FROM %s t ORDER BY t.ZTITLE, t.Z_PK`,
		kind.uuidCol(), kind.Rel.Table, kind.Rel.OwnerCol, kind.Table))
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind.Name, err)
	}
	defer rows.Close()

	cols := []Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind.Name, err)
		}
		cols = append(cols, *c)
	}
	return cols, rows.Err()
}

// CollectionByID loads one collection by primary key.
func CollectionByID(ctx context.Context, q schema.Querier, kind CollectionKind, id int64) (*Collection, error) {
	c, err := scanCollection(q.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT t.Z_PK, t.ZTITLE, %s,
			(SELECT COUNT(*) FROM %s j WHERE j.%s = t.Z_PK)
		FROM %s t WHERE t.Z_PK = ?`,
		kind.uuidCol(), kind.Rel.Table, kind.Rel.OwnerCol, kind.Table), id))
	if err == sql.ErrNoRows {
		return nil, liberr.New(liberr.CodeNotFound, "no %s with id %d", kind.Name, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", kind.Name, id, err)
	}
	return c, nil
}

// ResolveCollection finds one collection by exact title, then by
// case-insensitive title. Multiple matches are AMBIGUOUS.
func ResolveCollection(ctx context.Context, q schema.Querier, kind CollectionKind, ref string) (*Collection, error) {
	for _, clause := range []string{"t.ZTITLE = ?", "t.ZTITLE = ? COLLATE NOCASE"} {
		rows, err := q.QueryContext(ctx, fmt.Sprintf(
			`SELECT t.Z_PK, t.ZTITLE, %s,
				(SELECT COUNT(*) FROM %s j WHERE j.%s = t.Z_PK)
			FROM %s t WHERE %s ORDER BY t.Z_PK`,
			kind.uuidCol(), kind.Rel.Table, kind.Rel.OwnerCol, kind.Table, clause), ref)
		if err != nil {
			return nil, fmt.Errorf("resolve %s %q: %w", kind.Name, ref, err)
		}
		matches, err := collectCollections(rows)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 0:
			continue
		case 1:
			return &matches[0], nil
		default:
			return nil, liberr.New(liberr.CodeAmbiguous,
				"%q matches %d %ss", ref, len(matches), kind.Name)
		}
	}
	return nil, liberr.New(liberr.CodeNotFound, "no %s named %q", kind.Name, ref)
}

func collectCollections(rows *sql.Rows) ([]Collection, error) {
	defer rows.Close()
	var out []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCollection(row rowScanner) (*Collection, error) {
	var c Collection
	var title, uid sql.NullString
	if err := row.Scan(&c.ID, &title, &uid, &c.ScoreCount); err != nil {
		return nil, err
	}
	c.Title = title.String
	c.UUID = uid.String
	return &c, nil
}

// CreateCollection inserts a collection with a fresh store-wide key. Titles
// are unique per kind, enforced here and re-checked by the commit guard.
func CreateCollection(ctx context.Context, tx *store.Tx, kind CollectionKind, title string) (*Collection, error) {
	if strings.TrimSpace(title) == "" {
		return nil, liberr.New(liberr.CodeValidation, "%s title must not be empty", kind.Name)
	}
	if _, err := ResolveCollection(ctx, tx, kind, title); err == nil {
		return nil, liberr.New(liberr.CodeDuplicate, "%s %q already exists", kind.Name, title)
	} else if !liberr.IsNotFound(err) {
		return nil, err
	}

	pk, err := schema.NextPrimaryKey(ctx, tx)
	if err != nil {
		return nil, err
	}
	if kind.HasUUID {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (Z_PK, Z_ENT, Z_OPT, ZTITLE, ZUUID, ZINDEX, ZMENUINDEX, ZSORT)
			VALUES (?, ?, 1, ?, ?, 0, 0, 0)`, kind.Table),
			pk, kind.Ent, title, strings.ToUpper(uuid.NewString()))
	} else {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(
			"INSERT INTO %s (Z_PK, Z_ENT, Z_OPT, ZTITLE) VALUES (?, ?, 1, ?)", kind.Table),
			pk, kind.Ent, title)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s %q: %w", kind.Name, title, err)
	}
	if err := schema.BumpPrimaryKey(ctx, tx, kind.Ent, pk); err != nil {
		return nil, err
	}
	tx.TouchName(kind.Ent, pk)
	return CollectionByID(ctx, tx, kind, pk)
}

// RenameCollection changes a collection's title. The new title must not
// collide case-sensitively with another collection of the same kind.
func RenameCollection(ctx context.Context, tx *store.Tx, kind CollectionKind, id int64, title string) error {
	if strings.TrimSpace(title) == "" {
		return liberr.New(liberr.CodeValidation, "%s title must not be empty", kind.Name)
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET ZTITLE = ?, Z_OPT = Z_OPT + 1 WHERE Z_PK = ?", kind.Table), title, id)
	if err != nil {
		return fmt.Errorf("rename %s %d: %w", kind.Name, id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rename %s %d: %w", kind.Name, id, err)
	} else if n == 0 {
		return liberr.New(liberr.CodeNotFound, "no %s with id %d", kind.Name, id)
	}
	tx.TouchName(kind.Ent, id)
	return nil
}

// DeleteCollection removes a collection. Without cascade, a collection that
// still has members is REFERENTIAL; with cascade its membership rows go too.
func DeleteCollection(ctx context.Context, tx *store.Tx, kind CollectionKind, id int64, cascade bool) error {
	c, err := CollectionByID(ctx, tx, kind, id)
	if err != nil {
		return err
	}
	if c.ScoreCount > 0 {
		if !cascade {
			return liberr.New(liberr.CodeReferential,
				"%s %q still has %d members", kind.Name, c.Title, c.ScoreCount)
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(
			"DELETE FROM %s WHERE %s = ?", kind.Rel.Table, kind.Rel.OwnerCol), id)
		if err != nil {
			return fmt.Errorf("clear %s %d members: %w", kind.Name, id, err)
		}
		tx.TouchRelation(kind.Rel.Name, id)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE Z_PK = ?", kind.Table), id); err != nil {
		return fmt.Errorf("delete %s %d: %w", kind.Name, id, err)
	}
	return nil
}
