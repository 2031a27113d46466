package relation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// Member is one row of an owner's membership set.
type Member struct {
	RowID    int64 // join row Z_PK; zero for kinds whose table has no own key
	MemberID int64
	Position int // meaningful for ordered kinds only
}

// MembersOf returns an owner's membership set, in position order for ordered
// kinds and member-key order otherwise.
func MembersOf(ctx context.Context, q schema.Querier, kind Kind, owner int64) ([]Member, error) {
	var rows *sql.Rows
	var err error
	if kind.Ordered {
		rows, err = q.QueryContext(ctx, fmt.Sprintf(
			"SELECT Z_PK, %s, ZINDEX FROM %s WHERE %s = ? ORDER BY ZINDEX, Z_PK",
			kind.MemberCol, kind.Table, kind.OwnerCol), owner)
	} else {
		rows, err = q.QueryContext(ctx, fmt.Sprintf(
			"SELECT 0, %s, 0 FROM %s WHERE %s = ? ORDER BY %s",
			kind.MemberCol, kind.Table, kind.OwnerCol, kind.MemberCol), owner)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s members: %w", kind.Name, err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.RowID, &m.MemberID, &m.Position); err != nil {
			return nil, fmt.Errorf("scan %s member: %w", kind.Name, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s members: %w", kind.Name, err)
	}
	return members, nil
}

// AddMember adds member to owner's set and returns the assigned position.
// Ordered kinds append at the end; unordered kinds return zero. Fails with a
// DUPLICATE error when the pair already exists and the kind disallows it.
func AddMember(ctx context.Context, tx *store.Tx, kind Kind, owner, member int64) (int, error) {
	if !kind.AllowDuplicates {
		exists, err := pairExists(ctx, tx, kind, owner, member)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, liberr.New(liberr.CodeDuplicate,
				"%d is already a member of %s %d", member, schema.KindName(kind.OwnerEnt), owner)
		}
	}

	if !kind.Ordered {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			"INSERT INTO %s (%s, %s) VALUES (?, ?)",
			kind.Table, kind.OwnerCol, kind.MemberCol), owner, member)
		if err != nil {
			return 0, fmt.Errorf("add %s member: %w", kind.Name, err)
		}
		tx.TouchRelation(kind.Name, owner)
		return 0, nil
	}

	// Ordered membership rows are entities of their own: they draw a key
	// from the shared space and carry Z_ENT, Z_OPT, shuffle and UUID state.
	var pos int
	err := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COALESCE(MAX(ZINDEX) + 1, 0) FROM %s WHERE %s = ?",
		kind.Table, kind.OwnerCol), owner).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("next position in %s %d: %w", kind.Name, owner, err)
	}

	pk, err := schema.NextPrimaryKey(ctx, tx)
	if err != nil {
		return 0, err
	}

	memberEnt, err := entityTypeOf(ctx, tx, member)
	if err != nil {
		return 0, err
	}

	entryUUID, err := reusableUUID(ctx, tx, kind, member)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (Z_PK, Z_ENT, Z_OPT, %s, %s, Z4_ITEM, ZINDEX, ZSHUFFLE, ZUUID) VALUES (?, ?, 1, ?, ?, ?, ?, 0, ?)",
		kind.Table, kind.OwnerCol, kind.MemberCol),
		pk, schema.EntSetlistEntry, owner, member, memberEnt, pos, entryUUID)
	if err != nil {
		return 0, fmt.Errorf("add %s member: %w", kind.Name, err)
	}
	if err := schema.BumpPrimaryKey(ctx, tx, schema.EntSetlistEntry, pk); err != nil {
		return 0, err
	}
	tx.TouchRelation(kind.Name, owner)
	return pos, nil
}

// RemoveMember removes the first occurrence of member from owner's set. For
// ordered kinds every following position shifts down by one so the set stays
// gap-free; for unordered kinds all matching pairs go. Fails with NOT_FOUND
// when the pair does not exist.
func RemoveMember(ctx context.Context, tx *store.Tx, kind Kind, owner, member int64) error {
	if !kind.Ordered {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(
			"DELETE FROM %s WHERE %s = ? AND %s = ?",
			kind.Table, kind.OwnerCol, kind.MemberCol), owner, member)
		if err != nil {
			return fmt.Errorf("remove %s member: %w", kind.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("remove %s member: %w", kind.Name, err)
		}
		if n == 0 {
			return liberr.New(liberr.CodeNotFound,
				"%d is not a member of %s %d", member, schema.KindName(kind.OwnerEnt), owner)
		}
		tx.TouchRelation(kind.Name, owner)
		return nil
	}

	var rowID int64
	var pos int
	err := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT Z_PK, ZINDEX FROM %s WHERE %s = ? AND %s = ? ORDER BY ZINDEX LIMIT 1",
		kind.Table, kind.OwnerCol, kind.MemberCol), owner, member).Scan(&rowID, &pos)
	if err == sql.ErrNoRows {
		return liberr.New(liberr.CodeNotFound,
			"%d is not a member of %s %d", member, schema.KindName(kind.OwnerEnt), owner)
	}
	if err != nil {
		return fmt.Errorf("find %s member: %w", kind.Name, err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE Z_PK = ?", kind.Table), rowID); err != nil {
		return fmt.Errorf("remove %s member: %w", kind.Name, err)
	}
	// Re-compact: close the hole the removed row left behind.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET ZINDEX = ZINDEX - 1 WHERE %s = ? AND ZINDEX > ?",
		kind.Table, kind.OwnerCol), owner, pos); err != nil {
		return fmt.Errorf("compact %s positions: %w", kind.Name, err)
	}
	tx.TouchRelation(kind.Name, owner)
	return nil
}

// Reorder moves member to newPos within owner's ordered set. Positions in
// the half-open interval between the old and new slot shift by one; nothing
// else changes. Moving a member onto its current position is a no-op. Fails
// with RANGE when newPos is outside [0, count-1].
func Reorder(ctx context.Context, tx *store.Tx, kind Kind, owner, member int64, newPos int) error {
	if !kind.Ordered {
		return liberr.New(liberr.CodeValidation, "relation %s is not ordered", kind.Name)
	}

	var rowID int64
	var oldPos int
	err := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT Z_PK, ZINDEX FROM %s WHERE %s = ? AND %s = ? ORDER BY ZINDEX LIMIT 1",
		kind.Table, kind.OwnerCol, kind.MemberCol), owner, member).Scan(&rowID, &oldPos)
	if err == sql.ErrNoRows {
		return liberr.New(liberr.CodeNotFound,
			"%d is not a member of %s %d", member, schema.KindName(kind.OwnerEnt), owner)
	}
	if err != nil {
		return fmt.Errorf("find %s member: %w", kind.Name, err)
	}

	var count int
	err = tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE %s = ?", kind.Table, kind.OwnerCol), owner).Scan(&count)
	if err != nil {
		return fmt.Errorf("count %s members: %w", kind.Name, err)
	}
	if newPos < 0 || newPos >= count {
		return liberr.New(liberr.CodeRange,
			"position %d out of range [0, %d]", newPos, count-1)
	}
	if newPos == oldPos {
		return nil
	}

	var shift string
	var lo, hi int
	if oldPos < newPos {
		shift, lo, hi = "- 1", oldPos+1, newPos
	} else {
		shift, lo, hi = "+ 1", newPos, oldPos-1
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET ZINDEX = ZINDEX %s WHERE %s = ? AND ZINDEX BETWEEN ? AND ?",
		kind.Table, shift, kind.OwnerCol), owner, lo, hi); err != nil {
		return fmt.Errorf("shift %s positions: %w", kind.Name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET ZINDEX = ? WHERE Z_PK = ?", kind.Table), newPos, rowID); err != nil {
		return fmt.Errorf("place %s member: %w", kind.Name, err)
	}
	tx.TouchRelation(kind.Name, owner)
	return nil
}

// RemoveAll drops every membership row owning or owned by key across all
// kinds. Used by cascading deletes.
func RemoveAll(ctx context.Context, tx *store.Tx, key int64) error {
	for _, kind := range Kinds() {
		owners, err := ownersReferencing(ctx, tx, kind, key)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(
			"DELETE FROM %s WHERE %s = ? OR %s = ?",
			kind.Table, kind.OwnerCol, kind.MemberCol), key, key)
		if err != nil {
			return fmt.Errorf("cascade delete from %s: %w", kind.Name, err)
		}
		for _, owner := range owners {
			if owner == key {
				continue
			}
			if kind.Ordered {
				if err := Compact(ctx, tx, kind, owner); err != nil {
					return err
				}
			}
			tx.TouchRelation(kind.Name, owner)
		}
	}
	return nil
}

// Compact rewrites an owner's positions to 0..count-1, preserving order.
// Repairs the gaps a bulk delete leaves in an ordered set.
func Compact(ctx context.Context, tx *store.Tx, kind Kind, owner int64) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT Z_PK FROM %s WHERE %s = ? ORDER BY ZINDEX, Z_PK",
		kind.Table, kind.OwnerCol), owner)
	if err != nil {
		return fmt.Errorf("compact %s %d: %w", kind.Name, owner, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("compact %s %d: %w", kind.Name, owner, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("compact %s %d: %w", kind.Name, owner, err)
	}
	rows.Close()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"UPDATE %s SET ZINDEX = ? WHERE Z_PK = ?", kind.Table), i, id); err != nil {
			return fmt.Errorf("compact %s %d: %w", kind.Name, owner, err)
		}
	}
	return nil
}

func pairExists(ctx context.Context, q schema.Querier, kind Kind, owner, member int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ? AND %s = ?)",
		kind.Table, kind.OwnerCol, kind.MemberCol), owner, member).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s pair: %w", kind.Name, err)
	}
	return exists, nil
}

func ownersReferencing(ctx context.Context, q schema.Querier, kind Kind, key int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s = ? OR %s = ?",
		kind.OwnerCol, kind.Table, kind.OwnerCol, kind.MemberCol), key, key)
	if err != nil {
		return nil, fmt.Errorf("owners referencing %d in %s: %w", key, kind.Name, err)
	}
	defer rows.Close()

	var owners []int64
	for rows.Next() {
		var o int64
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("owners referencing %d in %s: %w", key, kind.Name, err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func entityTypeOf(ctx context.Context, q schema.Querier, pk int64) (int, error) {
	var ent int
	err := q.QueryRowContext(ctx, "SELECT Z_ENT FROM ZITEM WHERE Z_PK = ?", pk).Scan(&ent)
	if err == sql.ErrNoRows {
		return 0, liberr.New(liberr.CodeNotFound, "item %d does not exist", pk)
	}
	if err != nil {
		return 0, fmt.Errorf("entity type of %d: %w", pk, err)
	}
	return ent, nil
}

// reusableUUID returns the UUID an existing entry for the same member
// carries, or a fresh uppercase UUIDv4. The host reuses entry UUIDs per item
// across setlists, so new rows follow suit.
func reusableUUID(ctx context.Context, q schema.Querier, kind Kind, member int64) (string, error) {
	var existing sql.NullString
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT ZUUID FROM %s WHERE %s = ? AND ZUUID IS NOT NULL LIMIT 1",
		kind.Table, kind.MemberCol), member).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("look up entry uuid: %w", err)
	}
	if existing.Valid && existing.String != "" {
		return existing.String, nil
	}
	return strings.ToUpper(uuid.NewString()), nil
}
