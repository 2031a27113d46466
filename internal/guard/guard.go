// Package guard holds the pre-commit consistency checks. The host
// application assumes an internally consistent object graph and does not
// always repair one that is not, so every mutating transaction is re-checked
// here before it is allowed to commit: touched membership rows must resolve
// referentially, touched ordered sets must be gap-free, and touched names
// must stay unique within their kind. Any violation fails the transaction
// with a CONSISTENCY error and the store rolls back to its prior state.
package guard

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/relation"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// Check is the transaction guard. Wire it with store.SetGuard.
func Check(ctx context.Context, tx *store.Tx) error {
	for kindName, owners := range tx.TouchedRelations() {
		kind, ok := relation.KindByName(kindName)
		if !ok {
			return liberr.New(liberr.CodeConsistency, "unknown relation kind %q touched", kindName)
		}
		for _, owner := range owners {
			if err := checkOwner(ctx, tx, kind, owner); err != nil {
				return err
			}
		}
	}

	for ent, pks := range tx.TouchedNames() {
		for _, pk := range pks {
			if err := checkNameUnique(ctx, tx, ent, pk); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkOwner verifies one owner's membership set: the owner resolves to the
// expected entity kind (unless the set is empty and the owner is gone, which
// is how a cascaded delete legitimately ends), every member foreign key
// resolves, and ordered positions are exactly 0..count-1.
func checkOwner(ctx context.Context, q schema.Querier, kind relation.Kind, owner int64) error {
	members, err := relation.MembersOf(ctx, q, kind, owner)
	if err != nil {
		return err
	}

	ownerExists, err := entityResolves(ctx, q, kind.OwnerEnt, owner)
	if err != nil {
		return err
	}
	if !ownerExists {
		if len(members) == 0 {
			return nil
		}
		return liberr.New(liberr.CodeConsistency,
			"%d membership rows in %s reference missing %s %d",
			len(members), kind.Table, schema.KindName(kind.OwnerEnt), owner)
	}

	for _, m := range members {
		memberExists, err := entityResolves(ctx, q, kind.MemberEnt, m.MemberID)
		if err != nil {
			return err
		}
		if !memberExists {
			return liberr.New(liberr.CodeConsistency,
				"%s %d references missing %s %d",
				kind.Table, owner, schema.KindName(kind.MemberEnt), m.MemberID)
		}
	}

	if kind.Ordered {
		for i, m := range members {
			if m.Position != i {
				return liberr.New(liberr.CodeConsistency,
					"%s %d positions are not contiguous: want %d at slot %d, have %d",
					kind.Table, owner, i, i, m.Position)
			}
		}
	}
	return nil
}

// entityResolves reports whether pk exists in want's table with an
// entity-type code that is want or one of its subtypes.
func entityResolves(ctx context.Context, q schema.Querier, want int, pk int64) (bool, error) {
	et, ok := schema.Lookup(want)
	if !ok {
		return false, liberr.New(liberr.CodeConsistency, "unknown entity-type code %d", want)
	}
	var ent int
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT Z_ENT FROM %s WHERE Z_PK = ?", et.Table), pk).Scan(&ent)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve %s %d: %w", et.Name, pk, err)
	}
	return schema.IsKindOf(ent, want), nil
}

// nameColumn returns the table and column holding an entity kind's display
// name. Genres keep theirs in ZVALUE2, a quirk of the host's meta layout.
func nameColumn(ent int) (table, col string, ok bool) {
	switch ent {
	case schema.EntSetlist:
		return "ZSETLIST", "ZTITLE", true
	case schema.EntLibrary:
		return "ZLIBRARY", "ZTITLE", true
	case schema.EntGenre:
		return "ZMETA", "ZVALUE2", true
	case schema.EntComposer, schema.EntKeyword, schema.EntLabel:
		return "ZMETA", "ZVALUE", true
	}
	return "", "", false
}

// checkNameUnique verifies the touched entity's name does not collide
// case-sensitively with another entity of the same kind. Rows the
// transaction deleted resolve to nothing and pass.
func checkNameUnique(ctx context.Context, q schema.Querier, ent int, pk int64) error {
	table, col, ok := nameColumn(ent)
	if !ok {
		return liberr.New(liberr.CodeConsistency, "entity kind %s has no name to check", schema.KindName(ent))
	}

	var name sql.NullString
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE Z_PK = ?", col, table), pk).Scan(&name)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load name of %s %d: %w", schema.KindName(ent), pk, err)
	}
	if !name.Valid || name.String == "" {
		return liberr.New(liberr.CodeConsistency,
			"%s %d has an empty name", schema.KindName(ent), pk)
	}

	var clashes int
	err = q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE Z_ENT = ? AND %s = ? AND Z_PK != ?", table, col),
		ent, name.String, pk).Scan(&clashes)
	if err != nil {
		return fmt.Errorf("check name uniqueness of %s %d: %w", schema.KindName(ent), pk, err)
	}
	if clashes > 0 {
		return liberr.New(liberr.CodeConsistency,
			"%s name %q is already in use", schema.KindName(ent), name.String)
	}
	return nil
}
