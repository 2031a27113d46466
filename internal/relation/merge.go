package relation

import (
	"context"
	"fmt"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// RepointMember rewrites every reference to source on kind's member side to
// point at target instead. For kinds that disallow duplicate pairs, rows
// that would collide with an existing (owner, target) pair are dropped
// rather than duplicated. Fails with SELF_MERGE when the keys are equal.
//
// Deleting the now-unreferenced source entity is the caller's job; this
// function only moves the membership graph.
func RepointMember(ctx context.Context, tx *store.Tx, kind Kind, source, target int64) error {
	if source == target {
		return liberr.New(liberr.CodeSelfMerge,
			"cannot merge %s %d into itself", schema.KindName(kind.MemberEnt), source)
	}

	owners, err := ownersReferencing(ctx, tx, kind, source)
	if err != nil {
		return err
	}

	if !kind.AllowDuplicates {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			"DELETE FROM %s WHERE %s = ? AND %s IN (SELECT %s FROM %s WHERE %s = ?)",
			kind.Table, kind.MemberCol, kind.OwnerCol,
			kind.OwnerCol, kind.Table, kind.MemberCol),
			source, target)
		if err != nil {
			return fmt.Errorf("drop colliding %s pairs: %w", kind.Name, err)
		}
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET %s = ? WHERE %s = ?",
		kind.Table, kind.MemberCol, kind.MemberCol), target, source)
	if err != nil {
		return fmt.Errorf("repoint %s members: %w", kind.Name, err)
	}

	for _, owner := range owners {
		tx.TouchRelation(kind.Name, owner)
	}
	return nil
}
