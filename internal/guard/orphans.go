package guard

import (
	"context"
	"fmt"

	"github.com/danielhopkins/forscore-cli/internal/relation"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// Orphan is a membership row whose owner or member no longer resolves. The
// host does not always cascade cleanly, so these accumulate over time.
type Orphan struct {
	Kind     string `json:"kind"`
	Table    string `json:"table"`
	OwnerID  int64  `json:"owner_id"`
	MemberID int64  `json:"member_id"`
	Missing  string `json:"missing"` // "owner" or "member"
}

// FindOrphans sweeps every join table for rows referencing entities that do
// not exist (or exist with the wrong entity-type code). Read-only; removal
// goes through the fixes command inside a transaction.
func FindOrphans(ctx context.Context, q schema.Querier) ([]Orphan, error) {
	var orphans []Orphan
	for _, kind := range relation.Kinds() {
		found, err := orphansOfKind(ctx, q, kind)
		if err != nil {
			return nil, err
		}
		orphans = append(orphans, found...)
	}
	return orphans, nil
}

func orphansOfKind(ctx context.Context, q schema.Querier, kind relation.Kind) ([]Orphan, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s, %s FROM %s ORDER BY %s, %s",
		kind.OwnerCol, kind.MemberCol, kind.Table, kind.OwnerCol, kind.MemberCol))
	if err != nil {
		return nil, fmt.Errorf("scan %s for orphans: %w", kind.Name, err)
	}
	defer rows.Close()

	type pair struct{ owner, member int64 }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.owner, &p.member); err != nil {
			return nil, fmt.Errorf("scan %s for orphans: %w", kind.Name, err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s for orphans: %w", kind.Name, err)
	}

	var orphans []Orphan
	for _, p := range pairs {
		ownerOK, err := entityResolves(ctx, q, kind.OwnerEnt, p.owner)
		if err != nil {
			return nil, err
		}
		if !ownerOK {
			orphans = append(orphans, Orphan{
				Kind: kind.Name, Table: kind.Table,
				OwnerID: p.owner, MemberID: p.member, Missing: "owner",
			})
			continue
		}
		memberOK, err := entityResolves(ctx, q, kind.MemberEnt, p.member)
		if err != nil {
			return nil, err
		}
		if !memberOK {
			orphans = append(orphans, Orphan{
				Kind: kind.Name, Table: kind.Table,
				OwnerID: p.owner, MemberID: p.member, Missing: "member",
			})
		}
	}
	return orphans, nil
}

// DeleteOrphans removes the given orphaned rows and re-compacts any
// ordered owners that survive. The touched relations go through the
// pre-commit check like every other mutation.
func DeleteOrphans(ctx context.Context, tx *store.Tx, orphans []Orphan) error {
	touched := make(map[string]map[int64]bool)
	for _, o := range orphans {
		kind, ok := relation.KindByName(o.Kind)
		if !ok {
			return fmt.Errorf("unknown relation kind %q", o.Kind)
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			"DELETE FROM %s WHERE %s = ? AND %s = ?",
			kind.Table, kind.OwnerCol, kind.MemberCol), o.OwnerID, o.MemberID)
		if err != nil {
			return fmt.Errorf("delete orphan from %s: %w", kind.Name, err)
		}
		if touched[o.Kind] == nil {
			touched[o.Kind] = make(map[int64]bool)
		}
		touched[o.Kind][o.OwnerID] = true
	}

	for name, owners := range touched {
		kind, _ := relation.KindByName(name)
		for owner := range owners {
			if kind.Ordered {
				ok, err := entityResolves(ctx, tx, kind.OwnerEnt, owner)
				if err != nil {
					return err
				}
				if ok {
					if err := relation.Compact(ctx, tx, kind, owner); err != nil {
						return err
					}
				}
			}
			tx.TouchRelation(kind.Name, owner)
		}
	}
	return nil
}
