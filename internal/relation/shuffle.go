package relation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// ReshuffleOwner assigns a fresh random permutation to the ZSHUFFLE column
// of an owner's ordered set. The host reads these values for shuffle
// playback; playback positions (ZINDEX) are untouched.
func ReshuffleOwner(ctx context.Context, tx *store.Tx, kind Kind, owner int64) error {
	if !kind.Ordered {
		return liberr.New(liberr.CodeValidation, "relation %s has no shuffle state", kind.Name)
	}

	members, err := MembersOf(ctx, tx, kind, owner)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	perm := rand.Perm(len(members))
	for i, m := range members {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"UPDATE %s SET ZSHUFFLE = ? WHERE Z_PK = ?", kind.Table),
			perm[i], m.RowID); err != nil {
			return fmt.Errorf("reshuffle %s %d: %w", kind.Name, owner, err)
		}
	}
	tx.TouchRelation(kind.Name, owner)
	return nil
}
