package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

func TestCollectStats(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedScore(t, st, 10, "Nocturne", "nocturne.pdf")
	seedScore(t, st, 11, "Prelude", "prelude.pdf")
	seedBookmark(t, st, 20, 10, "Coda", 3, 4)
	seedMeta(t, st, 40, schema.EntComposer, "ZVALUE", "Chopin")
	seedMeta(t, st, 50, schema.EntGenre, "ZVALUE2", "Romantic")

	mustTransact(t, st, func(tx *store.Tx) error {
		if _, err := CreateCollection(ctx, tx, Setlists, "Gig"); err != nil {
			return err
		}
		key := "C Major"
		rating := 4
		return UpdateItem(ctx, tx, 10, ScoreUpdate{Key: &key, Rating: &rating})
	})

	s, err := CollectStats(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Scores)
	assert.Equal(t, 1, s.Bookmarks)
	assert.Equal(t, 1, s.Setlists)
	assert.Equal(t, 1, s.Composers)
	assert.Equal(t, 1, s.Genres)
	assert.Equal(t, 1, s.WithRating)
	assert.Equal(t, 1, s.WithKey)
	assert.Zero(t, s.WithDifficulty)

	assert.InDelta(t, 50.0, s.Coverage(s.WithRating), 0.001)
	assert.Zero(t, Stats{}.Coverage(3))
}
