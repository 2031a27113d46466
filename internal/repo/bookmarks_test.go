package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/relation"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

func TestListBookmarksPageOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedScore(t, st, 10, "Sonata", "sonata.pdf")
	seedScore(t, st, 11, "Nocturne", "nocturne.pdf")
	seedBookmark(t, st, 20, 10, "Finale", 12, 18)
	seedBookmark(t, st, 21, 10, "Adagio", 5, 11)
	seedBookmark(t, st, 22, 11, "Coda", 3, 4)

	marks, err := ListBookmarks(ctx, st, 10)
	require.NoError(t, err)
	require.Len(t, marks, 2)
	assert.Equal(t, "Adagio", marks[0].Title)
	assert.Equal(t, "Finale", marks[1].Title)
	assert.Equal(t, "Sonata", marks[0].ScoreTitle)

	all, err := AllBookmarks(ctx, st)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBookmarkByID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedScore(t, st, 10, "Sonata", "sonata.pdf")
	seedBookmark(t, st, 20, 10, "Finale", 12, 18)

	b, err := BookmarkByID(ctx, st, 20)
	require.NoError(t, err)
	assert.Equal(t, "Finale", b.Title)
	assert.EqualValues(t, 10, b.ScoreID)
	assert.Equal(t, 12, b.StartPage)

	_, err = BookmarkByID(ctx, st, 99)
	require.Error(t, err)
	assert.Equal(t, liberr.CodeNotFound, liberr.CodeOf(err))
}

func TestDeleteBookmarkCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedScore(t, st, 10, "Sonata", "sonata.pdf")
	seedBookmark(t, st, 20, 10, "Finale", 12, 18)

	// The bookmark sits in a setlist; deleting it must clear that too.
	mustTransact(t, st, func(tx *store.Tx) error {
		c, err := CreateCollection(ctx, tx, Setlists, "Gig")
		if err != nil {
			return err
		}
		_, err = relation.AddMember(ctx, tx, relation.SetlistItems, c.ID, 20)
		return err
	})

	mustTransact(t, st, func(tx *store.Tx) error {
		return DeleteBookmark(ctx, tx, 20)
	})

	_, err := BookmarkByID(ctx, st, 20)
	assert.Equal(t, liberr.CodeNotFound, liberr.CodeOf(err))
	var entries int
	require.NoError(t, st.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ZCYLON").Scan(&entries))
	assert.Zero(t, entries)
}

func TestFindDuplicateBookmarks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedScore(t, st, 10, "Sonata", "sonata.pdf")
	seedBookmark(t, st, 20, 10, "Finale", 12, 18)
	seedBookmark(t, st, 21, 10, "Finale", 12, 18)
	seedBookmark(t, st, 22, 10, "Finale", 12, 18)
	seedBookmark(t, st, 23, 10, "Finale", 12, 19) // different span, not a dup
	seedBookmark(t, st, 24, 10, "Adagio", 12, 18) // different title, not a dup

	dups, err := FindDuplicateBookmarks(ctx, st)
	require.NoError(t, err)
	require.Len(t, dups, 2)
	for _, d := range dups {
		assert.EqualValues(t, 20, d.OriginalID, "the lowest key is the keeper")
		assert.Contains(t, []int64{21, 22}, d.ID)
	}
}

func TestFindDuplicateBookmarksIgnoresScores(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Two scores sharing a title are not bookmark duplicates.
	seedScore(t, st, 10, "Sonata", "sonata.pdf")
	seedScore(t, st, 11, "Sonata", "sonata-2.pdf")

	dups, err := FindDuplicateBookmarks(ctx, st)
	require.NoError(t, err)
	assert.Empty(t, dups)
}
