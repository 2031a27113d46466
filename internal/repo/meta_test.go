package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

func TestListMetaCollatedWithCounts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedScore(t, st, 10, "Nocturne", "nocturne.pdf")
	seedScore(t, st, 11, "Prelude", "prelude.pdf")
	seedMeta(t, st, 40, schema.EntComposer, "ZVALUE", "chopin")
	seedMeta(t, st, 41, schema.EntComposer, "ZVALUE", "Bach")
	seedMeta(t, st, 42, schema.EntComposer, "ZVALUE", "Albéniz")
	linkMeta(t, st, Composers, 10, 40)
	linkMeta(t, st, Composers, 11, 40)
	linkMeta(t, st, Composers, 10, 41)

	metas, err := ListMeta(ctx, st, Composers, false)
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, "Albéniz", metas[0].Name)
	assert.Equal(t, "Bach", metas[1].Name)
	assert.Equal(t, "chopin", metas[2].Name)
	assert.Equal(t, 2, metas[2].ScoreCount)
	assert.Equal(t, 0, metas[0].ScoreCount)

	unused, err := ListMeta(ctx, st, Composers, true)
	require.NoError(t, err)
	require.Len(t, unused, 1)
	assert.Equal(t, "Albéniz", unused[0].Name)
}

func TestListMetaGenresUseSecondValueColumn(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedMeta(t, st, 50, schema.EntGenre, "ZVALUE2", "Romantic")

	metas, err := ListMeta(ctx, st, Genres, false)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "Romantic", metas[0].Name)
}

func TestMetaByNameNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := MetaByName(context.Background(), st, Keywords, "nope")
	require.Error(t, err)
	assert.Equal(t, liberr.CodeNotFound, liberr.CodeOf(err))
}

func TestGetOrCreateMeta(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var first, second int64
	mustTransact(t, st, func(tx *store.Tx) error {
		var err error
		first, err = GetOrCreateMeta(ctx, tx, Keywords, "hard")
		return err
	})
	mustTransact(t, st, func(tx *store.Tx) error {
		var err error
		second, err = GetOrCreateMeta(ctx, tx, Keywords, "hard")
		return err
	})
	assert.Equal(t, first, second)

	m, err := MetaByName(ctx, st, Keywords, "hard")
	require.NoError(t, err)
	assert.Equal(t, first, m.ID)
}

func TestRenameMeta(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedMeta(t, st, 40, schema.EntComposer, "ZVALUE", "Chopin")
	seedMeta(t, st, 41, schema.EntComposer, "ZVALUE", "Bach")

	mustTransact(t, st, func(tx *store.Tx) error {
		return RenameMeta(ctx, tx, Composers, "Chopin", "F. Chopin")
	})
	m, err := MetaByName(ctx, st, Composers, "F. Chopin")
	require.NoError(t, err)
	assert.EqualValues(t, 40, m.ID)

	err = st.Transact(ctx, func(tx *store.Tx) error {
		return RenameMeta(ctx, tx, Composers, "F. Chopin", "Bach")
	})
	require.Error(t, err)
	assert.Equal(t, liberr.CodeDuplicate, liberr.CodeOf(err))

	err = st.Transact(ctx, func(tx *store.Tx) error {
		return RenameMeta(ctx, tx, Composers, "Mozart", "W. A. Mozart")
	})
	require.Error(t, err)
	assert.Equal(t, liberr.CodeNotFound, liberr.CodeOf(err))
}

func TestMergeMeta(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedScore(t, st, 10, "Nocturne", "nocturne.pdf")
	seedScore(t, st, 11, "Prelude", "prelude.pdf")
	seedMeta(t, st, 40, schema.EntComposer, "ZVALUE", "Chopin")
	seedMeta(t, st, 41, schema.EntComposer, "ZVALUE", "F. Chopin")
	linkMeta(t, st, Composers, 10, 40)
	linkMeta(t, st, Composers, 10, 41)
	linkMeta(t, st, Composers, 11, 41)

	mustTransact(t, st, func(tx *store.Tx) error {
		return MergeMeta(ctx, tx, Composers, "F. Chopin", "Chopin")
	})

	// The duplicate row is gone and both scores point at the keeper.
	_, err := MetaByName(ctx, st, Composers, "F. Chopin")
	assert.Equal(t, liberr.CodeNotFound, liberr.CodeOf(err))
	metas, err := ListMeta(ctx, st, Composers, false)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "Chopin", metas[0].Name)
	assert.Equal(t, 2, metas[0].ScoreCount)
}

func TestDeleteMeta(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedScore(t, st, 10, "Nocturne", "nocturne.pdf")
	seedMeta(t, st, 40, schema.EntComposer, "ZVALUE", "Chopin")
	seedMeta(t, st, 41, schema.EntComposer, "ZVALUE", "Unused")
	linkMeta(t, st, Composers, 10, 40)

	mustTransact(t, st, func(tx *store.Tx) error {
		return DeleteMeta(ctx, tx, Composers, "Unused", false)
	})
	_, err := MetaByName(ctx, st, Composers, "Unused")
	assert.Equal(t, liberr.CodeNotFound, liberr.CodeOf(err))

	// A composer still attached to a score needs the cascade.
	err = st.Transact(ctx, func(tx *store.Tx) error {
		return DeleteMeta(ctx, tx, Composers, "Chopin", false)
	})
	require.Error(t, err)
	assert.Equal(t, liberr.CodeReferential, liberr.CodeOf(err))

	mustTransact(t, st, func(tx *store.Tx) error {
		return DeleteMeta(ctx, tx, Composers, "Chopin", true)
	})
	metas, err := ListMeta(ctx, st, Composers, false)
	require.NoError(t, err)
	assert.Empty(t, metas)

	err = st.Transact(ctx, func(tx *store.Tx) error {
		return DeleteMeta(ctx, tx, Composers, "Chopin", false)
	})
	assert.Equal(t, liberr.CodeNotFound, liberr.CodeOf(err))
}

func TestMergeMetaIntoItself(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedMeta(t, st, 40, schema.EntComposer, "ZVALUE", "Chopin")

	err := st.Transact(ctx, func(tx *store.Tx) error {
		return MergeMeta(ctx, tx, Composers, "Chopin", "Chopin")
	})
	require.Error(t, err)
	assert.Equal(t, liberr.CodeSelfMerge, liberr.CodeOf(err))
}
