package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/schema"
)

func fixturePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.4sl")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	require.NoError(t, schema.Bootstrap(context.Background(), db))
	require.NoError(t, db.Close())
	return path
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.4sl"))
	require.Error(t, err)
	assert.Equal(t, liberr.CodeIO, liberr.CodeOf(err))
}

func TestOpenRejectsForeignDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE stuff (id INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Equal(t, liberr.CodeIO, liberr.CodeOf(err))
}

func TestTransactCommits(t *testing.T) {
	st, err := Open(fixturePath(t))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	err = st.Transact(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO ZSETLIST (Z_PK, Z_ENT, Z_OPT, ZTITLE) VALUES (1, ?, 1, 'Gig')",
			schema.EntSetlist)
		return err
	})
	require.NoError(t, err)

	var title string
	require.NoError(t, st.QueryRowContext(ctx,
		"SELECT ZTITLE FROM ZSETLIST WHERE Z_PK = 1").Scan(&title))
	assert.Equal(t, "Gig", title)
}

func TestTransactRollsBackOnError(t *testing.T) {
	st, err := Open(fixturePath(t))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	boom := errors.New("boom")
	err = st.Transact(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO ZSETLIST (Z_PK, Z_ENT, Z_OPT, ZTITLE) VALUES (1, ?, 1, 'Gig')",
			schema.EntSetlist)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, st.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ZSETLIST").Scan(&count))
	assert.Zero(t, count, "failed transaction must leave no trace")
}

func TestTransactGuardFailureRollsBack(t *testing.T) {
	st, err := Open(fixturePath(t))
	require.NoError(t, err)
	defer st.Close()

	st.SetGuard(func(ctx context.Context, tx *Tx) error {
		return liberr.New(liberr.CodeConsistency, "rejected")
	})

	ctx := context.Background()
	err = st.Transact(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO ZSETLIST (Z_PK, Z_ENT, Z_OPT, ZTITLE) VALUES (1, ?, 1, 'Gig')",
			schema.EntSetlist)
		return err
	})
	assert.Equal(t, liberr.CodeConsistency, liberr.CodeOf(err))

	var count int
	require.NoError(t, st.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ZSETLIST").Scan(&count))
	assert.Zero(t, count)
}

func TestReadOnlyStoreRefusesTransact(t *testing.T) {
	path := fixturePath(t)
	st, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer st.Close()

	err = st.Transact(context.Background(), func(tx *Tx) error { return nil })
	require.Error(t, err)
	assert.Equal(t, liberr.CodeIO, liberr.CodeOf(err))
}

func TestTouchTracking(t *testing.T) {
	st, err := Open(fixturePath(t))
	require.NoError(t, err)
	defer st.Close()

	err = st.Transact(context.Background(), func(tx *Tx) error {
		tx.TouchRelation("setlist-items", 7)
		tx.TouchRelation("setlist-items", 3)
		tx.TouchRelation("setlist-items", 7) // dedup
		tx.TouchName(schema.EntSetlist, 9)

		assert.Equal(t, map[string][]int64{"setlist-items": {3, 7}}, tx.TouchedRelations())
		assert.Equal(t, map[int][]int64{schema.EntSetlist: {9}}, tx.TouchedNames())
		return nil
	})
	require.NoError(t, err)
}
