package schema

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	et, ok := Lookup(EntScore)
	require.True(t, ok)
	assert.Equal(t, "Score", et.Name)
	assert.Equal(t, EntItem, et.Super)
	assert.Equal(t, "ZITEM", et.Table)

	_, ok = Lookup(99)
	assert.False(t, ok)
}

func TestIsKindOf(t *testing.T) {
	// Direct match and one-level supertypes.
	assert.True(t, IsKindOf(EntScore, EntScore))
	assert.True(t, IsKindOf(EntScore, EntItem))
	assert.True(t, IsKindOf(EntBookmark, EntItem))
	assert.True(t, IsKindOf(EntGenre, EntMeta))

	// Never the other direction, never across hierarchies.
	assert.False(t, IsKindOf(EntItem, EntScore))
	assert.False(t, IsKindOf(EntScore, EntMeta))
	assert.False(t, IsKindOf(EntSetlist, EntItem))
}

func TestBootstrapAndNextPrimaryKey(t *testing.T) {
	db := openFixture(t)
	ctx := context.Background()

	// Empty store allocates from 1.
	pk, err := NextPrimaryKey(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pk)

	// The key space is shared across entity tables: a high key in any
	// table moves the allocator past it.
	_, err = db.ExecContext(ctx,
		"INSERT INTO ZMETA (Z_PK, Z_ENT, Z_OPT, ZVALUE) VALUES (500, ?, 1, 'Chopin')", EntComposer)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		"INSERT INTO ZITEM (Z_PK, Z_ENT, Z_OPT, ZTITLE) VALUES (10, ?, 1, 'Nocturne')", EntScore)
	require.NoError(t, err)

	pk, err = NextPrimaryKey(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(501), pk)
}

func TestBumpPrimaryKey(t *testing.T) {
	db := openFixture(t)
	ctx := context.Background()

	require.NoError(t, BumpPrimaryKey(ctx, db, EntSetlist, 42))
	var max int64
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT Z_MAX FROM Z_PRIMARYKEY WHERE Z_ENT = ?", EntSetlist).Scan(&max))
	assert.Equal(t, int64(42), max)

	// A lower key never rewinds the registry.
	require.NoError(t, BumpPrimaryKey(ctx, db, EntSetlist, 7))
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT Z_MAX FROM Z_PRIMARYKEY WHERE Z_ENT = ?", EntSetlist).Scan(&max))
	assert.Equal(t, int64(42), max)
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 9, 12, 30, 0, 0, time.UTC)
	ts := Timestamp(now)
	assert.Equal(t, now, TimeFromTimestamp(ts).UTC())
}

func openFixture(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "library.4sl"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Bootstrap(context.Background(), db))
	return db
}
