package drift

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/schema"
)

func openFixture(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "library.4sl"))
	require.NoError(t, err)
	require.NoError(t, schema.Bootstrap(context.Background(), db))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCaptureIsStable(t *testing.T) {
	db := openFixture(t)
	ctx := context.Background()

	first, err := Capture(ctx, db)
	require.NoError(t, err)
	require.NotEmpty(t, first.Hash)
	require.NotEmpty(t, first.Objects)
	assert.Contains(t, first.Objects, "ZITEM")
	assert.Contains(t, first.Columns, "Z_4COMPOSERS")

	// Row mutations do not move the fingerprint; only shape does.
	_, err = db.ExecContext(ctx,
		"INSERT INTO ZITEM (Z_PK, Z_ENT, Z_OPT, ZTITLE) VALUES (10, ?, 1, 'Nocturne')",
		schema.EntScore)
	require.NoError(t, err)

	second, err := Capture(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.Hash)
}

func TestCaptureUnchangedAfterRollback(t *testing.T) {
	db := openFixture(t)
	ctx := context.Background()

	before, err := Capture(ctx, db)
	require.NoError(t, err)

	// Shape changes rolled back with their transaction leave no trace.
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "CREATE TABLE ZSCRATCH (Z_PK INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	after, err := Capture(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, before.Hash, after.Hash)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := openFixture(t)

	fp, err := Capture(context.Background(), db)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "baseline.yaml")
	require.NoError(t, Save(fp, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, fp.Hash, loaded.Hash)
	assert.Equal(t, fp.Objects, loaded.Objects)
	assert.Equal(t, fp.Entities, loaded.Entities)
}

func TestLoadRejectsTamperedBaseline(t *testing.T) {
	db := openFixture(t)

	fp, err := Capture(context.Background(), db)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "baseline.yaml")
	require.NoError(t, Save(fp, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "ZITEM", "ZITEMX", 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	_, err = Load(path)
	require.Error(t, err)
	assert.Equal(t, liberr.CodeConsistency, liberr.CodeOf(err))
}

func TestDiffReportsShapeChanges(t *testing.T) {
	db := openFixture(t)
	ctx := context.Background()

	baseline, err := Capture(ctx, db)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "CREATE TABLE ZANNOTATION (Z_PK INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "ALTER TABLE Z_4COMPOSERS ADD COLUMN ZEXTRA INTEGER")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		"INSERT INTO Z_PRIMARYKEY (Z_ENT, Z_NAME, Z_SUPER, Z_MAX) VALUES (99, 'Annotation', 0, 0)")
	require.NoError(t, err)

	current, err := Capture(ctx, db)
	require.NoError(t, err)
	assert.NotEqual(t, baseline.Hash, current.Hash)

	diffs := Diff(baseline, current)
	require.NotEmpty(t, diffs)
	joined := strings.Join(diffs, "\n")
	assert.Contains(t, joined, "ZANNOTATION")
	assert.Contains(t, joined, "Z_4COMPOSERS")
	assert.Contains(t, joined, "Annotation")

	assert.Empty(t, Diff(baseline, baseline))
}
