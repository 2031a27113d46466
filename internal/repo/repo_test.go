package repo

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/danielhopkins/forscore-cli/internal/guard"
	"github.com/danielhopkins/forscore-cli/internal/schema"
	"github.com/danielhopkins/forscore-cli/internal/store"
)

// newTestStore returns a writable store over a freshly bootstrapped
// library, guarded the same way the command surface wires it.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.4sl")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	require.NoError(t, schema.Bootstrap(context.Background(), db))
	require.NoError(t, db.Close())

	st, err := store.Open(path)
	require.NoError(t, err)
	st.SetGuard(guard.Check)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedScore(t *testing.T, st *store.Store, id int64, title, path string) {
	t.Helper()
	_, err := st.ExecContext(context.Background(),
		"INSERT INTO ZITEM (Z_PK, Z_ENT, Z_OPT, ZTITLE, ZSORTTITLE, ZPATH) VALUES (?, ?, 1, ?, ?, ?)",
		id, schema.EntScore, title, SortTitle(title), path)
	require.NoError(t, err)
}

func seedBookmark(t *testing.T, st *store.Store, id, score int64, title string, start, end int) {
	t.Helper()
	_, err := st.ExecContext(context.Background(),
		"INSERT INTO ZITEM (Z_PK, Z_ENT, Z_OPT, ZSCORE, ZTITLE, ZSORTTITLE, ZSTARTPAGE, ZENDPAGE, ZUUID) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?)",
		id, schema.EntBookmark, score, title, SortTitle(title), start, end, title+"-UUID")
	require.NoError(t, err)
}

func seedMeta(t *testing.T, st *store.Store, id int64, ent int, col, name string) {
	t.Helper()
	_, err := st.ExecContext(context.Background(),
		"INSERT INTO ZMETA (Z_PK, Z_ENT, Z_OPT, "+col+") VALUES (?, ?, 1, ?)",
		id, ent, name)
	require.NoError(t, err)
}

func linkMeta(t *testing.T, st *store.Store, kind MetaKind, item, meta int64) {
	t.Helper()
	rel := kind.Rel
	_, err := st.ExecContext(context.Background(),
		"INSERT INTO "+rel.Table+" ("+rel.OwnerCol+", "+rel.MemberCol+") VALUES (?, ?)",
		item, meta)
	require.NoError(t, err)
}

func mustTransact(t *testing.T, st *store.Store, fn func(tx *store.Tx) error) {
	t.Helper()
	require.NoError(t, st.Transact(context.Background(), fn))
}
