package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/repo"
	"github.com/danielhopkins/forscore-cli/internal/schema"
)

// newLibrary bootstraps a store file with a couple of scores and one
// bookmark, the smallest fixture the command flows need.
func newLibrary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.4sl")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, schema.Bootstrap(ctx, db))
	seed := []struct {
		id    int64
		title string
		path  string
	}{
		{10, "Nocturne Op. 9 No. 2", "nocturne.pdf"},
		{11, "Prelude in E Minor", "prelude.pdf"},
	}
	for _, s := range seed {
		_, err = db.ExecContext(ctx,
			"INSERT INTO ZITEM (Z_PK, Z_ENT, Z_OPT, ZTITLE, ZSORTTITLE, ZPATH) VALUES (?, ?, 1, ?, ?, ?)",
			s.id, schema.EntScore, s.title, repo.SortTitle(s.title), s.path)
		require.NoError(t, err)
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO ZITEM (Z_PK, Z_ENT, Z_OPT, ZSCORE, ZTITLE, ZSTARTPAGE, ZENDPAGE) VALUES (20, ?, 1, 10, 'Coda', 3, 4)",
		schema.EntBookmark)
	require.NoError(t, err)
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func scoreTitle(t *testing.T, path string, id int64) string {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	require.NoError(t, err)
	defer db.Close()
	var title string
	require.NoError(t, db.QueryRowContext(context.Background(),
		"SELECT ZTITLE FROM ZITEM WHERE Z_PK = ?", id).Scan(&title))
	return title
}

func TestScoresLs(t *testing.T) {
	lib := newLibrary(t)

	out, _, err := run(t, "--db", lib, "scores", "ls")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "TITLE")
	assert.Contains(t, lines[1], "Nocturne Op. 9 No. 2")
	assert.Contains(t, lines[2], "Prelude in E Minor")
}

func TestScoresLsJSON(t *testing.T) {
	lib := newLibrary(t)

	out, _, err := run(t, "--db", lib, "--format", "json", "scores", "ls")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []repo.Score `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data, 2)
}

func TestInvalidFormatRejected(t *testing.T) {
	lib := newLibrary(t)

	_, _, err := run(t, "--db", lib, "--format", "xml", "scores", "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMissingStoreIsCommandError(t *testing.T) {
	_, _, err := run(t, "--db", filepath.Join(t.TempDir(), "nope.4sl"), "scores", "ls")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSetlistLifecycle(t *testing.T) {
	lib := newLibrary(t)

	out, _, err := run(t, "--db", lib, "setlists", "create", "Gig")
	require.NoError(t, err)
	assert.Contains(t, out, `Created setlist "Gig"`)

	out, _, err = run(t, "--db", lib, "setlists", "add", "Gig", "Nocturne Op. 9 No. 2")
	require.NoError(t, err)
	assert.Contains(t, out, "position 0")

	out, _, err = run(t, "--db", lib, "setlists", "add", "Gig", "prelude.pdf")
	require.NoError(t, err)
	assert.Contains(t, out, "position 1")

	_, _, err = run(t, "--db", lib, "setlists", "reorder", "Gig", "11", "0")
	require.NoError(t, err)

	out, _, err = run(t, "--db", lib, "setlists", "show", "Gig")
	require.NoError(t, err)
	preludeAt := strings.Index(out, "Prelude in E Minor")
	nocturneAt := strings.Index(out, "Nocturne Op. 9 No. 2")
	require.Positive(t, preludeAt)
	require.Positive(t, nocturneAt)
	assert.Less(t, preludeAt, nocturneAt, "reorder moved the prelude to the top")

	_, _, err = run(t, "--db", lib, "setlists", "remove", "Gig", "11")
	require.NoError(t, err)

	// Delete without cascade fails while a member remains.
	_, _, err = run(t, "--db", lib, "setlists", "delete", "Gig")
	require.Error(t, err)
	assert.Equal(t, liberr.CodeReferential, liberr.CodeOf(err))

	_, _, err = run(t, "--db", lib, "setlists", "delete", "Gig", "--cascade")
	require.NoError(t, err)
}

func TestScoresEditAndShow(t *testing.T) {
	lib := newLibrary(t)

	_, _, err := run(t, "--db", lib, "scores", "edit", "10",
		"--composer", "Frédéric Chopin", "--rating", "5", "--key", "Eb Major")
	require.NoError(t, err)

	out, _, err := run(t, "--db", lib, "scores", "show", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Frédéric Chopin")
	assert.Contains(t, out, "Rating:     5")
	assert.Contains(t, out, "D# Major")
}

func TestScoresEditRollsBackCompletely(t *testing.T) {
	lib := newLibrary(t)

	// The title change is applied before the rating fails validation; the
	// rollback must take both with it.
	_, _, err := run(t, "--db", lib, "scores", "edit", "10",
		"--title", "Renamed", "--rating", "9")
	require.Error(t, err)
	assert.Equal(t, liberr.CodeRange, liberr.CodeOf(err))
	assert.Equal(t, "Nocturne Op. 9 No. 2", scoreTitle(t, lib, 10))
}

func TestScoresEditDryRun(t *testing.T) {
	lib := newLibrary(t)

	out, _, err := run(t, "--db", lib, "scores", "edit", "10",
		"--title", "Renamed", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Renamed")
	assert.Equal(t, "Nocturne Op. 9 No. 2", scoreTitle(t, lib, 10))
}

func TestScoresEditRequiresAFlag(t *testing.T) {
	lib := newLibrary(t)

	_, _, err := run(t, "--db", lib, "scores", "edit", "10")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCSVRoundTrip(t *testing.T) {
	lib := newLibrary(t)
	csvPath := filepath.Join(t.TempDir(), "export.csv")

	_, _, err := run(t, "--db", lib, "export", "csv", "-o", csvPath)
	require.NoError(t, err)

	raw, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), strings.Join(csvHeader, ",")))

	// Give score 10 a composer in the file, then import it back.
	edited := strings.Replace(string(raw),
		"10,nocturne.pdf,Nocturne Op. 9 No. 2,,",
		"10,nocturne.pdf,Nocturne Op. 9 No. 2,Frédéric Chopin,", 1)
	require.NotEqual(t, string(raw), edited)
	require.NoError(t, os.WriteFile(csvPath, []byte(edited), 0o644))

	out, _, err := run(t, "--db", lib, "import", "csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 1 change(s).")

	out, _, err = run(t, "--db", lib, "scores", "show", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Frédéric Chopin")

	// A second import finds nothing left to change.
	out, _, err = run(t, "--db", lib, "import", "csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No changes.")
}

func TestImportDryRun(t *testing.T) {
	lib := newLibrary(t)
	csvPath := filepath.Join(t.TempDir(), "import.csv")

	content := strings.Join(csvHeader, ",") + "\n" +
		"10,nocturne.pdf,Renamed,,,,,,\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	out, _, err := run(t, "--db", lib, "import", "csv", csvPath, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run: 1 change(s) rolled back.")
	assert.Equal(t, "Nocturne Op. 9 No. 2", scoreTitle(t, lib, 10))
}

func TestSchemaCaptureAndCheck(t *testing.T) {
	lib := newLibrary(t)
	baseline := filepath.Join(t.TempDir(), "baseline.yaml")

	_, _, err := run(t, "--db", lib, "schema", "capture", "-o", baseline)
	require.NoError(t, err)

	out, _, err := run(t, "--db", lib, "schema", "check", "--baseline", baseline)
	require.NoError(t, err)
	assert.Contains(t, out, "matches the baseline")

	db, err := sql.Open("sqlite3", "file:"+lib)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE ZANNOTATION (Z_PK INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, _, err = run(t, "--db", lib, "schema", "check", "--baseline", baseline)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "ZANNOTATION")
}

func TestBackupCopiesStore(t *testing.T) {
	lib := newLibrary(t)
	dst := filepath.Join(t.TempDir(), "library.bak")

	_, _, err := run(t, "--db", lib, "backup", "-o", dst)
	require.NoError(t, err)

	src, err := os.ReadFile(lib)
	require.NoError(t, err)
	copied, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, src, copied)
}

func TestFixesDuplicateBookmarks(t *testing.T) {
	lib := newLibrary(t)

	db, err := sql.Open("sqlite3", "file:"+lib)
	require.NoError(t, err)
	_, err = db.Exec(
		"INSERT INTO ZITEM (Z_PK, Z_ENT, Z_OPT, ZSCORE, ZTITLE, ZSTARTPAGE, ZENDPAGE) VALUES (21, ?, 1, 10, 'Coda', 3, 4)",
		schema.EntBookmark)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, _, err := run(t, "--db", lib, "fixes", "duplicate-bookmarks", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Coda")

	_, _, err = run(t, "--db", lib, "fixes", "duplicate-bookmarks")
	require.NoError(t, err)

	db, err = sql.Open("sqlite3", "file:"+lib+"?mode=ro")
	require.NoError(t, err)
	defer db.Close()
	var left int64
	require.NoError(t, db.QueryRow(
		"SELECT Z_PK FROM ZITEM WHERE Z_ENT = ? AND ZTITLE = 'Coda'",
		schema.EntBookmark).Scan(&left))
	assert.EqualValues(t, 20, left, "the older bookmark survives")
}

func TestComposersRenameAndMerge(t *testing.T) {
	lib := newLibrary(t)

	_, _, err := run(t, "--db", lib, "scores", "edit", "10", "--composer", "Chopin")
	require.NoError(t, err)
	_, _, err = run(t, "--db", lib, "scores", "edit", "11", "--composer", "F. Chopin")
	require.NoError(t, err)

	_, _, err = run(t, "--db", lib, "composers", "merge", "F. Chopin", "Chopin")
	require.NoError(t, err)

	out, _, err := run(t, "--db", lib, "composers", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "Chopin")
	assert.NotContains(t, out, "F. Chopin")

	_, _, err = run(t, "--db", lib, "composers", "rename", "Chopin", "Frédéric Chopin")
	require.NoError(t, err)
	out, _, err = run(t, "--db", lib, "composers", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "Frédéric Chopin")

	_, _, err = run(t, "--db", lib, "composers", "delete", "Frédéric Chopin")
	require.Error(t, err)
	assert.Equal(t, liberr.CodeReferential, liberr.CodeOf(err))

	_, _, err = run(t, "--db", lib, "composers", "delete", "Frédéric Chopin", "--cascade")
	require.NoError(t, err)
	out, _, err = run(t, "--db", lib, "composers", "ls")
	require.NoError(t, err)
	assert.NotContains(t, out, "Chopin")
}

func TestInfo(t *testing.T) {
	lib := newLibrary(t)

	out, _, err := run(t, "--db", lib, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Scores")
	assert.Contains(t, out, "2")

	out, _, err = run(t, "--db", lib, "--format", "json", "info")
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   repo.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Scores)
	assert.Equal(t, 1, resp.Data.Bookmarks)
}
