package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/repo"
)

func TestTableTextOutput(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	scores := []*repo.Score{
		{ID: 10, Title: "Nocturne Op. 9 No. 2", Rating: 5, Key: "D# Major", Path: "nocturne.pdf"},
		{ID: 11, Title: "Prelude", Difficulty: 3, Path: "prelude.pdf"},
	}
	require.NoError(t, printScores(f, scores))

	g := goldie.New(t)
	g.Assert(t, "scores_table", buf.Bytes())
}

func TestTableJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	scores := []*repo.Score{{ID: 10, Title: "Nocturne", Path: "nocturne.pdf"}}
	require.NoError(t, printScores(f, scores))

	var resp struct {
		Status string       `json:"status"`
		Data   []repo.Score `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Nocturne", resp.Data[0].Title)
}

func TestErrorOutputCarriesTaxonomyCode(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	err := liberr.New(liberr.CodeNotFound, "no score named %q", "Sonata")
	require.NoError(t, f.Error(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	var text bytes.Buffer
	f = &OutputFormatter{Format: "text", Writer: &text}
	require.NoError(t, f.Error(err))
	assert.Contains(t, text.String(), "[NOT_FOUND]")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitCommandError,
		GetExitCode(liberr.New(liberr.CodeIO, "store missing")))
	assert.Equal(t, ExitFailure,
		GetExitCode(liberr.New(liberr.CodeNotFound, "no such score")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain failure")))

	wrapped := WrapExitError(ExitCommandError, "open store",
		liberr.New(liberr.CodeIO, "no such file"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}
