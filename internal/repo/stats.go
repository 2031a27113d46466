package repo

import (
	"context"
	"fmt"

	"github.com/danielhopkins/forscore-cli/internal/schema"
)

// Stats summarizes the store's contents for the info command.
type Stats struct {
	Scores    int `json:"scores"`
	Bookmarks int `json:"bookmarks"`
	Pages     int `json:"pages"`
	Setlists  int `json:"setlists"`
	Libraries int `json:"libraries"`
	Composers int `json:"composers"`
	Genres    int `json:"genres"`
	Keywords  int `json:"keywords"`
	Labels    int `json:"labels"`
	Tracks    int `json:"tracks"`

	// Metadata coverage over scores.
	WithRating     int `json:"with_rating"`
	WithDifficulty int `json:"with_difficulty"`
	WithKey        int `json:"with_key"`
}

// Coverage returns n as a percentage of the score count, 0 when empty.
func (s Stats) Coverage(n int) float64 {
	if s.Scores == 0 {
		return 0
	}
	return 100 * float64(n) / float64(s.Scores)
}

// CollectStats counts every entity kind plus metadata coverage.
func CollectStats(ctx context.Context, q schema.Querier) (*Stats, error) {
	var s Stats
	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&s.Scores, "SELECT COUNT(*) FROM ZITEM WHERE Z_ENT = ?", []any{schema.EntScore}},
		{&s.Bookmarks, "SELECT COUNT(*) FROM ZITEM WHERE Z_ENT = ?", []any{schema.EntBookmark}},
		{&s.Pages, "SELECT COUNT(*) FROM ZPAGE", nil},
		{&s.Setlists, "SELECT COUNT(*) FROM ZSETLIST", nil},
		{&s.Libraries, "SELECT COUNT(*) FROM ZLIBRARY", nil},
		{&s.Composers, "SELECT COUNT(*) FROM ZMETA WHERE Z_ENT = ?", []any{schema.EntComposer}},
		{&s.Genres, "SELECT COUNT(*) FROM ZMETA WHERE Z_ENT = ?", []any{schema.EntGenre}},
		{&s.Keywords, "SELECT COUNT(*) FROM ZMETA WHERE Z_ENT = ?", []any{schema.EntKeyword}},
		{&s.Labels, "SELECT COUNT(*) FROM ZMETA WHERE Z_ENT = ?", []any{schema.EntLabel}},
		{&s.Tracks, "SELECT COUNT(*) FROM ZTRACK", nil},
		{&s.WithRating,
			"SELECT COUNT(*) FROM ZITEM WHERE Z_ENT = ? AND ZRATING IS NOT NULL AND ZRATING > 0",
			[]any{schema.EntScore}},
		{&s.WithDifficulty,
			"SELECT COUNT(*) FROM ZITEM WHERE Z_ENT = ? AND ZDIFFICULTY IS NOT NULL AND ZDIFFICULTY > 0",
			[]any{schema.EntScore}},
		{&s.WithKey,
			"SELECT COUNT(*) FROM ZITEM WHERE Z_ENT = ? AND ZKEY IS NOT NULL AND ZKEY > 0",
			[]any{schema.EntScore}},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("collect stats: %w", err)
		}
	}
	return &s, nil
}
