package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
)

func TestKeyFromCode(t *testing.T) {
	tests := []struct {
		code int
		want string
		ok   bool
	}{
		{110, "C Major", true},
		{111, "C Minor", true},
		{411, "F# Minor", true},
		{611, "A# Minor", true},
		{700, "B Major", true},
		{0, "", false},
		{-1, "", false},
		{810, "", false}, // note out of range
		{125, "", false}, // malformed mode digit
	}
	for _, tt := range tests {
		k, ok := KeyFromCode(tt.code)
		assert.Equal(t, tt.ok, ok, "code %d", tt.code)
		assert.Equal(t, tt.want, k.String(), "code %d", tt.code)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		code int
	}{
		{"C Major", 110},
		{"c major", 110},
		{"F# Minor", 411},
		{"Gb Major", 410}, // flats normalize to the enharmonic sharp
		{"Bb min", 611},
		{"A maj", 600},
	}
	for _, tt := range tests {
		k, err := ParseKey(tt.in)
		require.NoError(t, err, "parse %q", tt.in)
		assert.Equal(t, tt.code, k.Code, "parse %q", tt.in)
	}
}

func TestParseKeyInvalid(t *testing.T) {
	for _, in := range []string{"", "C", "H Major", "C Dorian", "C Major Seven"} {
		_, err := ParseKey(in)
		require.Error(t, err, "parse %q", in)
		assert.Equal(t, liberr.CodeValidation, liberr.CodeOf(err), "parse %q", in)
	}
}

func TestParseKeyRoundTrips(t *testing.T) {
	k, err := ParseKey("F# Minor")
	require.NoError(t, err)
	back, ok := KeyFromCode(k.Code)
	require.True(t, ok)
	assert.Equal(t, "F# Minor", back.String())
}

func TestRatingAndDifficultyRanges(t *testing.T) {
	assert.True(t, ValidRating(1))
	assert.True(t, ValidRating(6))
	assert.False(t, ValidRating(0))
	assert.False(t, ValidRating(7))

	assert.True(t, ValidDifficulty(1))
	assert.True(t, ValidDifficulty(5))
	assert.False(t, ValidDifficulty(0))
	assert.False(t, ValidDifficulty(6))
}
