package schema

import (
	"strings"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
)

// Key is the host's packed musical-key encoding: note*100 + sharp*10 + mode,
// where note is 1..7 (C..B), sharp is 0 or 1, and mode is 0 (major) or 1
// (minor). 110 is C Major, 411 is F# Minor. Zero means unset.
type Key struct {
	Code int
	Note string
	Mode string
}

var noteNames = [...]string{1: "C", 2: "D", 3: "E", 4: "F", 5: "G", 6: "A", 7: "B"}

// KeyFromCode decodes a packed key code. Returns ok=false for zero, negative
// or malformed codes.
func KeyFromCode(code int) (Key, bool) {
	if code <= 0 {
		return Key{}, false
	}
	note := code / 100
	sharp := (code / 10) % 10
	mode := code % 10
	if note < 1 || note > 7 || sharp > 1 || mode > 1 {
		return Key{}, false
	}
	name := noteNames[note]
	if sharp == 1 {
		name += "#"
	}
	modeName := "Major"
	if mode == 1 {
		modeName = "Minor"
	}
	return Key{Code: code, Note: name, Mode: modeName}, true
}

// ParseKey parses strings like "C Major", "F# Minor" or "Bb Major". Flats
// are normalized to the enharmonic sharp the host stores.
func ParseKey(s string) (Key, error) {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) != 2 {
		return Key{}, liberr.New(liberr.CodeValidation, "invalid key %q: use a form like %q or %q", s, "C Major", "F# Minor")
	}

	var note, sharp int
	switch strings.ToUpper(parts[0]) {
	case "C":
		note = 1
	case "C#", "C♯", "DB", "D♭":
		note, sharp = 1, 1
	case "D":
		note = 2
	case "D#", "D♯", "EB", "E♭":
		note, sharp = 2, 1
	case "E":
		note = 3
	case "F":
		note = 4
	case "F#", "F♯", "GB", "G♭":
		note, sharp = 4, 1
	case "G":
		note = 5
	case "G#", "G♯", "AB", "A♭":
		note, sharp = 5, 1
	case "A":
		note = 6
	case "A#", "A♯", "BB", "B♭":
		note, sharp = 6, 1
	case "B":
		note = 7
	default:
		return Key{}, liberr.New(liberr.CodeValidation, "invalid key %q: unknown note %q", s, parts[0])
	}

	var mode int
	switch strings.ToLower(parts[1]) {
	case "major", "maj":
		mode = 0
	case "minor", "min":
		mode = 1
	default:
		return Key{}, liberr.New(liberr.CodeValidation, "invalid key %q: unknown mode %q", s, parts[1])
	}

	k, _ := KeyFromCode(note*100 + sharp*10 + mode)
	return k, nil
}

func (k Key) String() string {
	if k.Code == 0 {
		return ""
	}
	return k.Note + " " + k.Mode
}

// Rating and difficulty ranges the host enforces in its editor UI.
const (
	MinRating     = 1
	MaxRating     = 6
	MinDifficulty = 1
	MaxDifficulty = 5
)

// ValidRating reports whether r is inside the host's 1..6 star range.
func ValidRating(r int) bool { return r >= MinRating && r <= MaxRating }

// ValidDifficulty reports whether d is inside the host's 1..5 range.
func ValidDifficulty(d int) bool { return d >= MinDifficulty && d <= MaxDifficulty }
