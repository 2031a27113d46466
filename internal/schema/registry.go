package schema

// Entity-type codes from the host's Z_PRIMARYKEY registry. Pinned per host
// version; the drift tool flags stores where these no longer hold.
const (
	EntSetlistEntry = 2
	EntItem         = 4
	EntBookmark     = 5
	EntScore        = 6
	EntLibrary      = 7
	EntMeta         = 9
	EntComposer     = 10
	EntDifficulty   = 11
	EntGenre        = 12
	EntKeyword      = 13
	EntLabel        = 14
	EntRating       = 15
	EntPage         = 16
	EntSetlist      = 19
	EntTrack        = 22
)

// EntityType describes one row of the entity-type registry.
type EntityType struct {
	Code  int
	Name  string
	Super int // supertype code, 0 for roots
	Table string
}

// registry mirrors the host's single-table-inheritance layout: SCORE and
// BOOKMARK specialize ITEM (both live in ZITEM), the tag-like kinds
// specialize META (all live in ZMETA).
var registry = []EntityType{
	{Code: EntSetlistEntry, Name: "SetlistEntry", Table: "ZCYLON"},
	{Code: EntItem, Name: "Item", Table: "ZITEM"},
	{Code: EntBookmark, Name: "Bookmark", Super: EntItem, Table: "ZITEM"},
	{Code: EntScore, Name: "Score", Super: EntItem, Table: "ZITEM"},
	{Code: EntLibrary, Name: "Library", Table: "ZLIBRARY"},
	{Code: EntMeta, Name: "Meta", Table: "ZMETA"},
	{Code: EntComposer, Name: "Composer", Super: EntMeta, Table: "ZMETA"},
	{Code: EntDifficulty, Name: "Difficulty", Super: EntMeta, Table: "ZMETA"},
	{Code: EntGenre, Name: "Genre", Super: EntMeta, Table: "ZMETA"},
	{Code: EntKeyword, Name: "Keyword", Super: EntMeta, Table: "ZMETA"},
	{Code: EntLabel, Name: "Label", Super: EntMeta, Table: "ZMETA"},
	{Code: EntRating, Name: "Rating", Super: EntMeta, Table: "ZMETA"},
	{Code: EntPage, Name: "Page", Table: "ZPAGE"},
	{Code: EntSetlist, Name: "Setlist", Table: "ZSETLIST"},
	{Code: EntTrack, Name: "Track", Table: "ZTRACK"},
}

var byCode = func() map[int]EntityType {
	m := make(map[int]EntityType, len(registry))
	for _, et := range registry {
		m[et.Code] = et
	}
	return m
}()

// Registry returns the full entity-type listing in code order.
func Registry() []EntityType {
	out := make([]EntityType, len(registry))
	copy(out, registry)
	return out
}

// Lookup resolves an entity-type code.
func Lookup(code int) (EntityType, bool) {
	et, ok := byCode[code]
	return et, ok
}

// IsKindOf reports whether code is want or a (transitive) subtype of want.
// Unknown codes are never a kind of anything.
func IsKindOf(code, want int) bool {
	for code != 0 {
		if code == want {
			return true
		}
		et, ok := byCode[code]
		if !ok {
			return false
		}
		code = et.Super
	}
	return false
}

// KindName returns the registry name for a code, or "Unknown".
func KindName(code int) string {
	if et, ok := byCode[code]; ok {
		return et.Name
	}
	return "Unknown"
}
