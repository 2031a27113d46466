package relation

import "github.com/danielhopkins/forscore-cli/internal/schema"

// Kind describes one membership relation: which join table carries it, the
// entity-type codes both sides must resolve to, and the per-kind policy for
// ordering and duplicate pairs.
type Kind struct {
	Name      string
	Table     string
	OwnerCol  string
	MemberCol string
	OwnerEnt  int
	MemberEnt int

	// Ordered kinds carry a contiguous zero-based position per owner.
	Ordered bool

	// AllowDuplicates permits the same (owner, member) pair more than once.
	// Inferred from sampled host data, hence data not code.
	AllowDuplicates bool
}

var (
	// SetlistItems is the ordered setlist membership in ZCYLON. The host
	// lets one score appear in a setlist repeatedly.
	SetlistItems = Kind{
		Name:            "setlist-items",
		Table:           "ZCYLON",
		OwnerCol:        "ZSETLIST",
		MemberCol:       "ZITEM",
		OwnerEnt:        schema.EntSetlist,
		MemberEnt:       schema.EntItem,
		Ordered:         true,
		AllowDuplicates: true,
	}

	// LibraryItems is the unordered library membership.
	LibraryItems = Kind{
		Name:      "library-items",
		Table:     "Z_4LIBRARIES",
		OwnerCol:  "Z_7LIBRARIES",
		MemberCol: "Z_4ITEMS3",
		OwnerEnt:  schema.EntLibrary,
		MemberEnt: schema.EntScore,
	}

	// ItemComposers links items to composer rows in ZMETA.
	ItemComposers = Kind{
		Name:      "item-composers",
		Table:     "Z_4COMPOSERS",
		OwnerCol:  "Z_4ITEMS1",
		MemberCol: "Z_10COMPOSERS",
		OwnerEnt:  schema.EntItem,
		MemberEnt: schema.EntComposer,
	}

	// ItemGenres links items to genre rows.
	ItemGenres = Kind{
		Name:      "item-genres",
		Table:     "Z_4GENRES",
		OwnerCol:  "Z_4ITEMS4",
		MemberCol: "Z_12GENRES",
		OwnerEnt:  schema.EntItem,
		MemberEnt: schema.EntGenre,
	}

	// ItemKeywords links items to keyword (tag) rows.
	ItemKeywords = Kind{
		Name:      "item-keywords",
		Table:     "Z_4KEYWORDS",
		OwnerCol:  "Z_4ITEMS5",
		MemberCol: "Z_13KEYWORDS",
		OwnerEnt:  schema.EntItem,
		MemberEnt: schema.EntKeyword,
	}

	// ItemLabels links items to label rows.
	ItemLabels = Kind{
		Name:      "item-labels",
		Table:     "Z_4LABELS",
		OwnerCol:  "Z_4ITEMS2",
		MemberCol: "Z_14LABELS",
		OwnerEnt:  schema.EntItem,
		MemberEnt: schema.EntLabel,
	}
)

// Kinds lists every relation kind, for guard sweeps over all join tables.
func Kinds() []Kind {
	return []Kind{
		SetlistItems, LibraryItems,
		ItemComposers, ItemGenres, ItemKeywords, ItemLabels,
	}
}

// KindByName resolves a kind from the name recorded on a transaction touch.
func KindByName(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}
