package network

import (
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"
)

// Family is a coarse fragrance category.
type Family string

const (
	FamilyFloral   Family = "floral"
	FamilyCitrus   Family = "citrus"
	FamilyWoody    Family = "woody"
	FamilyOriental Family = "oriental"
	FamilyFresh    Family = "fresh"
	FamilySpicy    Family = "spicy"
	FamilySweet    Family = "sweet"
	FamilyHerbal   Family = "herbal"
	FamilyFruity   Family = "fruity"
	FamilyAquatic  Family = "aquatic"
	FamilyDefault  Family = "default"
)

// IsDefault reports whether the family is the unclassified bucket.
func (f Family) IsDefault() bool {
	return f == FamilyDefault || f == ""
}

func (f Family) String() string {
	return string(f)
}

// FamilyEntry is one row of the keyword table.
type FamilyEntry struct {
	Name     Family   `yaml:"name" json:"name" toml:"name"`
	Color    string   `yaml:"color" json:"color" toml:"color"`
	Keywords []string `yaml:"keywords" json:"keywords" toml:"keywords"`
}

// FamilyTable is the ordered keyword vocabulary used for classification.
// Row order breaks ties.
type FamilyTable struct {
	Families []FamilyEntry `yaml:"families" json:"families" toml:"families"`

	// keywords holds each row's keywords as folded word sequences.
	keywords [][][]string
	index  map[Family]int
}

// DefaultFamilyTable returns the built-in keyword table.
func DefaultFamilyTable() *FamilyTable {
	t, _ := NewFamilyTable([]FamilyEntry{
		{FamilyFloral, "#F4C2C2", []string{"rose", "jasmine", "lily", "peony", "violet", "iris", "tuberose", "orchid", "gardenia", "magnolia", "ylang", "freesia", "lilac", "orange blossom", "geranium"}},
		{FamilyCitrus, "#F7D794", []string{"lemon", "bergamot", "orange", "grapefruit", "lime", "mandarin", "yuzu", "citron", "tangerine", "neroli"}},
		{FamilyWoody, "#A1887F", []string{"cedar", "sandalwood", "vetiver", "oak", "pine", "birch", "cypress", "guaiac", "oud", "bamboo", "patchouli"}},
		{FamilyOriental, "#C8A165", []string{"amber", "musk", "incense", "myrrh", "tonka", "benzoin", "labdanum", "resin", "frankincense", "opoponax"}},
		{FamilyFresh, "#A8E6CF", []string{"mint", "green", "grass", "cucumber", "ozone", "tea", "aldehyde", "clean", "cotton", "linen"}},
		{FamilySpicy, "#E57F5B", []string{"cinnamon", "pepper", "clove", "cardamom", "nutmeg", "ginger", "saffron", "anise", "cumin"}},
		{FamilySweet, "#F3C6A5", []string{"vanilla", "caramel", "honey", "chocolate", "sugar", "praline", "coffee", "almond", "toffee", "cocoa"}},
		{FamilyHerbal, "#9CC5A1", []string{"lavender", "basil", "rosemary", "sage", "thyme", "eucalyptus", "tarragon", "chamomile"}},
		{FamilyFruity, "#F19C99", []string{"apple", "peach", "pear", "berry", "raspberry", "strawberry", "plum", "cherry", "blackcurrant", "mango", "pineapple", "fig", "coconut"}},
		{FamilyAquatic, "#8EC9E6", []string{"sea", "ocean", "marine", "water", "salt", "rain", "seaweed", "aquatic"}},
	})
	return t
}

// NewFamilyTable validates entries and precomputes folded keywords.
func NewFamilyTable(entries []FamilyEntry) (*FamilyTable, error) {
	t := &FamilyTable{Families: entries}
	if err := t.prepare(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *FamilyTable) prepare() error {
	if len(t.Families) == 0 {
		return fmt.Errorf("family table is empty")
	}
	t.keywords = make([][][]string, len(t.Families))
	t.index = make(map[Family]int, len(t.Families))

	for i := range t.Families {
		entry := &t.Families[i]
		entry.Name = Family(fold(string(entry.Name)))
		if entry.Name.IsDefault() {
			return fmt.Errorf("family %d: name %q is reserved or empty", i, entry.Name)
		}
		if _, dup := t.index[entry.Name]; dup {
			return fmt.Errorf("family %q listed twice", entry.Name)
		}
		if len(entry.Keywords) == 0 {
			return fmt.Errorf("family %q has no keywords", entry.Name)
		}
		t.index[entry.Name] = i

		for _, kw := range entry.Keywords {
			if k := words(fold(kw)); len(k) > 0 {
				t.keywords[i] = append(t.keywords[i], k)
			}
		}
	}
	return nil
}

// Color returns the palette color of a family, or "" if unknown.
func (t *FamilyTable) Color(f Family) string {
	if i, ok := t.index[f]; ok {
		return t.Families[i].Color
	}
	return ""
}

// Lookup resolves a family name, case-insensitively.
func (t *FamilyTable) Lookup(name string) (Family, bool) {
	f := Family(fold(name))
	_, ok := t.index[f]
	return f, ok
}

// Classify assigns a family. An explicit family string wins when one of its
// words names a known family. Otherwise each family scores the number of
// notes containing one of its keywords as whole words; the highest score
// wins and earlier rows win ties. No match at all yields FamilyDefault.
func (t *FamilyTable) Classify(explicit string, foldedNotes []string) Family {
	if explicit != "" {
		if f, ok := t.Lookup(explicit); ok {
			return f
		}
		for _, token := range words(explicit) {
			if f, ok := t.Lookup(token); ok {
				return f
			}
		}
	}

	noteWords := make([][]string, 0, len(foldedNotes))
	for _, note := range foldedNotes {
		if w := words(note); len(w) > 0 {
			noteWords = append(noteWords, w)
		}
	}

	best, bestScore := FamilyDefault, 0
	for i, keywords := range t.keywords {
		score := 0
		for _, note := range noteWords {
			for _, kw := range keywords {
				if containsPhrase(note, kw) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			best, bestScore = t.Families[i].Name, score
		}
	}
	return best
}

// words splits s on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether phrase occurs as a contiguous run in text.
func containsPhrase(text, phrase []string) bool {
	for start := 0; start+len(phrase) <= len(text); start++ {
		match := true
		for j, w := range phrase {
			if text[start+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// FamilyRegistry holds the active table and allows it to be swapped while
// readers are using it.
type FamilyRegistry struct {
	current atomic.Pointer[FamilyTable]
}

// NewFamilyRegistry creates a registry seeded with table, or the built-in
// table when nil.
func NewFamilyRegistry(table *FamilyTable) *FamilyRegistry {
	if table == nil {
		table = DefaultFamilyTable()
	}
	r := &FamilyRegistry{}
	r.current.Store(table)
	return r
}

// Table returns the active table.
func (r *FamilyRegistry) Table() *FamilyTable {
	return r.current.Load()
}

// Replace installs a new table.
func (r *FamilyRegistry) Replace(table *FamilyTable) {
	if table != nil {
		r.current.Store(table)
	}
}
