// Package index holds the in-memory lookup table joining canonical location
// codes to reference identifiers. It is built once at startup from the
// dataset and never mutated afterwards.
package index

import "strings"

// AreaType classifies a location for display grouping/coloring.
type AreaType int

const (
	AreaStaging AreaType = iota
	AreaStacking
	AreaGeneral
	AreaOther
)

// dataset TYPE tags as they appear in the source records
const (
	tagStaging  = "STAGING_AREA"
	tagStacking = "STACKING_AREA"
	tagGeneral  = "GENERAL_AREA"
)

// ParseAreaType maps a raw dataset TYPE tag onto an AreaType. Unrecognized
// tags classify as AreaOther.
func ParseAreaType(tag string) AreaType {
	switch tag {
	case tagStaging:
		return AreaStaging
	case tagStacking:
		return AreaStacking
	case tagGeneral:
		return AreaGeneral
	default:
		return AreaOther
	}
}

// Tag returns the dataset-style tag for the area type.
func (a AreaType) Tag() string {
	switch a {
	case AreaStaging:
		return tagStaging
	case AreaStacking:
		return tagStacking
	case AreaGeneral:
		return tagGeneral
	default:
		return "OTHER_AREA"
	}
}

// DisplayName renders the tag for humans, e.g. "Staging Area".
func (a AreaType) DisplayName() string {
	words := strings.Split(strings.ToLower(strings.ReplaceAll(a.Tag(), "_", " ")), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Color returns the display color hex for the area type.
func (a AreaType) Color() string {
	switch a {
	case AreaStaging:
		return "#3498db"
	case AreaStacking:
		return "#2ecc71"
	case AreaGeneral:
		return "#f39c12"
	default:
		return "#95a5a6"
	}
}

// Record is one raw dataset row.
type Record struct {
	Location    string
	ReferenceID string
	Type        string
}

// Entry is a resolved location.
type Entry struct {
	Location    string   `json:"location"`
	ReferenceID string   `json:"reference_id"`
	Area        AreaType `json:"-"`
}

// Index is the immutable lookup table. Lookup is an exact, case-sensitive
// match on the canonical location string; callers must normalize first.
type Index struct {
	byLocation map[string]Entry
	byArea     map[AreaType][]Entry
	ordered    []Entry
}

// Build scans the dataset records and buckets them by declared type.
func Build(records []Record) *Index {
	idx := &Index{
		byLocation: make(map[string]Entry, len(records)),
		byArea:     make(map[AreaType][]Entry, 4),
		ordered:    make([]Entry, 0, len(records)),
	}
	for _, r := range records {
		e := Entry{Location: r.Location, ReferenceID: r.ReferenceID, Area: ParseAreaType(r.Type)}
		idx.byLocation[e.Location] = e
		idx.byArea[e.Area] = append(idx.byArea[e.Area], e)
		idx.ordered = append(idx.ordered, e)
	}
	return idx
}

// Find resolves a canonical code. No fuzzy or partial matching here.
func (idx *Index) Find(code string) (Entry, bool) {
	e, ok := idx.byLocation[code]
	return e, ok
}

// Area lists all entries bucketed under the given area type.
func (idx *Index) Area(a AreaType) []Entry {
	return idx.byArea[a]
}

// Len reports the total number of entries.
func (idx *Index) Len() int {
	return len(idx.ordered)
}

// Suggest returns entries whose location contains term, case-insensitive, in
// dataset order. This backs autocomplete only; resolution always goes through
// Find.
func (idx *Index) Suggest(term string) []Entry {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var out []Entry
	for _, e := range idx.ordered {
		if strings.Contains(strings.ToLower(e.Location), term) {
			out = append(out, e)
		}
	}
	return out
}
