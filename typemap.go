package siardlite

import "regexp"

// Affinity is SQLite's five-way coarse type classification. The string
// value is what appears in emitted CREATE TABLE column declarations.
type Affinity string

const (
	AffinityInteger Affinity = "INTEGER"
	AffinityNumeric Affinity = "NUMERIC"
	AffinityReal    Affinity = "REAL"
	AffinityBlob    Affinity = "BLOB"
	AffinityText    Affinity = "TEXT"
)

// Classification rules in match order. Case-sensitive: SIARD canonical
// type names are uppercase.
var (
	reInteger = regexp.MustCompile(`(BIG|SMALL)INT|INTEGER|\bINT\b|BOOL`)
	reNumeric = regexp.MustCompile(`NUMERIC|DECIMAL|DEC\s*\(`)
	reReal    = regexp.MustCompile(`DOUBLE|FLOAT|REAL`)
	reBlob    = regexp.MustCompile(`VARBINARY|BINARY|BLOB`)
)

// typeMapper classifies SIARD type strings into affinities, caching by
// exact string. Per-cell work dominates a translation, and the same
// handful of declared types recurs for every row, so the cache pays for
// itself immediately. Run-scoped, like the type table.
type typeMapper struct {
	cache map[string]Affinity
}

func newTypeMapper() *typeMapper {
	return &typeMapper{cache: make(map[string]Affinity)}
}

// affinityOf maps a SIARD type string to an affinity by first matching
// rule: INTEGER, NUMERIC, REAL, BLOB, then TEXT as the default.
func (m *typeMapper) affinityOf(typeString string) Affinity {
	if aff, ok := m.cache[typeString]; ok {
		return aff
	}
	var aff Affinity
	switch {
	case reInteger.MatchString(typeString):
		aff = AffinityInteger
	case reNumeric.MatchString(typeString):
		aff = AffinityNumeric
	case reReal.MatchString(typeString):
		aff = AffinityReal
	case reBlob.MatchString(typeString):
		aff = AffinityBlob
	default:
		aff = AffinityText
	}
	m.cache[typeString] = aff
	return aff
}
