package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// JoinKey identifies a county across the tabular dataset and the geometry.
type JoinKey string

// stripAccents decomposes, drops combining marks, and recomposes.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NewJoinKey builds the canonical key for a (state, county) pair. It is the
// only constructor of join keys and is used both when indexing dataset rows
// and when looking up geometry features. The second result is false when the
// state cannot be resolved or the county name normalizes to empty.
func NewJoinKey(state, county string) (JoinKey, bool) {
	fips, ok := ResolveStateFIPS(state)
	if !ok {
		return "", false
	}
	name := NormalizeCountyName(county)
	if name == "" {
		return "", false
	}
	return JoinKey(fips + "-" + name), true
}

// NormalizeCountyName folds a county name into its join-key form:
// NFKC, accent-free, lower-case, single-spaced, without a trailing "county".
func NormalizeCountyName(county string) string {
	s := norm.NFKC.String(county)
	if folded, _, err := transform.String(stripAccents, s); err == nil {
		s = folded
	}
	s = strings.ToLower(collapseSpaces(s))
	if trimmed, ok := strings.CutSuffix(s, " county"); ok && trimmed != "" {
		s = trimmed
	}
	return s
}

// StateFIPS returns the state portion of the key.
func (k JoinKey) StateFIPS() string {
	state, _, _ := strings.Cut(string(k), "-")
	return state
}

func (k JoinKey) String() string { return string(k) }
