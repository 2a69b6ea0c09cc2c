// Package match joins cleaned IMDb titles to cleaned Netflix titles on the
// composite key (title key, release year, type).
package match

import (
	"strings"

	"github.com/cesargomez89/flixetl/internal/domain"
)

type MatchKey struct {
	Title string
	Year  string
	Type  string
}

func keyOf(title, year, typ string) MatchKey {
	return MatchKey{
		Title: title,
		Year:  strings.TrimSpace(year),
		Type:  strings.TrimSpace(typ),
	}
}

// IMDbKey is the composite key of a cleaned IMDb row.
func IMDbKey(row domain.IMDbTitle) MatchKey {
	return keyOf(row.TitleKey, row.StartYear, row.TitleType)
}

// NetflixKey is the composite key of a cleaned Netflix row.
func NetflixKey(row domain.NetflixTitle) MatchKey {
	return keyOf(row.TitleKey, row.TitleReleased, row.Type)
}

// Matcher indexes Netflix rows and remembers every key probed through Match,
// so Residue can report the Netflix rows no IMDb row reached.
// It is not safe for concurrent use.
type Matcher struct {
	rows      []domain.NetflixTitle
	index     map[MatchKey]int
	probed    map[MatchKey]bool
	ambiguous int
	matched   int
}

// NewMatcher indexes rows. When several rows share a key the first in source
// order wins.
func NewMatcher(rows []domain.NetflixTitle) *Matcher {
	m := &Matcher{
		rows:   rows,
		index:  make(map[MatchKey]int, len(rows)),
		probed: make(map[MatchKey]bool),
	}
	counted := make(map[MatchKey]bool)
	for i, row := range rows {
		k := NetflixKey(row)
		if _, ok := m.index[k]; ok {
			if !counted[k] {
				counted[k] = true
				m.ambiguous++
			}
			continue
		}
		m.index[k] = i
	}
	return m
}

// Match returns the Netflix row sharing row's composite key.
func (m *Matcher) Match(row domain.IMDbTitle) (domain.NetflixTitle, bool) {
	k := IMDbKey(row)
	m.probed[k] = true
	i, ok := m.index[k]
	if !ok {
		return domain.NetflixTitle{}, false
	}
	m.matched++
	return m.rows[i], true
}

// Residue returns, in source order, the Netflix rows whose composite key was
// never probed. Call it after every IMDb row has gone through Match.
func (m *Matcher) Residue() []domain.NetflixTitle {
	var out []domain.NetflixTitle
	for _, row := range m.rows {
		if !m.probed[NetflixKey(row)] {
			out = append(out, row)
		}
	}
	return out
}

// Ambiguous is the number of keys shared by more than one Netflix row.
func (m *Matcher) Ambiguous() int {
	return m.ambiguous
}

// Matched is the number of IMDb rows that found a Netflix partner.
func (m *Matcher) Matched() int {
	return m.matched
}

// Pair is one IMDb row and its Netflix partner, if any.
type Pair struct {
	IMDb    domain.IMDbTitle
	Netflix *domain.NetflixTitle
}

type Result struct {
	Pairs     []Pair
	Residue   []domain.NetflixTitle
	Matched   int
	Ambiguous int
}

// Partition matches two in-memory sets.
func Partition(imdb []domain.IMDbTitle, netflix []domain.NetflixTitle) Result {
	m := NewMatcher(netflix)
	pairs := make([]Pair, 0, len(imdb))
	for _, row := range imdb {
		p := Pair{IMDb: row}
		if n, ok := m.Match(row); ok {
			p.Netflix = &n
		}
		pairs = append(pairs, p)
	}
	return Result{
		Pairs:     pairs,
		Residue:   m.Residue(),
		Matched:   m.Matched(),
		Ambiguous: m.Ambiguous(),
	}
}
