package match

import (
	"testing"

	"github.com/cesargomez89/flixetl/internal/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func imdbRow(key, year, typ string) domain.IMDbTitle {
	return domain.IMDbTitle{TConst: "tt-" + key, TitleKey: key, PrimaryTitle: key, StartYear: year, TitleType: typ}
}

func netflixRow(key, year, typ string, id int64) domain.NetflixTitle {
	return domain.NetflixTitle{Title: key, TitleKey: key, TitleReleased: year, Type: typ, NetflixID: int64Ptr(id)}
}

func TestPartition(t *testing.T) {
	imdb := []domain.IMDbTitle{
		imdbRow("ozark", "2017", "tvSeries"),
		imdbRow("theofficeus", "2005", "tvSeries"),
		imdbRow("birdbox", "2018", "movie"),
	}
	netflix := []domain.NetflixTitle{
		netflixRow("ozark", "2017", "tvSeries", 1),
		netflixRow("birdbox", "2018", "tvSeries", 2),
		netflixRow("cancelledshowx", "2019", "tvSeries", 3),
	}

	res := Partition(imdb, netflix)

	if res.Matched != 1 {
		t.Errorf("expected 1 match, got %d", res.Matched)
	}
	if res.Pairs[0].Netflix == nil || *res.Pairs[0].Netflix.NetflixID != 1 {
		t.Errorf("ozark should match netflix id 1: %+v", res.Pairs[0])
	}
	if res.Pairs[1].Netflix != nil {
		t.Error("the office has no netflix partner")
	}
	if res.Pairs[2].Netflix != nil {
		t.Error("type mismatch must not match")
	}

	if len(res.Residue) != 2 {
		t.Fatalf("expected 2 residue rows, got %d", len(res.Residue))
	}
	if res.Residue[0].TitleKey != "birdbox" || res.Residue[1].TitleKey != "cancelledshowx" {
		t.Errorf("residue should keep source order: %+v", res.Residue)
	}
}

func TestMatcher_FirstWins(t *testing.T) {
	netflix := []domain.NetflixTitle{
		netflixRow("dark", "2017", "tvSeries", 10),
		netflixRow("dark", "2017", "tvSeries", 11),
		netflixRow("dark", "2017", "tvSeries", 12),
		netflixRow("you", "2018", "tvSeries", 20),
		netflixRow("you", "2018", "tvSeries", 21),
	}
	m := NewMatcher(netflix)

	if m.Ambiguous() != 2 {
		t.Errorf("expected 2 ambiguous keys, got %d", m.Ambiguous())
	}

	got, ok := m.Match(imdbRow("dark", "2017", "tvSeries"))
	if !ok || *got.NetflixID != 10 {
		t.Errorf("first row in source order should win, got %+v", got)
	}

	residue := m.Residue()
	if len(residue) != 2 {
		t.Fatalf("only the unprobed key should remain, got %+v", residue)
	}
	for _, r := range residue {
		if r.TitleKey != "you" {
			t.Errorf("unexpected residue row %+v", r)
		}
	}
}

func TestMatcher_Invariant(t *testing.T) {
	imdb := []domain.IMDbTitle{
		imdbRow("a", "2000", "movie"),
		imdbRow("a", "2001", "movie"),
		imdbRow("b", "2000", "tvSeries"),
		imdbRow("c", "1999", "movie"),
		imdbRow("a", "2000", "movie"),
	}
	netflix := []domain.NetflixTitle{
		netflixRow("a", "2000", "movie", 1),
		netflixRow("a", "2000", "tvSeries", 2),
		netflixRow("b", "2000", "tvSeries", 3),
		netflixRow("d", "2010", "movie", 4),
		netflixRow("a", "2001 ", "movie", 5),
	}

	res := Partition(imdb, netflix)

	matchedIDs := map[int64]bool{}
	for _, p := range res.Pairs {
		if p.Netflix == nil {
			continue
		}
		if IMDbKey(p.IMDb) != NetflixKey(*p.Netflix) {
			t.Errorf("matched pair keys differ: %+v / %+v", p.IMDb, p.Netflix)
		}
		matchedIDs[*p.Netflix.NetflixID] = true
	}

	seen := map[int64]int{}
	for _, r := range res.Residue {
		seen[*r.NetflixID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("residue row %d appears %d times", id, n)
		}
		if matchedIDs[id] {
			t.Errorf("row %d is both matched and residue", id)
		}
	}

	for _, n := range netflix {
		if !matchedIDs[*n.NetflixID] && seen[*n.NetflixID] == 0 {
			t.Errorf("netflix row %d is neither matched nor residue", *n.NetflixID)
		}
	}
	if len(res.Residue) != 2 {
		t.Errorf("expected residue rows 2 and 4, got %+v", res.Residue)
	}
}

func TestPartition_Empty(t *testing.T) {
	res := Partition(nil, nil)
	if res.Matched != 0 || len(res.Residue) != 0 || len(res.Pairs) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}
