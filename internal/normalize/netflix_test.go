package normalize

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/cesargomez89/flixetl/internal/domain"
)

const originalsJSON = `[
  {"title": "Stranger Things  ", "type": "TV", "titlereleased": "2016", "netflixid": 80057281, "category": "Sci-Fi,Horror", "date_released": "2016-07-15 00:00:00", "extra": "ignored"},
  {"title": "Maniac", "type": "TV", "titlereleased": "Limited Series 2018", "netflixid": "80124522", "category": "Drama", "date_released": "2018-09-21"},
  {"title": "Bird Box", "type": "Movie", "titlereleased": "", "netflixid": "not a number", "category": "Thriller", "date_released": "2018-12-21"},
  {"title": "Last Chance U", "type": "TV", "titlereleased": "2016", "netflixid": 80091742, "category": "Docuseries,Sport", "date_released": "2016-07-29"},
  {"title": "Cancelled Show X", "type": "TV", "titlereleased": "2019", "netflixid": 81000001, "category": null, "date_released": null},
  {"title": "   ", "type": "Movie", "titlereleased": "2020", "netflixid": 1, "category": "Drama", "date_released": "2020"},
  {"title": "Café Society", "type": "Special", "titlereleased": "2021", "netflixid": 2.0, "category": "Comedy", "date_released": "2021"}
]`

const cancelledCSV = "Title\nCancelled Show X\n'Sense8'\n"

func TestCleanNetflix(t *testing.T) {
	titles, stats, err := CleanNetflix(strings.NewReader(originalsJSON), strings.NewReader(cancelledCSV), nil)
	if err != nil {
		t.Fatalf("CleanNetflix failed: %v", err)
	}

	want := NetflixStats{Read: 7, DroppedLimited: 1, DroppedGenre: 1, DroppedUntitled: 1, Cancelled: 1, Written: 4}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(titles) != 4 {
		t.Fatalf("expected 4 titles, got %d", len(titles))
	}

	st := titles[0]
	if st.Title != "Stranger Things" || st.TitleKey != "strangerthings" {
		t.Errorf("title should be right-stripped and keyed: %+v", st)
	}
	if st.Type != "tvSeries" || st.TitleReleased != "2016" || st.DateReleased != "2016" {
		t.Errorf("unexpected type or dates: %+v", st)
	}
	if st.NetflixID == nil || *st.NetflixID != 80057281 {
		t.Errorf("unexpected netflix id %v", st.NetflixID)
	}
	if st.Category != "Sci-Fi/Fantasy,Horror" {
		t.Errorf("unexpected category %q", st.Category)
	}

	bird := titles[1]
	if bird.Type != "movie" || bird.TitleReleased != "2018" {
		t.Errorf("blank titlereleased should fall back to date_released year: %+v", bird)
	}
	if bird.NetflixID != nil {
		t.Errorf("non-numeric id should be null, got %v", *bird.NetflixID)
	}

	x := titles[2]
	if !x.Cancelled || x.Category != "Other" {
		t.Errorf("expected cancelled title in Other: %+v", x)
	}

	cafe := titles[3]
	if cafe.Type != "Special" {
		t.Errorf("unknown type labels pass through, got %q", cafe.Type)
	}
	if cafe.NetflixID == nil || *cafe.NetflixID != 2 {
		t.Errorf("integral float id should parse, got %v", cafe.NetflixID)
	}
}

func TestCleanNetflix_RoundTrip(t *testing.T) {
	titles, _, err := CleanNetflix(strings.NewReader(originalsJSON), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteNetflix(&buf, titles); err != nil {
		t.Fatalf("WriteNetflix failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Café Society") {
		t.Error("non-ASCII characters should be preserved in the artifact")
	}
	if !strings.Contains(buf.String(), `"title_cleaned"`) {
		t.Error("artifact should carry the title key")
	}

	back, err := ReadNetflix("cleaned", &buf)
	if err != nil {
		t.Fatalf("ReadNetflix failed: %v", err)
	}
	if len(back) != len(titles) || back[0].TitleKey != titles[0].TitleKey {
		t.Errorf("round trip mismatch: %+v", back)
	}
	for _, title := range back {
		if title.Cancelled {
			t.Errorf("no cancelled list means nothing is cancelled: %+v", title)
		}
	}
}

func TestCleanNetflix_BadJSON(t *testing.T) {
	_, _, err := CleanNetflix(strings.NewReader(`{"not": "a list"}`), nil, nil)
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestReadCancelledTitles(t *testing.T) {
	set, err := ReadCancelledTitles(strings.NewReader("Title\nThe OA\nSense8: The Series\n"))
	if err != nil {
		t.Fatalf("ReadCancelledTitles failed: %v", err)
	}
	if !set["theoa"] || !set["sense8"] {
		t.Errorf("unexpected set %v", set)
	}

	_, err = ReadCancelledTitles(strings.NewReader("Name\nx\n"))
	if err == nil {
		t.Error("expected error for missing Title column")
	}
}
