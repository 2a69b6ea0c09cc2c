package normalize

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
)

type rawNetflixTitle struct {
	Title         flexString `json:"title"`
	Type          flexString `json:"type"`
	TitleReleased flexString `json:"titlereleased"`
	NetflixID     flexString `json:"netflixid"`
	Category      flexString `json:"category"`
	DateReleased  flexString `json:"date_released"`
}

type NetflixStats struct {
	Read            int `json:"read"`
	DroppedLimited  int `json:"dropped_limited"`
	DroppedGenre    int `json:"dropped_genre"`
	DroppedUntitled int `json:"dropped_untitled"`
	Cancelled       int `json:"cancelled"`
	Written         int `json:"written"`
}

var typeLabels = map[string]string{
	"Movie": constants.TypeMovie,
	"TV":    constants.TypeSeries,
}

// NormalizeType maps source type labels onto the IMDb vocabulary.
func NormalizeType(label string) string {
	if t, ok := typeLabels[label]; ok {
		return t
	}
	return label
}

// ReadCancelledTitles reads the scraped cancelled-shows CSV and returns the
// set of title keys it names.
func ReadCancelledTitles(r io.Reader) (map[string]bool, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, &domain.ParseError{File: "cancelled shows", Line: 1, Err: err}
	}

	col := -1
	for i, h := range header {
		if strings.TrimSpace(h) == "Title" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, &domain.ParseError{File: "cancelled shows", Line: 1, Err: errors.New(`missing column "Title"`)}
	}

	set := make(map[string]bool)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return set, nil
		}
		if err != nil {
			return nil, &domain.ParseError{File: "cancelled shows", Err: err}
		}
		if col < len(rec) {
			set[TitleKey(rec[col])] = true
		}
	}
}

// CleanNetflix filters the Netflix originals listing and annotates each kept
// record with its title key, normalized categories and cancellation flag.
// A nil cancelled reader means no title is flagged.
func CleanNetflix(originals, cancelled io.Reader, vocab *Vocabulary) ([]domain.NetflixTitle, NetflixStats, error) {
	var stats NetflixStats
	if vocab == nil {
		vocab = DefaultVocabulary()
	}

	cancelledSet := map[string]bool{}
	if cancelled != nil {
		set, err := ReadCancelledTitles(cancelled)
		if err != nil {
			return nil, stats, err
		}
		cancelledSet = set
	}

	var raw []rawNetflixTitle
	if err := json.NewDecoder(originals).Decode(&raw); err != nil {
		return nil, stats, &domain.ParseError{File: "netflix originals", Err: err}
	}

	out := make([]domain.NetflixTitle, 0, len(raw))
	for _, r := range raw {
		stats.Read++

		if strings.Contains(r.TitleReleased.Value, "Limited Series") {
			stats.DroppedLimited++
			continue
		}
		if ExcludedGenre(r.Category.Value) {
			stats.DroppedGenre++
			continue
		}

		title := strings.TrimRightFunc(r.Title.Value, unicode.IsSpace)
		key := TitleKey(title)
		if key == "" {
			stats.DroppedUntitled++
			continue
		}

		dateReleased := truncate(strings.TrimSpace(r.DateReleased.Value), 4)
		released := r.TitleReleased.Value
		if strings.TrimSpace(released) == "" {
			released = dateReleased
		}
		released = truncate(strings.TrimSpace(released), 4)

		var netflixID *int64
		if id := r.NetflixID.ptr(); id != nil {
			netflixID = ParseNullInt(*id)
		}

		t := domain.NetflixTitle{
			Title:         title,
			Type:          NormalizeType(strings.TrimSpace(r.Type.Value)),
			TitleReleased: released,
			NetflixID:     netflixID,
			Category:      vocab.CategorizeJoined(r.Category.Value),
			DateReleased:  dateReleased,
			TitleKey:      key,
			Cancelled:     cancelledSet[key],
		}
		if t.Cancelled {
			stats.Cancelled++
		}
		out = append(out, t)
		stats.Written++
	}
	return out, stats, nil
}

// WriteNetflix encodes the cleaned Netflix artifact.
func WriteNetflix(w io.Writer, titles []domain.NetflixTitle) error {
	if titles == nil {
		titles = []domain.NetflixTitle{}
	}
	return writeJSON(w, titles)
}

// ReadNetflix decodes the cleaned Netflix artifact.
func ReadNetflix(name string, r io.Reader) ([]domain.NetflixTitle, error) {
	var titles []domain.NetflixTitle
	if err := json.NewDecoder(r).Decode(&titles); err != nil {
		return nil, &domain.ParseError{File: name, Err: fmt.Errorf("decode netflix titles: %w", err)}
	}
	return titles, nil
}
