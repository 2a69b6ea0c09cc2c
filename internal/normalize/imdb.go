package normalize

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
)

// IMDbColumns is the header of the cleaned IMDb titles artifact.
var IMDbColumns = []string{
	"tconst", "titleType", "primaryTitle", "startYear",
	"runtimeMinutes", "genres", "primaryTitle_cleaned", "averageRating",
}

var excludedTitleTypes = map[string]bool{
	"short":        true,
	"videoGame":    true,
	"tvEpisode":    true,
	"tvMiniSeries": true,
	"tvSpecial":    true,
	"tvShort":      true,
	"tvMovie":      true,
	"video":        true,
}

// IMDbStats counts what CleanIMDb did with each input row.
type IMDbStats struct {
	Read           int `json:"read"`
	DroppedType    int `json:"dropped_type"`
	DroppedGenre   int `json:"dropped_genre"`
	DroppedYear    int `json:"dropped_year"`
	DroppedRating  int `json:"dropped_rating"`
	Written        int `json:"written"`
	RatingsIndexed int `json:"ratings_indexed"`
}

// tsvReader walks a tab-separated dump line by line. IMDb fields contain bare
// quotes, so encoding/csv cannot read them.
type tsvReader struct {
	name   string
	r      *bufio.Reader
	line   int
	header map[string]int
	width  int
}

func newTSVReader(name string, r io.Reader) (*tsvReader, error) {
	t := &tsvReader{name: name, r: bufio.NewReaderSize(r, 1<<20)}
	fields, err := t.next()
	if err == io.EOF {
		return nil, &domain.ParseError{File: name, Err: errors.New("empty file")}
	}
	if err != nil {
		return nil, err
	}
	t.header = make(map[string]int, len(fields))
	for i, f := range fields {
		t.header[f] = i
	}
	t.width = len(fields)
	return t, nil
}

func (t *tsvReader) column(name string) (int, error) {
	i, ok := t.header[name]
	if !ok {
		return 0, &domain.ParseError{File: t.name, Line: 1, Err: fmt.Errorf("missing column %q", name)}
	}
	return i, nil
}

func (t *tsvReader) next() ([]string, error) {
	for {
		line, err := t.r.ReadString('\n')
		if line == "" && err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &domain.ParseError{File: t.name, Line: t.line + 1, Err: err}
		}
		t.line++
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}
		fields := strings.Split(line, "\t")
		if t.width > 0 && len(fields) < t.width {
			return nil, &domain.ParseError{
				File: t.name,
				Line: t.line,
				Err:  fmt.Errorf("expected %d fields, got %d", t.width, len(fields)),
			}
		}
		return fields, nil
	}
}

// readRatings indexes averageRating by tconst.
func readRatings(r io.Reader) (map[string]string, error) {
	t, err := newTSVReader("ratings", r)
	if err != nil {
		return nil, err
	}
	idCol, err := t.column("tconst")
	if err != nil {
		return nil, err
	}
	ratingCol, err := t.column("averageRating")
	if err != nil {
		return nil, err
	}

	ratings := make(map[string]string)
	for {
		fields, err := t.next()
		if err == io.EOF {
			return ratings, nil
		}
		if err != nil {
			return nil, err
		}
		ratings[fields[idCol]] = fields[ratingCol]
	}
}

// CleanIMDb filters and enriches the IMDb titles dump and writes the cleaned
// CSV artifact. Rows are kept when their type is not excluded, their genres
// name no excluded genre, their start year is at least 1980 and a numeric
// rating exists for their tconst.
func CleanIMDb(titles, ratings io.Reader, w io.Writer, vocab *Vocabulary) (IMDbStats, error) {
	var stats IMDbStats
	if vocab == nil {
		vocab = DefaultVocabulary()
	}

	index, err := readRatings(ratings)
	if err != nil {
		return stats, err
	}
	stats.RatingsIndexed = len(index)

	t, err := newTSVReader("titles", titles)
	if err != nil {
		return stats, err
	}
	cols := make(map[string]int)
	for _, name := range []string{"tconst", "titleType", "primaryTitle", "startYear", "runtimeMinutes", "genres"} {
		i, err := t.column(name)
		if err != nil {
			return stats, err
		}
		cols[name] = i
	}

	out := NewIMDbWriter(w)
	for {
		fields, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, err
		}
		stats.Read++

		titleType := fields[cols["titleType"]]
		if excludedTitleTypes[titleType] {
			stats.DroppedType++
			continue
		}

		genres := fields[cols["genres"]]
		if ExcludedGenre(genres) {
			stats.DroppedGenre++
			continue
		}

		year, err := strconv.Atoi(strings.TrimSpace(fields[cols["startYear"]]))
		if err != nil || year < constants.MinReleaseYear {
			stats.DroppedYear++
			continue
		}

		tconst := fields[cols["tconst"]]
		rating := ParseNullFloat(index[tconst])
		if rating == nil {
			stats.DroppedRating++
			continue
		}

		title := strings.TrimSpace(fields[cols["primaryTitle"]])
		row := domain.IMDbTitle{
			TConst:         tconst,
			TitleType:      titleType,
			PrimaryTitle:   title,
			StartYear:      strconv.Itoa(year),
			RuntimeMinutes: FormatNullInt(ParseNullInt(fields[cols["runtimeMinutes"]])),
			Genres:         vocab.CategorizeJoined(genres),
			TitleKey:       TitleKey(title),
			AverageRating:  FormatNullFloat(rating),
		}
		if err := out.Write(row); err != nil {
			return stats, err
		}
		stats.Written++
	}

	if err := out.Flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// IMDbWriter encodes cleaned IMDb rows as CSV, header first.
type IMDbWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

func NewIMDbWriter(w io.Writer) *IMDbWriter {
	return &IMDbWriter{w: csv.NewWriter(w)}
}

func (iw *IMDbWriter) Write(row domain.IMDbTitle) error {
	if !iw.wroteHeader {
		if err := iw.w.Write(IMDbColumns); err != nil {
			return err
		}
		iw.wroteHeader = true
	}
	return iw.w.Write([]string{
		row.TConst, row.TitleType, row.PrimaryTitle, row.StartYear,
		row.RuntimeMinutes, row.Genres, row.TitleKey, row.AverageRating,
	})
}

// Flush writes the header if nothing was written and flushes buffered rows.
func (iw *IMDbWriter) Flush() error {
	if !iw.wroteHeader {
		if err := iw.w.Write(IMDbColumns); err != nil {
			return err
		}
		iw.wroteHeader = true
	}
	iw.w.Flush()
	return iw.w.Error()
}

// IMDbReader streams the cleaned IMDb artifact in batches.
type IMDbReader struct {
	name string
	r    *csv.Reader
	cols [8]int
}

func NewIMDbReader(name string, r io.Reader) (*IMDbReader, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &domain.ParseError{File: name, Err: errors.New("empty file")}
	}
	if err != nil {
		return nil, &domain.ParseError{File: name, Line: 1, Err: err}
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	ir := &IMDbReader{name: name, r: cr}
	for i, col := range IMDbColumns {
		p, ok := pos[col]
		if !ok {
			return nil, &domain.ParseError{File: name, Line: 1, Err: fmt.Errorf("missing column %q", col)}
		}
		ir.cols[i] = p
	}
	return ir, nil
}

// Next returns up to n rows. It returns io.EOF once the artifact is exhausted
// and no rows remain.
func (ir *IMDbReader) Next(n int) ([]domain.IMDbTitle, error) {
	if n <= 0 {
		n = constants.DefaultBatchSize
	}
	batch := make([]domain.IMDbTitle, 0, n)
	for len(batch) < n {
		rec, err := ir.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{File: ir.name, Err: err}
		}
		c := ir.cols
		batch = append(batch, domain.IMDbTitle{
			TConst:         rec[c[0]],
			TitleType:      rec[c[1]],
			PrimaryTitle:   rec[c[2]],
			StartYear:      rec[c[3]],
			RuntimeMinutes: rec[c[4]],
			Genres:         rec[c[5]],
			TitleKey:       rec[c[6]],
			AverageRating:  rec[c[7]],
		})
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// ReadAllIMDb loads the whole cleaned artifact.
func ReadAllIMDb(name string, r io.Reader) ([]domain.IMDbTitle, error) {
	ir, err := NewIMDbReader(name, r)
	if err != nil {
		return nil, err
	}
	var all []domain.IMDbTitle
	for {
		batch, err := ir.Next(constants.DefaultBatchSize)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}
}
