package fetch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/storage"
)

// ScrapeHeadings fetches an HTML page and returns the text of every element
// matching selector, trimmed and stripped of surrounding single quotes.
func (f *Fetcher) ScrapeHeadings(ctx context.Context, url, selector string) ([]string, error) {
	if selector == "" {
		selector = constants.HeadingsSelector
	}

	body, err := f.open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	headings, err := ParseHeadings(body, selector)
	if err != nil {
		return nil, &domain.ParseError{File: url, Err: err}
	}
	f.logger.Info("Scraped headings", "url", url, "count", len(headings))
	return headings, nil
}

// ParseHeadings extracts headings from an HTML document.
func ParseHeadings(r io.Reader, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var headings []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := strings.Trim(strings.TrimSpace(s.Text()), "'")
		if text != "" {
			headings = append(headings, text)
		}
	})
	return headings, nil
}

// WriteHeadingsCSV writes headings under a single "Title" column.
func WriteHeadingsCSV(path string, headings []string) error {
	return storage.WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"Title"}); err != nil {
			return err
		}
		for _, h := range headings {
			if err := cw.Write([]string{h}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
