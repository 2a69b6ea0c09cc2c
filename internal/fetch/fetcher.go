// Package fetch retrieves raw source datasets and stages them on disk
// unmodified.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/httpclient"
	"github.com/cesargomez89/flixetl/internal/storage"
)

type Fetcher struct {
	client *httpclient.Client
	logger *slog.Logger
}

func New(client *httpclient.Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger}
}

// open issues the GET and returns the body of a 2xx response.
func (f *Fetcher) open(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &domain.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	return resp.Body, nil
}

// Download streams url into dest. dest is replaced only after the whole body
// arrived.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (int64, error) {
	body, err := f.open(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var n int64
	err = storage.WriteAtomic(dest, func(w io.Writer) error {
		var copyErr error
		n, copyErr = io.Copy(w, body)
		if copyErr != nil {
			return &domain.FetchError{URL: url, Err: copyErr}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	f.logger.Info("Downloaded", "url", url, "dest", dest, "bytes", n)
	return n, nil
}

// DownloadJSON is Download for endpoints that must return a JSON document.
// The bytes are stored verbatim.
func (f *Fetcher) DownloadJSON(ctx context.Context, url, dest string) (int64, error) {
	body, err := f.open(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return 0, &domain.FetchError{URL: url, Err: err}
	}
	if !json.Valid(data) {
		return 0, &domain.ParseError{File: url, Err: errors.New("response is not valid JSON")}
	}

	err = storage.WriteAtomic(dest, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
	if err != nil {
		return 0, err
	}

	f.logger.Info("Downloaded JSON", "url", url, "dest", dest, "bytes", len(data))
	return int64(len(data)), nil
}

// DownloadGzip stages the compressed body next to dest, extracts it into dest
// and removes the archive. A failed extraction leaves no dest behind.
func (f *Fetcher) DownloadGzip(ctx context.Context, url, dest string) (int64, error) {
	archive := dest + constants.ExtGzip
	if _, err := f.Download(ctx, url, archive); err != nil {
		return 0, err
	}

	n, err := Gunzip(archive, dest)
	if err != nil {
		_ = storage.RemoveIfExists(archive)
		return 0, err
	}
	if err := storage.RemoveFile(archive); err != nil {
		f.logger.Warn("Failed to remove archive", "path", archive, "error", err)
	}

	f.logger.Info("Extracted", "archive", archive, "dest", dest, "bytes", n)
	return n, nil
}

// Gunzip decompresses src into dest atomically.
func Gunzip(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return 0, &domain.ParseError{File: src, Err: fmt.Errorf("invalid gzip stream: %w", err)}
	}
	defer zr.Close()

	var n int64
	err = storage.WriteAtomic(dest, func(w io.Writer) error {
		var copyErr error
		n, copyErr = io.Copy(w, zr)
		if copyErr != nil {
			return &domain.ParseError{File: src, Err: fmt.Errorf("extract: %w", copyErr)}
		}
		return nil
	})
	return n, err
}
