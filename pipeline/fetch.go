package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"bibr/archive"
)

// Fetcher retrieves raw source content by location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FetcherFunc adapts function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, location string) ([]byte, error) {
	return f(ctx, location)
}

// maxSourceSize limits amount of data read from remote source.
const maxSourceSize = 64 << 20

type fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher returns Fetcher which understands http(s) URLs, "file://" URLs,
// plain paths and paths going through zip archive ("refs.zip/pubs.bib").
// Zero timeout means no timeout. There are no retries.
func NewFetcher(timeout time.Duration, userAgent string) Fetcher {
	return &fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (f *fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if u, err := url.Parse(location); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return f.get(ctx, location)
		case "file":
			location = u.Path
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if arc, inner, ok := archive.Split(location); ok {
		return archive.ReadFile(arc, inner)
	}
	return os.ReadFile(location)
}

func (f *fetcher) get(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	if len(f.userAgent) > 0 {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSourceSize))
}
