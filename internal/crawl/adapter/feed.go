// Copyright (c) 2026 MangaTrack. All rights reserved.

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
)

const (
	defaultRequestBudget = 5 // req/s against one upstream
	maxListingBytes      = 4 << 20
	fetchTimeout         = 30 * time.Second
)

// FeedAdapter reads a JSON chapter feed:
//
//	GET {base}/series/{externalID}/chapters
//	→ {"chapters": [{"id", "number", "title", "url", "publishedAt"}]}
//
// Most aggregator sources expose this shape; per-site quirks live in the
// base URL and the registered name.
type FeedAdapter struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewFeedAdapter builds an adapter with its own request budget.
// requestsPerSecond ≤ 0 selects the default budget.
func NewFeedAdapter(name, baseURL string, requestsPerSecond float64) *FeedAdapter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestBudget
	}
	return &FeedAdapter{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: fetchTimeout,
			Transport: &throttledTransport{
				limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
				base:    http.DefaultTransport,
			},
		},
	}
}

// Name implements [Adapter].
func (feed *FeedAdapter) Name() string { return feed.name }

// ParseExternalID implements [ExternalIDParser]. Feed sources key series
// by the last path segment of the canonical page URL.
func (feed *FeedAdapter) ParseExternalID(sourceURL string) (string, error) {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return "", fmt.Errorf("adapter %s: parse source url: %w", feed.name, err)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return "", fmt.Errorf("adapter %s: source url %q carries no series id", feed.name, sourceURL)
	}
	return last, nil
}

// ListChapters implements [Adapter].
func (feed *FeedAdapter) ListChapters(ctx context.Context, source *series.SeriesSource) ([]Chapter, error) {
	endpoint := fmt.Sprintf("%s/series/%s/chapters", feed.baseURL, url.PathEscape(source.ExternalID))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: build request: %w", feed.name, err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", "mangatrack-sync/1.0")

	response, err := feed.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: fetch: %w", feed.name, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return nil, &UpstreamError{Source: feed.name, Status: response.StatusCode}
	}

	var listing struct {
		Chapters []struct {
			ID          string    `json:"id"`
			Number      float64   `json:"number"`
			Title       string    `json:"title"`
			URL         string    `json:"url"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"chapters"`
	}
	decoder := json.NewDecoder(io.LimitReader(response.Body, maxListingBytes))
	if err := decoder.Decode(&listing); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedListing, err)
	}

	chapters := make([]Chapter, 0, len(listing.Chapters))
	for _, entry := range listing.Chapters {
		// Listings carry junk rows (announcements, delisted uploads);
		// anything without an id or a positive number is not a chapter.
		if entry.ID == "" || entry.Number <= 0 {
			continue
		}
		chapters = append(chapters, Chapter{
			SourceChapterID: entry.ID,
			Number:          entry.Number,
			Title:           entry.Title,
			URL:             entry.URL,
			PublishedAt:     entry.PublishedAt,
		})
	}
	return chapters, nil
}

// throttledTransport blocks each request on the adapter's budget before it
// reaches the wire, so concurrency upstream of the client cannot exceed
// the per-source rate.
type throttledTransport struct {
	limiter *rate.Limiter
	base    http.RoundTripper
}

func (transport *throttledTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	if err := transport.limiter.Wait(request.Context()); err != nil {
		return nil, err
	}
	return transport.base.RoundTrip(request)
}
