// Copyright (c) 2026 MangaTrack. All rights reserved.

package adapter_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/adapter"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want adapter.Class
	}{
		{"nil", nil, adapter.ClassTransient},
		{"rate limited", &adapter.UpstreamError{Source: "alpha", Status: 429}, adapter.ClassTransient},
		{"request timeout", &adapter.UpstreamError{Source: "alpha", Status: 408}, adapter.ClassTransient},
		{"server error", &adapter.UpstreamError{Source: "alpha", Status: 503}, adapter.ClassTransient},
		{"not found", &adapter.UpstreamError{Source: "alpha", Status: 404}, adapter.ClassPermanent},
		{"gone", &adapter.UpstreamError{Source: "alpha", Status: 410}, adapter.ClassPermanent},
		{"forbidden", &adapter.UpstreamError{Source: "alpha", Status: 403}, adapter.ClassPermanent},
		{"malformed listing", adapter.ErrMalformedListing, adapter.ClassPermanent},
		{"wrapped malformed", errors.Join(errors.New("decode"), adapter.ErrMalformedListing), adapter.ClassPermanent},
		{"context deadline", context.DeadlineExceeded, adapter.ClassTransient},
		{"network", &net.DNSError{Err: "no such host", Name: "alpha.example"}, adapter.ClassTransient},
		{"unknown", errors.New("boom"), adapter.ClassTransient},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.want, adapter.Classify(testCase.err))
		})
	}
}

func TestUpstreamError_Message(t *testing.T) {
	err := &adapter.UpstreamError{Source: "alpha", Status: 502}
	assert.Contains(t, err.Error(), "alpha")
	assert.Contains(t, err.Error(), "502")

	wrapped := &adapter.UpstreamError{Source: "alpha", Err: errors.New("connection reset")}
	assert.Contains(t, wrapped.Error(), "connection reset")
	assert.Equal(t, "connection reset", wrapped.Unwrap().Error())
}

func TestRegistry(t *testing.T) {
	alpha := adapter.NewFeedAdapter("AlphaScans", "https://alpha.example", 0)
	beta := adapter.NewFeedAdapter("beta", "https://beta.example", 0)
	registry := adapter.NewRegistry(alpha, beta)

	found, err := registry.Get("alphascans")
	require.NoError(t, err)
	assert.Equal(t, "AlphaScans", found.Name())

	_, err = registry.Get("gamma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gamma")

	assert.ElementsMatch(t, []string{"AlphaScans", "beta"}, registry.Names())
}

func TestFeedAdapter_ListChapters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		require.Equal(t, "/series/ext-42/chapters", request.URL.Path)
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"chapters": [
			{"id": "c-10", "number": 10, "title": "Ten", "url": "https://alpha.example/c/10", "publishedAt": "2026-01-02T03:04:05Z"},
			{"id": "c-105", "number": 10.5, "title": "Extra", "url": "https://alpha.example/c/10.5"},
			{"id": "", "number": 11, "title": "junk row"},
			{"id": "c-0", "number": 0, "title": "announcement"}
		]}`))
	}))
	defer server.Close()

	feed := adapter.NewFeedAdapter("alpha", server.URL, 0)
	chapters, err := feed.ListChapters(context.Background(), &series.SeriesSource{ExternalID: "ext-42"})
	require.NoError(t, err)
	require.Len(t, chapters, 2)

	assert.Equal(t, "c-10", chapters[0].SourceChapterID)
	assert.Equal(t, 10.0, chapters[0].Number)
	assert.Equal(t, "Ten", chapters[0].Title)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), chapters[0].PublishedAt)
	assert.Equal(t, 10.5, chapters[1].Number)
	assert.True(t, chapters[1].PublishedAt.IsZero())
}

func TestFeedAdapter_UpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	feed := adapter.NewFeedAdapter("alpha", server.URL, 0)
	_, err := feed.ListChapters(context.Background(), &series.SeriesSource{ExternalID: "ext-42"})

	var upstream *adapter.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
	assert.Equal(t, adapter.ClassTransient, adapter.Classify(err))
}

func TestFeedAdapter_MalformedListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = writer.Write([]byte(`<html>definitely not json</html>`))
	}))
	defer server.Close()

	feed := adapter.NewFeedAdapter("alpha", server.URL, 0)
	_, err := feed.ListChapters(context.Background(), &series.SeriesSource{ExternalID: "ext-42"})

	require.ErrorIs(t, err, adapter.ErrMalformedListing)
	assert.Equal(t, adapter.ClassPermanent, adapter.Classify(err))
}
