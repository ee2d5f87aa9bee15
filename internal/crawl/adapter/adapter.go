// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package adapter defines the upstream source contract.

An Adapter knows how to list the chapters a source currently offers for
one SeriesSource. Each adapter carries its own request budget so a burst
of sync jobs cannot exceed what the upstream tolerates.

Errors split into two classes. Transient errors (network, 5xx, 429,
timeouts) let the job retry with backoff. Permanent errors (other 4xx,
malformed listings) count toward breaking the source.
*/
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
)

// Chapter is one upstream chapter listing.
type Chapter struct {
	SourceChapterID string
	Number          float64
	Title           string
	URL             string
	PublishedAt     time.Time
}

// Adapter lists chapters for a bound source.
type Adapter interface {
	// Name matches SeriesSource.SourceName.
	Name() string

	// ListChapters fetches the source's current chapter listing. The
	// context carries the per-attempt deadline; implementations must
	// honor it and their own request budget.
	ListChapters(ctx context.Context, source *series.SeriesSource) ([]Chapter, error)
}

// ExternalIDParser is implemented by adapters that can extract the
// source-internal series id from a pasted page URL. Resolution falls back
// to "unavailable" for adapters that cannot.
type ExternalIDParser interface {
	ParseExternalID(sourceURL string) (string, error)
}

// # Error Classification

// Class is the retry class of an adapter error.
type Class int

const (
	// ClassTransient errors are worth retrying: the upstream may recover.
	ClassTransient Class = iota
	// ClassPermanent errors will not heal on retry and count toward
	// marking the source broken.
	ClassPermanent
)

// UpstreamError is an adapter failure with an HTTP status attached.
type UpstreamError struct {
	Source string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("adapter %s: status %d: %v", e.Source, e.Status, e.Err)
	}
	return fmt.Sprintf("adapter %s: status %d", e.Source, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ErrMalformedListing marks an upstream response that parsed but cannot be
// trusted. Permanent: the same payload will come back on retry.
var ErrMalformedListing = errors.New("adapter: malformed chapter listing")

/*
Classify buckets an adapter error.

Rate limiting (429) and request timeout (408) are transient despite being
4xx; other 4xx statuses are permanent. Network failures, 5xx and context
overruns are transient — canceled fetches retry unless the job's attempt
budget is spent.
*/
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch {
		case upstream.Status == 429 || upstream.Status == 408:
			return ClassTransient
		case upstream.Status >= 400 && upstream.Status < 500:
			return ClassPermanent
		default:
			return ClassTransient
		}
	}

	if errors.Is(err, ErrMalformedListing) {
		return ClassPermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTransient
	}
	return ClassTransient
}
