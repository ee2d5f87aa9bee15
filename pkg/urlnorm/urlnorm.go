// Copyright (c) 2026 MangaTrack. All rights reserved.

// Package urlnorm canonicalizes upstream source URLs.
//
// # Usage
//
// Two users pasting the same chapter page rarely paste the same bytes:
// tracking parameters, fragments, default ports, and trailing slashes all
// vary. Source URLs are normalized before storage so uniqueness constraints
// compare like with like. Normalize is idempotent: applying it to its own
// output returns the output unchanged.
package urlnorm

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query parameters stripped during normalization.
var trackingParams = map[string]bool{
	"ref":      true,
	"source":   true,
	"fbclid":   true,
	"gclid":    true,
	"mc_cid":   true,
	"mc_eid":   true,
	"igshid":   true,
	"_ga":      true,
	"referrer": true,
}

// Normalize canonicalizes raw into a stable form.
//
// # Transformation Pipeline
//
// 1. Lowercases the scheme and host.
// 2. Strips default ports (:80 for http, :443 for https).
// 3. Drops the fragment.
// 4. Removes tracking query parameters (utm_*, fbclid, gclid, ...).
// 5. Sorts surviving query parameters by key.
// 6. Trims a trailing slash from non-root paths.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("urlnorm: empty URL")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("urlnorm: unparsable URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("urlnorm: scheme %q is not supported", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("urlnorm: URL has no host")
	}

	// 1-2. Scheme and host casing, default ports
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	switch {
	case parsed.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case parsed.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	parsed.Host = host

	// 3. Fragment never reaches the server anyway
	parsed.Fragment = ""

	// 4-5. Query cleanup with deterministic ordering
	if parsed.RawQuery != "" {
		values := parsed.Query()
		keys := make([]string, 0, len(values))
		for key := range values {
			if trackingParams[key] || strings.HasPrefix(key, "utm_") {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var builder strings.Builder
		for _, key := range keys {
			for _, value := range values[key] {
				if builder.Len() > 0 {
					builder.WriteByte('&')
				}
				builder.WriteString(url.QueryEscape(key))
				builder.WriteByte('=')
				builder.WriteString(url.QueryEscape(value))
			}
		}
		parsed.RawQuery = builder.String()
	}

	// 6. Trailing slash
	if len(parsed.Path) > 1 {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}
