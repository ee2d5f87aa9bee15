// Copyright (c) 2026 MangaTrack. All rights reserved.

package sec

import (
	"net/url"
	"strings"
)

// SafeRedirect sanitizes a client-supplied redirect target.
//
// Only three shapes survive:
//   - path-absolute targets ("/library"), which stay same-origin
//   - absolute URLs whose host is the canonical host
//   - absolute URLs whose host is on the allow-list
//
// Everything else — protocol-relative ("//evil.example"), foreign hosts,
// javascript: and data: schemes, unparsable input — collapses to fallback.
func SafeRedirect(target string, canonical *url.URL, allowedHosts []string, fallback string) string {
	if target == "" {
		return fallback
	}

	// Path-absolute, but not protocol-relative. "//host/path" parses as a
	// host-carrying URL and must not be treated as a local path.
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return target
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return fallback
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fallback
	}
	if parsed.Host == "" {
		return fallback
	}

	if canonical != nil && strings.EqualFold(parsed.Host, canonical.Host) {
		return target
	}
	for _, host := range allowedHosts {
		if strings.EqualFold(parsed.Host, host) {
			return target
		}
	}
	return fallback
}
