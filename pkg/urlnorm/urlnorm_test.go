// Copyright (c) 2026 MangaTrack. All rights reserved.

package urlnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/urlnorm"
)

/*
TestNormalize covers the canonical transformations applied to source URLs.
*/
func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase_host", "https://MangaDex.ORG/title/abc", "https://mangadex.org/title/abc"},
		{"strip_default_https_port", "https://mangadex.org:443/title/abc", "https://mangadex.org/title/abc"},
		{"strip_default_http_port", "http://example.com:80/x", "http://example.com/x"},
		{"keep_custom_port", "https://example.com:8443/x", "https://example.com:8443/x"},
		{"drop_fragment", "https://example.com/title/abc#chapter-3", "https://example.com/title/abc"},
		{"strip_utm", "https://example.com/t?utm_source=tw&utm_medium=s&id=9", "https://example.com/t?id=9"},
		{"strip_fbclid", "https://example.com/t?fbclid=xyz&id=9", "https://example.com/t?id=9"},
		{"sort_query", "https://example.com/t?b=2&a=1", "https://example.com/t?a=1&b=2"},
		{"trim_trailing_slash", "https://example.com/title/abc/", "https://example.com/title/abc"},
		{"root_path_kept", "https://example.com/", "https://example.com/"},
		{"whitespace_trimmed", "  https://example.com/x  ", "https://example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := urlnorm.Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

/*
TestNormalize_Idempotent verifies that normalizing an already-normalized URL
is a no-op.
*/
func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://MangaDex.ORG:443/title/abc/?utm_source=x&b=2&a=1#frag",
		"http://example.com:80/series/one-piece/",
		"https://example.com/t?z=26&a=1&m=13",
	}

	for _, in := range inputs {
		once, err := urlnorm.Normalize(in)
		require.NoError(t, err)

		twice, err := urlnorm.Normalize(once)
		require.NoError(t, err)

		assert.Equal(t, once, twice)
	}
}

/*
TestNormalize_Rejects covers inputs that cannot be canonicalized.
*/
func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace_only", "   "},
		{"no_scheme", "mangadex.org/title/abc"},
		{"ftp_scheme", "ftp://example.com/file"},
		{"javascript_scheme", "javascript:alert(1)"},
		{"scheme_only", "https://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := urlnorm.Normalize(tt.in)
			assert.Error(t, err)
		})
	}
}
