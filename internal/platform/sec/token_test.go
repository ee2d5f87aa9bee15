// Copyright (c) 2026 MangaTrack. All rights reserved.

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/sec"
)

func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
	// 32 bytes of entropy encode to 43 URL-safe characters.
	assert.Len(t, first, 43)
}

func TestHashToken(t *testing.T) {
	token := "some-refresh-token"

	assert.Equal(t, sec.HashToken(token), sec.HashToken(token), "digest must be deterministic for lookups")
	assert.NotEqual(t, token, sec.HashToken(token))
	assert.NotEqual(t, sec.HashToken(token), sec.HashToken(token+"x"))
	// Hex-encoded SHA-256.
	assert.Len(t, sec.HashToken(token), 64)
}
