package order

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumber(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	n := GenerateNumber(now)
	require.True(t, strings.HasPrefix(n, "ORD"))

	// ORD + 13-digit millisecond timestamp + 3-digit suffix.
	require.Len(t, n, 3+13+3)

	ms, err := strconv.ParseInt(n[3:16], 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), ms)

	suffix, err := strconv.Atoi(n[16:])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, suffix, 0)
	assert.Less(t, suffix, 1000)
}

func TestGenerateNumberSuffixVaries(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{})
	for range 100 {
		seen[GenerateNumber(now)] = struct{}{}
	}
	// Same timestamp, random suffix: collisions are possible but 100 draws
	// from 1000 values should produce more than one distinct number.
	assert.Greater(t, len(seen), 1)
}
