package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBefore(t *testing.T) {
	now := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)

	got, err := parseBefore("2024-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local), got)

	got, err = parseBefore("2024-03-01T10:00:00Z", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)))

	got, err = parseBefore("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), got)

	for _, invalid := range []string{"", "yesterday", "-5h", "2024-13-01"} {
		_, err = parseBefore(invalid, now)
		assert.Error(t, err, invalid)
	}
}
