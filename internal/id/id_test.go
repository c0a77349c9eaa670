package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMatchRef(t *testing.T) {
	assert.Equal(t, "M-2025-01-001", FormatMatchRef(2025, 1, 1))
	assert.Equal(t, "M-2025-12-123", FormatMatchRef(2025, 12, 123))
}

func TestParseMatchRef(t *testing.T) {
	year, month, seq, err := ParseMatchRef("M-2025-01-042")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 1, month)
	assert.Equal(t, 42, seq)
}

func TestParseMatchRef_Invalid(t *testing.T) {
	cases := []string{"", "M-", "2025-01-001", "M-2025-01", "M-abcd-01-001"}
	for _, c := range cases {
		_, _, _, err := ParseMatchRef(c)
		assert.Error(t, err, "ref %q", c)
	}
}

func TestRoundTrip(t *testing.T) {
	ref := FormatMatchRef(2024, 7, 9)
	year, month, seq, err := ParseMatchRef(ref)
	require.NoError(t, err)
	assert.Equal(t, ref, FormatMatchRef(year, month, seq))
}
