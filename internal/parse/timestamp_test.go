package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)

	testCases := []struct {
		name      string
		raw       string
		expected  time.Time
		expectErr bool
	}{
		{
			name:     "Local wall time with seconds",
			raw:      "2024-06-01T10:00:00",
			expected: time.Date(2024, 6, 1, 10, 0, 0, 0, loc),
		},
		{
			name:     "Local wall time minutes only",
			raw:      "2024-06-01T09:05",
			expected: time.Date(2024, 6, 1, 9, 5, 0, 0, loc),
		},
		{
			name:     "Space separated",
			raw:      "2024-06-01 23:59:59",
			expected: time.Date(2024, 6, 1, 23, 59, 59, 0, loc),
		},
		{
			name:     "Date only is midnight",
			raw:      "2024-01-01",
			expected: time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
		},
		{
			name:     "UTC offset converted into zone",
			raw:      "2024-06-02T03:30:00Z",
			expected: time.Date(2024, 6, 1, 21, 30, 0, 0, loc),
		},
		{
			name:     "Explicit offset",
			raw:      "2024-06-01T10:00:00-06:00",
			expected: time.Date(2024, 6, 1, 10, 0, 0, 0, loc),
		},
		{
			name:     "Surrounding whitespace",
			raw:      "  2024-06-01T10:00  ",
			expected: time.Date(2024, 6, 1, 10, 0, 0, 0, loc),
		},
		{name: "Garbage", raw: "not-a-date", expectErr: true},
		{name: "Empty", raw: "", expectErr: true},
		{name: "Impossible date", raw: "2024-02-30T10:00:00", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Timestamp(tc.raw, loc)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
			assert.Equal(t, loc, got.Location())
		})
	}
}
