package days

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse("2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, Date("2025-01-01"), d)

	for _, bad := range []string{"", "2025-1-1", "2025-02-30", "01/01/2025", "tomorrow"} {
		_, err := Parse(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestDateAddDays(t *testing.T) {
	tests := []struct {
		name     string
		input    Date
		addDays  int
		expected Date
	}{
		{
			name:     "add within same month",
			input:    "2025-01-01",
			addDays:  2,
			expected: "2025-01-03",
		},
		{
			name:     "add crossing new year",
			input:    "2024-12-31",
			addDays:  1,
			expected: "2025-01-01",
		},
		{
			name:     "subtract across leap day",
			input:    "2024-03-01",
			addDays:  -1,
			expected: "2024-02-29",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.input.AddDays(tt.addDays))
		})
	}
}

func TestDateDaysUntil(t *testing.T) {
	assert.Equal(t, 0, Date("2025-01-01").DaysUntil("2025-01-01"))
	assert.Equal(t, 3, Date("2025-01-01").DaysUntil("2025-01-04"))
	assert.Equal(t, -2, Date("2025-01-04").DaysUntil("2025-01-02"))
	assert.Equal(t, 1, Date("2025-03-29").DaysUntil("2025-03-30"))
}

func TestDateCompare(t *testing.T) {
	assert.Equal(t, 0, Date("2025-01-01").Compare("2025-01-01"))
	assert.True(t, Date("2025-01-01").Before("2025-01-02"))
	assert.True(t, Date("2025-02-01").After("2025-01-31"))
}

func TestFromTimeUsesTimezone(t *testing.T) {
	t.Cleanup(func() { location = time.UTC })

	ts := time.Date(2025, 6, 30, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, Date("2025-06-30"), FromTime(ts))

	require.NoError(t, SetTimezone("Europe/Stockholm"))
	assert.Equal(t, Date("2025-07-01"), FromTime(ts))

	assert.Error(t, SetTimezone("Mars/Olympus_Mons"))
	assert.Equal(t, Date(""), FromTime(time.Time{}))
}
