package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	created := time.Date(2025, 3, 1, 23, 30, 0, 0, loc)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"same day", time.Date(2025, 3, 1, 23, 59, 0, 0, loc), 0},
		{"next morning", time.Date(2025, 3, 2, 0, 5, 0, 0, loc), 1},
		{"two weeks", time.Date(2025, 3, 15, 7, 0, 0, 0, loc), 14},
		{"across month", time.Date(2025, 4, 1, 7, 0, 0, 0, loc), 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(created, tt.now))
		})
	}
}

func TestClockRoundTrip(t *testing.T) {
	m, err := ParseClock("13:45")
	require.NoError(t, err)
	assert.Equal(t, 13*60+45, m)
	assert.Equal(t, "13:45", FormatClock(m))
	assert.Equal(t, "00:30", FormatClock(24*60+30))

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestDateString(t *testing.T) {
	assert.Equal(t, "2025-12-01", DateString(time.Date(2025, 12, 1, 22, 0, 0, 0, time.UTC)))
}
