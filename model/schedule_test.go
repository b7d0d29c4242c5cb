package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"09:00", "09:00"},
		{"09:00:00", "09:00"},
		{"09:00:30", "09:00:30"},
		{"23:59:59", "23:59:59"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			clock, err := ParseClock(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, clock.Format())
		})
	}
}

func TestScheduleRecordRoundTrip(t *testing.T) {
	schedule, err := ScheduleForm{
		WorkStart:     "09:00:30",
		WorkEnd:       "17:45:10",
		LateThreshold: "15",
		Tolerance:     "0.6",
		Location:      "Main Office",
	}.Parse()
	require.NoError(t, err)

	record := schedule.Record()
	require.NotNil(t, record.WorkStart)
	assert.Equal(t, "09:00:30", *record.WorkStart)

	reloaded, err := ParseClock(*record.WorkStart)
	require.NoError(t, err)
	assert.Equal(t, schedule.WorkStart, reloaded)
	reloadedEnd, err := ParseClock(*record.WorkEnd)
	require.NoError(t, err)
	assert.Equal(t, schedule.WorkEnd, reloadedEnd)

	again, err := schedule.Form().Parse()
	require.NoError(t, err)
	assert.Equal(t, schedule, again)
}

func TestAddMinutes(t *testing.T) {
	nine := Clock(9 * 3600)
	tests := []struct {
		name     string
		clock    Clock
		minutes  int
		expected Clock
	}{
		{"обычный сдвиг", nine, 15, nine + 15*60},
		{"без сдвига", nine, 0, nine},
		{"за полночь", Clock(23*3600 + 50*60), 15, secondsInDay - 1},
		{"сутки", nine, 24 * 60, secondsInDay - 1},
		{"огромный порог", nine, math.MaxInt64 / 30, secondsInDay - 1},
		{"максимальный int", nine, math.MaxInt64, secondsInDay - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.clock.AddMinutes(tt.minutes))
		})
	}
}

func TestLateAfterHugeThreshold(t *testing.T) {
	schedule, err := ScheduleForm{
		WorkStart:     "09:00",
		LateThreshold: "153722867280912931",
		Tolerance:     "0.6",
	}.Parse()
	require.NoError(t, err)

	lateAfter := schedule.LateAfter()
	assert.Equal(t, Clock(secondsInDay-1), lateAfter)
	// Отметка в 08:00 при начале дня в 09:00 не опоздание
	assert.False(t, Clock(8*3600) > lateAfter)
}
