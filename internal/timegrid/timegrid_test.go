package timegrid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotConversions(t *testing.T) {
	day := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, SlotFloor(day))
	assert.Equal(t, 36, SlotFloor(day.Add(9*time.Hour)))
	assert.Equal(t, 36, SlotFloor(day.Add(9*time.Hour+14*time.Minute)))
	assert.Equal(t, 37, SlotCeil(day.Add(9*time.Hour+1*time.Minute)))
	assert.Equal(t, 68, SlotCeil(day.Add(17*time.Hour)))
	assert.Equal(t, 96, SlotCeil(day.Add(23*time.Hour+59*time.Minute)))

	assert.Equal(t, "07:00", SlotClock(28))
	assert.Equal(t, "20:45", SlotClock(83))
}

func TestParseClockRange(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantStart int
		wantEnd   int
		wantErr   bool
	}{
		{name: "whole hours", input: "09:00-17:00", wantStart: 36, wantEnd: 68},
		{name: "quarter rounding", input: "09:10-10:05", wantStart: 36, wantEnd: 41},
		{name: "until midnight", input: "20:00-24:00", wantStart: 80, wantEnd: 96},
		{name: "reversed", input: "17:00-09:00", wantErr: true},
		{name: "garbage", input: "nine to five", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ParseClockRange(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestNextMonday(t *testing.T) {
	// 2024-03-20 是周三
	wednesday := time.Date(2024, 3, 20, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), NextMonday(wednesday))

	// 今天是周一时返回下周一
	monday := time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), NextMonday(monday))

	sunday := time.Date(2024, 3, 24, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), NextMonday(sunday))
}

func TestAvailabilityFromEvents(t *testing.T) {
	events := []Event{
		{
			Start: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 18, 17, 0, 0, 0, time.UTC),
		},
		{
			Start: time.Date(2024, 3, 24, 22, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 25, 2, 0, 0, 0, time.UTC),
		},
	}

	week, err := AvailabilityFromEvents(events)
	require.NoError(t, err)
	require.Len(t, week, DaysPerWeek)

	monday := strings.Repeat("1", 36) + strings.Repeat("0", 32) + strings.Repeat("1", 28)
	assert.Equal(t, monday, week[0])
	assert.Equal(t, strings.Repeat("1", 88)+strings.Repeat("0", 8), week[6])
	for day := 1; day < 6; day++ {
		assert.Equal(t, strings.Repeat("1", SlotsPerDay), week[day])
	}
}

func TestAvailabilityFromEventsRejectsReversedEvent(t *testing.T) {
	_, err := AvailabilityFromEvents([]Event{{
		Start: time.Date(2024, 3, 18, 17, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
	}})
	assert.Error(t, err)
}

func TestEventsFromWeek(t *testing.T) {
	anchor := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)
	week := BusyWeek()
	for i := range week {
		week[i] = strings.Repeat("0", SlotsPerDay)
	}
	week[0] = strings.Repeat("0", 36) + strings.Repeat("1", 32) + strings.Repeat("0", 28)
	week[2] = strings.Repeat("0", 92) + strings.Repeat("1", 4)

	events := EventsFromWeek(anchor, week)
	require.Len(t, events, 2)

	assert.Equal(t, time.Date(2024, 3, 25, 9, 0, 0, 0, time.UTC), events[0].Start)
	assert.Equal(t, time.Date(2024, 3, 25, 17, 0, 0, 0, time.UTC), events[0].End)

	// 排到当天最后一个时间片时，结束时间为第二天零点
	assert.Equal(t, time.Date(2024, 3, 27, 23, 0, 0, 0, time.UTC), events[1].Start)
	assert.Equal(t, time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC), events[1].End)
}

func TestDayName(t *testing.T) {
	assert.Equal(t, "周一", DayName(0))
	assert.Equal(t, "周日", DayName(6))
	assert.Equal(t, "", DayName(7))
}
