package vent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
	}{
		{
			name: "weekday mornings",
			schedule: Schedule{
				Name: "ts1",
				From: "07:30",
				To:   "09:00",
				Days: []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
				Mode: ModeBoost,
			},
		},
		{
			name: "every day",
			schedule: Schedule{
				Name: "ts2",
				From: "00:00",
				To:   "23:59",
				Days: []string{EveryDay},
				Mode: ModeNormal,
			},
		},
		{
			name: "weekend purge",
			schedule: Schedule{
				Name: "ts3",
				From: "12:15",
				To:   "12:45",
				Days: []string{"Saturday", "Sunday"},
				Mode: ModePurge,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeScheduleField(tt.schedule)
			require.NoError(t, err)
			assert.Equal(t, tt.schedule, DecodeScheduleField(tt.schedule.Name, raw))
		})
	}
}

func TestScheduleValidate(t *testing.T) {
	valid := Schedule{
		Name: "ts1",
		From: "07:00",
		To:   "09:00",
		Days: []string{"Monday"},
		Mode: ModeBoost,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Schedule)
	}{
		{"empty name", func(s *Schedule) { s.Name = "  " }},
		{"bad from time", func(s *Schedule) { s.From = "25:00" }},
		{"bad to time", func(s *Schedule) { s.To = "9:0" }},
		{"unknown day", func(s *Schedule) { s.Days = []string{"Funday"} }},
		{"no days", func(s *Schedule) { s.Days = nil }},
		{"unknown mode", func(s *Schedule) { s.Mode = "turbo" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestScheduleEveryDayEqualsFullMask(t *testing.T) {
	every := Schedule{
		Name: "ts1",
		From: "08:00",
		To:   "10:00",
		Days: []string{EveryDay},
		Mode: ModeNormal,
	}
	listed := every
	listed.Days = append([]string{}, ValidDays...)

	rawEvery, err := EncodeScheduleField(every)
	require.NoError(t, err)
	rawListed, err := EncodeScheduleField(listed)
	require.NoError(t, err)

	assert.Equal(t, rawEvery, rawListed)
	assert.Equal(t, []string{EveryDay}, DecodeScheduleField("ts1", rawListed).Days)
}

func TestEncodeScheduleFieldRejectsInvalid(t *testing.T) {
	_, err := EncodeScheduleField(Schedule{
		Name: "ts1",
		From: "nope",
		To:   "09:00",
		Days: []string{"Monday"},
		Mode: ModeBoost,
	})
	assert.Error(t, err)
}
