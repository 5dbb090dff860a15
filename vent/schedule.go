package vent

import (
	"fmt"
	"regexp"
	"strings"
)

// SilentHoursSlot is the schedule slot holding the silent hours window.
const SilentHoursSlot = "shrs"

// scheduleSlots are the schedule fields the unit reports.
var scheduleSlots = []string{"ts1", "ts2", "ts3", "ts4", SilentHoursSlot}

// ValidDays is the accepted day list for schedule updates, Monday first to
// match the device's bitmask ordering.
var ValidDays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// EveryDay selects all seven days.
const EveryDay = "Every day"

var timeRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Schedule is the decoded form of one schedule slot.
type Schedule struct {
	Name string   `json:"name"`
	From string   `json:"from"` // HH:MM
	To   string   `json:"to"`   // HH:MM
	Days []string `json:"days"`
	Mode string   `json:"mode"`
}

// Validate checks a schedule update the way the device would: times are
// HH:MM, days are known, the mode has a wire code.
func (s Schedule) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("schedule name is required")
	}
	if !timeRegex.MatchString(s.From) {
		return fmt.Errorf("invalid from time %q, want HH:MM", s.From)
	}
	if !timeRegex.MatchString(s.To) {
		return fmt.Errorf("invalid to time %q, want HH:MM", s.To)
	}
	if _, err := dayMask(s.Days); err != nil {
		return err
	}
	if _, ok := AirflowModes[s.Mode]; !ok {
		return fmt.Errorf("unknown schedule mode %q", s.Mode)
	}
	return nil
}

// EncodeScheduleField packs a schedule into the device's raw field:
// from/to as minutes-of-day (11 bits each), a Monday-first day bitmask
// (7 bits) and the mode code (3 bits).
func EncodeScheduleField(s Schedule) (uint32, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	from := minutesOfDay(s.From)
	to := minutesOfDay(s.To)
	days, _ := dayMask(s.Days)
	mode := AirflowModes[s.Mode]

	return uint32(from)<<21 | uint32(to)<<10 | uint32(days)<<3 | uint32(mode), nil
}

// DecodeScheduleField unpacks a raw schedule field.
func DecodeScheduleField(name string, raw uint32) Schedule {
	from := int(raw >> 21 & 0x7ff)
	to := int(raw >> 10 & 0x7ff)
	days := int(raw >> 3 & 0x7f)
	mode := int(raw & 0x7)

	return Schedule{
		Name: name,
		From: fmt.Sprintf("%02d:%02d", from/60, from%60),
		To:   fmt.Sprintf("%02d:%02d", to/60, to%60),
		Days: maskDays(days),
		Mode: ModeName(mode),
	}
}

func minutesOfDay(hhmm string) int {
	var h, m int
	fmt.Sscanf(hhmm, "%d:%d", &h, &m)
	return h*60 + m
}

func dayMask(days []string) (int, error) {
	if len(days) == 1 && days[0] == EveryDay {
		return 0x7f, nil
	}
	mask := 0
	for _, day := range days {
		idx := -1
		for i, known := range ValidDays {
			if known == day {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0, fmt.Errorf("unknown day %q", day)
		}
		mask |= 1 << idx
	}
	if mask == 0 {
		return 0, fmt.Errorf("at least one day is required")
	}
	return mask, nil
}

func maskDays(mask int) []string {
	if mask == 0x7f {
		return []string{EveryDay}
	}
	var days []string
	for i, day := range ValidDays {
		if mask&(1<<i) != 0 {
			days = append(days, day)
		}
	}
	return days
}
