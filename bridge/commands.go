package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/JosyBan/ventaxia-ha/vent"
)

// airflowCommand is the payload for the set-airflow-mode service topic.
type airflowCommand struct {
	Mode     string `json:"mode"`
	Duration int    `json:"duration"`
}

// parseAirflowCommand validates a mode/set payload the way the original
// service schema does: known mode, duration from the allowed set.
func parseAirflowCommand(payload []byte) (airflowCommand, error) {
	var cmd airflowCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, fmt.Errorf("invalid airflow payload: %w", err)
	}
	if _, ok := vent.AirflowModes[cmd.Mode]; !ok {
		return cmd, fmt.Errorf("unknown airflow mode %q", cmd.Mode)
	}
	if !vent.ValidDuration(cmd.Duration) {
		return cmd, fmt.Errorf("invalid duration %v", cmd.Duration)
	}
	return cmd, nil
}

// scheduleCommand accepts days as either the "Every day" shorthand or an
// explicit day list, matching the original schema.
type scheduleCommand struct {
	Name string          `json:"name"`
	From string          `json:"from"`
	To   string          `json:"to"`
	Days json.RawMessage `json:"days"`
	Mode string          `json:"mode"`
}

func parseScheduleCommand(payload []byte) (vent.Schedule, error) {
	var cmd scheduleCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return vent.Schedule{}, fmt.Errorf("invalid schedule payload: %w", err)
	}

	var days []string
	var everyDay string
	if err := json.Unmarshal(cmd.Days, &everyDay); err == nil {
		if everyDay != vent.EveryDay {
			return vent.Schedule{}, fmt.Errorf("unknown day selector %q", everyDay)
		}
		days = []string{vent.EveryDay}
	} else if err := json.Unmarshal(cmd.Days, &days); err != nil {
		return vent.Schedule{}, fmt.Errorf("invalid days: %w", err)
	}

	schedule := vent.Schedule{
		Name: cmd.Name,
		From: cmd.From,
		To:   cmd.To,
		Days: days,
		Mode: cmd.Mode,
	}
	if err := schedule.Validate(); err != nil {
		return vent.Schedule{}, err
	}
	return schedule, nil
}

// bypassCommand is the payload for the summer bypass service topic. Optional
// fields are omitted from the device update when absent.
type bypassCommand struct {
	Mode        *string  `json:"mode"`
	AirflowMode *string  `json:"af_mode"`
	IndoorTemp  *float64 `json:"indoor_temp"`
	OutdoorTemp *float64 `json:"outdoor_temp"`
}

var bypassModes = map[string]int{
	"off":    0,
	"auto":   1,
	"manual": 2,
}

// parseBypassCommand turns a bypass/set payload into the keyed update fields
// for the device.
func parseBypassCommand(payload []byte) (map[string]any, error) {
	var cmd bypassCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("invalid bypass payload: %w", err)
	}

	fields := make(map[string]any)
	if cmd.Mode != nil {
		code, ok := bypassModes[*cmd.Mode]
		if !ok {
			return nil, fmt.Errorf("unknown bypass mode %q", *cmd.Mode)
		}
		fields["sbp_mode"] = code
	}
	if cmd.AirflowMode != nil {
		code, ok := vent.AirflowModes[*cmd.AirflowMode]
		if !ok {
			return nil, fmt.Errorf("unknown bypass airflow mode %q", *cmd.AirflowMode)
		}
		fields["sbp_af"] = code
	}
	if cmd.IndoorTemp != nil {
		fields["sbp_it"] = *cmd.IndoorTemp
	}
	if cmd.OutdoorTemp != nil {
		fields["sbp_ot"] = *cmd.OutdoorTemp
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("empty bypass update")
	}
	return fields, nil
}

// validScheduleSlot limits schedule updates to the slots the unit exposes.
func validScheduleSlot(name string) bool {
	switch name {
	case "ts1", "ts2", "ts3", "ts4", vent.SilentHoursSlot:
		return true
	}
	return false
}
