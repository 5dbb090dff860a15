package bridge

import (
	"encoding/json"

	"github.com/JosyBan/ventaxia-ha/vent"
)

var sensorDefinitions = [...]*sensorConfiguration{
	{
		name:       "VentAxia Supply RPM",
		unit:       "rpm",
		icon:       "mdi:fan",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.SupplyRPM },
	},
	{
		name:       "VentAxia Exhaust RPM",
		unit:       "rpm",
		icon:       "mdi:fan",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.ExhaustRPM },
	},
	{
		name: "VentAxia Airflow Mode",
		icon: "mdi:air-filter",
		get:  func(snap vent.Snapshot) interface{} { return snap.AirflowMode },
	},
	{
		name: "VentAxia Airflow Active",
		icon: "mdi:fan-clock",
		get: func(snap vent.Snapshot) interface{} {
			if snap.RemainingSeconds > 0 {
				return "on"
			}
			return "off"
		},
	},
	{
		name:       "VentAxia Power",
		class:      "power",
		unit:       "W",
		icon:       "mdi:power",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.PowerW },
	},
	{
		name:       "VentAxia Indoor Temperature",
		class:      "temperature",
		unit:       "°C",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.IndoorTempC },
	},
	{
		name:       "VentAxia Outdoor Temperature",
		class:      "temperature",
		unit:       "°C",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.OutdoorTempC },
	},
	{
		name:       "VentAxia Supply Air Temperature",
		class:      "temperature",
		unit:       "°C",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.SupplyTempC },
	},
	{
		name:       "VentAxia Supply Airflow",
		unit:       "L/s",
		icon:       "mdi:weather-windy",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.SupplyAirflow },
	},
	{
		name:       "VentAxia Exhaust Airflow",
		unit:       "L/s",
		icon:       "mdi:weather-windy",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.ExhaustAirflow },
	},
	{
		name:       "VentAxia External Humidity",
		class:      "humidity",
		unit:       "%",
		icon:       "mdi:cloud-percent",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.ExternalRH },
	},
	{
		name:       "VentAxia Internal Humidity",
		class:      "humidity",
		unit:       "%",
		icon:       "mdi:cloud-percent",
		stateClass: "measurement",
		get:        func(snap vent.Snapshot) interface{} { return snap.InternalRH },
	},
	{
		name: "VentAxia Service Info",
		unit: "months",
		icon: "mdi:tools",
		get:  func(snap vent.Snapshot) interface{} { return snap.ServiceMonths },
	},
	{
		name: "VentAxia Filter Months Remaining",
		unit: "months",
		icon: "mdi:tools",
		get:  func(snap vent.Snapshot) interface{} { return snap.FilterMonths },
	},
	{
		name: "VentAxia Schedules",
		icon: "mdi:calendar-clock",
		get: func(snap vent.Snapshot) interface{} {
			encoded, _ := json.Marshal(snap.Schedules)
			return string(encoded)
		},
	},
	{
		name: "VentAxia Silent Hours",
		icon: "mdi:weather-night",
		get: func(snap vent.Snapshot) interface{} {
			encoded, _ := json.Marshal(snap.SilentHours)
			return string(encoded)
		},
	},
	{
		name: "VentAxia Summer Bypass Mode",
		icon: "mdi:weather-sunny",
		get:  func(snap vent.Snapshot) interface{} { return snap.SummerBypass },
	},
	{
		name: "VentAxia Summer Bypass Airflow Mode",
		icon: "mdi:fan",
		get:  func(snap vent.Snapshot) interface{} { return snap.SummerBypassAf },
	},
	{
		name: "VentAxia Summer Bypass Indoor Temp",
		unit: "°C",
		icon: "mdi:thermometer",
		get:  func(snap vent.Snapshot) interface{} { return snap.SummerBypassInC },
	},
	{
		name: "VentAxia Summer Bypass Outdoor Temp",
		unit: "°C",
		icon: "mdi:thermometer",
		get:  func(snap vent.Snapshot) interface{} { return snap.SummerBypassOutC },
	},
}
