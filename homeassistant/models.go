package homeassistant

// Device groups all bridged entities under one device in the HA registry.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
}

type sensorConfiguration struct {
	UniqueId          string `json:"unique_id"`
	Name              string `json:"name"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateTopic        string `json:"state_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	Icon              string `json:"icon,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	AvailabilityTopic string `json:"availability_topic"`
	Device            Device `json:"device"`
}

type selectConfiguration struct {
	UniqueId          string   `json:"unique_id"`
	Name              string   `json:"name"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic"`
	Options           []string `json:"options"`
	Icon              string   `json:"icon,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	Device            Device   `json:"device"`
}

type buttonConfiguration struct {
	UniqueId          string `json:"unique_id"`
	Name              string `json:"name"`
	CommandTopic      string `json:"command_topic"`
	Icon              string `json:"icon,omitempty"`
	AvailabilityTopic string `json:"availability_topic"`
	Device            Device `json:"device"`
}
