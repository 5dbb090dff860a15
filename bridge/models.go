package bridge

import "github.com/JosyBan/ventaxia-ha/vent"

type sensorConfiguration struct {
	name       string
	class      string
	unit       string
	icon       string
	stateClass string
	get        func(snap vent.Snapshot) interface{}
	stateTopic string
}

type buttonConfiguration struct {
	name  string
	icon  string
	press func(b *Bridge) error
}
