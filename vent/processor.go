package vent

import "errors"

// Processor turns decoded inbound messages into device state mutations and
// resolves pending request correlations. It owns the device model; the model
// is created once at construction and mutated in place for every message.
type Processor struct {
	tracker *PendingRequestTracker
	device  *Device
}

func NewProcessor(tracker *PendingRequestTracker) *Processor {
	return &Processor{
		tracker: tracker,
		device:  newDevice(),
	}
}

// Device returns the state model. Callers read snapshots; only Process
// mutates it.
func (p *Processor) Device() *Device {
	return p.device
}

// Process applies one inbound message: a matching pending request is
// resolved first, then the device model absorbs any state keys.
func (p *Processor) Process(msg Message) error {
	if msg == nil {
		return errors.New("nil message")
	}

	if id, ok := msg.String(KeyID); ok && id != "" {
		p.tracker.Resolve(id, msg)
	}

	p.device.apply(msg)
	return nil
}
