package vent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Command names on the wire.
const (
	cmdAirflowMode         = "af_mode"
	cmdUpdate              = "update"
	cmdCommissionStart     = "commission_start"
	cmdCommissionKeepAlive = "commission_ka"
	cmdCommissionStop      = "commission_stop"
)

// Commands builds and transmits control requests for one device, awaiting
// the correlated acknowledgement through the shared pending-request tracker.
type Commands struct {
	deviceID string
	tracker  *PendingRequestTracker
}

func NewCommands(deviceID string, tracker *PendingRequestTracker) *Commands {
	return &Commands{
		deviceID: deviceID,
		tracker:  tracker,
	}
}

// SendAirflowMode requests a manual airflow mode for the given duration.
func (c *Commands) SendAirflowMode(ctx context.Context, client Client, mode string, minutes int) (Message, error) {
	code, ok := AirflowModes[mode]
	if !ok {
		return nil, fmt.Errorf("unknown airflow mode %q", mode)
	}
	if !ValidDuration(minutes) {
		return nil, fmt.Errorf("invalid duration %v minutes", minutes)
	}

	return c.request(ctx, client, Message{
		KeyCommand: cmdAirflowMode,
		"as_af":    code,
		"ar_min":   minutes,
	})
}

// SendUpdate transmits a generic keyed update, e.g. schedule or summer
// bypass fields.
func (c *Commands) SendUpdate(ctx context.Context, client Client, fields map[string]any) (Message, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty update")
	}

	msg := Message{KeyCommand: cmdUpdate}
	for k, v := range fields {
		msg[k] = v
	}
	return c.request(ctx, client, msg)
}

// StartCommissioning begins a commissioning run at the given airflow level.
func (c *Commands) StartCommissioning(ctx context.Context, client Client, airflow string) (Message, error) {
	code, ok := AirflowModes[airflow]
	if !ok {
		return nil, fmt.Errorf("unknown commissioning airflow %q", airflow)
	}
	return c.request(ctx, client, Message{
		KeyCommand: cmdCommissionStart,
		"cm_af":    code,
	})
}

// CommissioningKeepAlive keeps an active commissioning run alive; the unit
// drops out of commissioning if these stop arriving.
func (c *Commands) CommissioningKeepAlive(ctx context.Context, client Client) (Message, error) {
	return c.request(ctx, client, Message{KeyCommand: cmdCommissionKeepAlive})
}

// StopCommissioning ends the commissioning run.
func (c *Commands) StopCommissioning(ctx context.Context, client Client) (Message, error) {
	return c.request(ctx, client, Message{KeyCommand: cmdCommissionStop})
}

// request stamps the message with a fresh id and the device identity, sends
// it, and waits for the correlated response within ctx.
func (c *Commands) request(ctx context.Context, client Client, msg Message) (Message, error) {
	id := uuid.NewString()
	msg[KeyID] = id
	msg[KeyDevice] = c.deviceID

	ch, cancel, err := c.tracker.Register(id)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if err := client.Send(msg); err != nil {
		return nil, fmt.Errorf("sending %v request: %w", msg[KeyCommand], err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("awaiting %v response: %w", msg[KeyCommand], ctx.Err())
	}
}
