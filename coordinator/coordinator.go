// Package coordinator owns the single connection to a VentAxia unit: it
// pumps decoded messages into the device model, fans updates out to
// subscribers, and supervises reconnection when the link drops.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JosyBan/ventaxia-ha/metrics"
	"github.com/JosyBan/ventaxia-ha/vent"
)

// ErrNotConnected is returned by command wrappers while the link is down.
var ErrNotConnected = errors.New("coordinator: not connected")

const (
	maxReconnectAttempts = 5

	defaultReconnectDelay    = 10 * time.Second
	defaultConnectTimeout    = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
)

// DeviceInfo identifies the bridged unit.
type DeviceInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
}

type callbackEntry struct {
	id uint64
	fn func()
}

// Coordinator holds exactly one connection to exactly one device. At most
// one receive loop runs at a time; connected is true only while the session
// is open and the loop has not exited.
type Coordinator struct {
	log      *zap.SugaredLogger
	client   vent.Client
	deviceID string

	tracker   *vent.PendingRequestTracker
	processor *vent.Processor
	commands  *vent.Commands
	device    *vent.Device

	runCtx    context.Context
	runCancel context.CancelFunc

	// Overridable before Start, primarily from tests.
	reconnectDelay    time.Duration
	connectTimeout    time.Duration
	keepAliveInterval time.Duration

	mu                 sync.Mutex
	connected          bool
	stopped            bool
	callbacks          []callbackEntry
	nextCallbackID     uint64
	connectionListener func(connected bool)
	loopDone           chan struct{}

	commissionMode   string
	commissionCancel context.CancelFunc
	commissionDone   chan struct{}
}

// New wires the message processor, pending-request tracker and command
// builder around the given client. The tracker is shared between the
// command path and the processor to correlate requests with responses.
func New(log *zap.SugaredLogger, client vent.Client, deviceID string) *Coordinator {
	tracker := vent.NewPendingRequestTracker()
	processor := vent.NewProcessor(tracker)
	runCtx, runCancel := context.WithCancel(context.Background())

	return &Coordinator{
		log:               log,
		client:            client,
		deviceID:          deviceID,
		tracker:           tracker,
		processor:         processor,
		commands:          vent.NewCommands(deviceID, tracker),
		device:            processor.Device(),
		runCtx:            runCtx,
		runCancel:         runCancel,
		reconnectDelay:    defaultReconnectDelay,
		connectTimeout:    defaultConnectTimeout,
		keepAliveInterval: defaultKeepAliveInterval,
		commissionMode:    vent.ModeNormal,
	}
}

// Device returns the state model for snapshot reads.
func (c *Coordinator) Device() *vent.Device {
	return c.device
}

// DeviceInfo returns identity for entity registration.
func (c *Coordinator) DeviceInfo() DeviceInfo {
	name := c.device.Name()
	if name == "" {
		name = "VentAxia Device"
	}
	return DeviceInfo{
		ID:           c.deviceID,
		Name:         name,
		Manufacturer: "VentAxia",
	}
}

// Available reports whether the device session is up.
func (c *Coordinator) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Start opens the session and spawns the receive loop. A failed first
// connect propagates; there is no retry here, the caller decides whether
// setup should be reattempted.
func (c *Coordinator) Start(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	if err := c.client.Connect(cctx); err != nil {
		return fmt.Errorf("connecting to device: %w", err)
	}

	c.setConnected(true)
	c.spawnReceiveLoop()
	return nil
}

// Stop cancels the receive loop and waits for it to unwind. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	done := c.loopDone
	commissionDone := c.commissionDone
	c.mu.Unlock()

	c.runCancel()
	if done != nil {
		<-done
	}
	if commissionDone != nil {
		<-commissionDone
	}
	c.setConnected(false)
}

// spawnReceiveLoop starts the single background loop. Callers guarantee the
// previous loop (if any) has already exited.
func (c *Coordinator) spawnReceiveLoop() {
	ctx, cancel := context.WithCancel(c.runCtx)
	done := make(chan struct{})

	c.mu.Lock()
	c.loopDone = done
	c.mu.Unlock()

	go func() {
		defer cancel()
		c.receiveLoop(ctx, done)
	}()
}

// receiveLoop pumps decoded messages into the processor and notifies
// subscribers, strictly in arrival order. Whatever makes the loop exit, the
// session is released exactly once before the goroutine finishes.
func (c *Coordinator) receiveLoop(ctx context.Context, done chan struct{}) {
	var lost error
	defer func() {
		if err := c.client.Close(); err != nil {
			c.log.Debugw("closing client on loop exit", "error", err)
		}
		close(done)
		if lost != nil {
			go c.handleDisconnect(lost)
		}
	}()

	for {
		msg, err := c.client.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, vent.ErrClosed) {
				c.log.Debug("receive loop cancelled")
				return
			}
			c.setConnected(false)
			lost = err
			return
		}

		if err := c.processor.Process(msg); err != nil {
			c.log.Warnw("dropping malformed message", "error", err)
			continue
		}
		metrics.MessageReceived()
		c.notifyUpdate()
	}
}

// handleDisconnect runs after an unexpected link loss: it cleans the session
// up (skipping a redundant close), then makes up to five reconnect attempts
// with a fixed delay between failures. Exhaustion leaves the coordinator
// disconnected until the process is restarted.
func (c *Coordinator) handleDisconnect(cause error) {
	c.log.Warnw("connection lost, attempting to reconnect", "error", cause)

	if !c.client.Closing() {
		if err := c.client.Close(); err != nil {
			c.log.Debugw("cleanup close failed", "error", err)
		}
	} else {
		c.log.Debug("client already closing, skipping second close")
	}

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		if c.runCtx.Err() != nil {
			return
		}

		metrics.ReconnectAttempt()
		cctx, cancel := context.WithTimeout(c.runCtx, c.connectTimeout)
		err := c.client.Connect(cctx)
		cancel()

		if err == nil {
			c.setConnected(true)
			c.spawnReceiveLoop()
			c.log.Info("reconnected to device")
			return
		}

		c.log.Warnw("reconnect attempt failed", "attempt", attempt, "error", err)
		select {
		case <-c.runCtx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}

	c.log.Error("failed to reconnect after repeated attempts; restart required")
}

func (c *Coordinator) setConnected(up bool) {
	c.mu.Lock()
	changed := c.connected != up
	c.connected = up
	listener := c.connectionListener
	c.mu.Unlock()

	metrics.SetConnected(up)
	if changed && listener != nil {
		listener(up)
	}
}

// SetConnectionListener registers a handler for connectivity transitions.
// Update callbacks fire only for processed messages, so availability gets
// its own notification path.
func (c *Coordinator) SetConnectionListener(fn func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectionListener = fn
}

// AddUpdateCallback registers a handler invoked synchronously after every
// processed message. Handlers must not block; they are expected to mark
// entities dirty, not issue further I/O. The returned func removes the
// registration and is safe to call more than once.
func (c *Coordinator) AddUpdateCallback(fn func()) func() {
	c.mu.Lock()
	id := c.nextCallbackID
	c.nextCallbackID++
	c.callbacks = append(c.callbacks, callbackEntry{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, entry := range c.callbacks {
			if entry.id == id {
				c.callbacks = append(c.callbacks[:i], c.callbacks[i+1:]...)
				return
			}
		}
	}
}

func (c *Coordinator) notifyUpdate() {
	c.mu.Lock()
	entries := make([]callbackEntry, len(c.callbacks))
	copy(entries, c.callbacks)
	c.mu.Unlock()

	for _, entry := range entries {
		entry.fn()
	}
}

// SendAirflowMode requests a manual airflow mode for the given duration.
func (c *Coordinator) SendAirflowMode(ctx context.Context, mode string, minutes int) error {
	if !c.Available() {
		return ErrNotConnected
	}
	if _, err := c.commands.SendAirflowMode(ctx, c.client, mode, minutes); err != nil {
		return err
	}
	metrics.CommandSent("airflow_mode")
	return nil
}

// SendUpdate transmits a generic keyed update.
func (c *Coordinator) SendUpdate(ctx context.Context, fields map[string]any) error {
	if !c.Available() {
		return ErrNotConnected
	}
	if _, err := c.commands.SendUpdate(ctx, c.client, fields); err != nil {
		return err
	}
	metrics.CommandSent("update")
	return nil
}

// CommissionMode returns the airflow level selected for commissioning.
func (c *Coordinator) CommissionMode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commissionMode
}

// SetCommissionMode selects the airflow level for the next commissioning run.
func (c *Coordinator) SetCommissionMode(mode string) error {
	if mode != vent.ModeNormal && mode != vent.ModeBoost {
		return fmt.Errorf("invalid commissioning mode %q", mode)
	}
	c.mu.Lock()
	c.commissionMode = mode
	c.mu.Unlock()
	return nil
}

// StartCommissioning begins a commissioning run at the given airflow level
// and keeps it alive in the background until StopCommissioning. Starting
// while a run is active is a no-op.
func (c *Coordinator) StartCommissioning(ctx context.Context, airflow string) error {
	if !c.Available() {
		return ErrNotConnected
	}

	c.mu.Lock()
	if c.commissionCancel != nil {
		c.mu.Unlock()
		return nil
	}
	kaCtx, cancel := context.WithCancel(c.runCtx)
	done := make(chan struct{})
	c.commissionCancel = cancel
	c.commissionDone = done
	c.mu.Unlock()

	if _, err := c.commands.StartCommissioning(ctx, c.client, airflow); err != nil {
		cancel()
		c.mu.Lock()
		c.commissionCancel = nil
		c.commissionDone = nil
		c.mu.Unlock()
		close(done)
		return err
	}
	metrics.CommandSent("commission_start")

	go c.commissionKeepAlive(kaCtx, done)
	return nil
}

// StopCommissioning ends the keep-alive task and tells the unit to leave
// commissioning. No-op if no run is active.
func (c *Coordinator) StopCommissioning(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.commissionCancel
	done := c.commissionDone
	c.commissionCancel = nil
	c.commissionDone = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	if !c.Available() {
		return ErrNotConnected
	}
	if _, err := c.commands.StopCommissioning(ctx, c.client); err != nil {
		return err
	}
	metrics.CommandSent("commission_stop")
	return nil
}

func (c *Coordinator) commissionKeepAlive(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !c.Available() {
			continue
		}
		if _, err := c.commands.CommissioningKeepAlive(ctx, c.client); err != nil {
			c.log.Warnw("commissioning keep-alive failed", "error", err)
		}
	}
}
