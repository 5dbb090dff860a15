package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JosyBan/ventaxia-ha/vent"
)

// fakeClient scripts connect results, delivers messages and injected link
// failures, and auto-acknowledges requests so the full correlation path is
// exercised.
type fakeClient struct {
	mu             sync.Mutex
	connectResults []error
	connectCalls   int
	closeCalls     int
	closing        bool
	sent           []vent.Message
	inFlight       int
	maxInFlight    int

	inbox chan vent.Message
	errs  chan error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		inbox: make(chan vent.Message, 32),
		errs:  make(chan error, 1),
	}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	var err error
	if len(f.connectResults) > 0 {
		err = f.connectResults[0]
		f.connectResults = f.connectResults[1:]
	}
	if err == nil {
		f.closing = false
	}
	return err
}

func (f *fakeClient) Receive(ctx context.Context) (vent.Message, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-f.inbox:
		return msg, nil
	case err := <-f.errs:
		return nil, err
	}
}

func (f *fakeClient) Send(msg vent.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()

	// Acknowledge through the receive path, like the real unit does.
	if id, ok := msg.String(vent.KeyID); ok {
		f.inbox <- vent.Message{vent.KeyID: id, vent.KeyStatus: "ok"}
	}
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.closing = true
	return nil
}

func (f *fakeClient) Closing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closing
}

func (f *fakeClient) stats() (connects, closes, maxLoops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls, f.closeCalls, f.maxInFlight
}

func (f *fakeClient) sentCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cmds []string
	for _, msg := range f.sent {
		if cmd, ok := msg.String(vent.KeyCommand); ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func newTestCoordinator(t *testing.T, client vent.Client) *Coordinator {
	t.Helper()
	c := New(zap.NewNop().Sugar(), client, "vent_test_1")
	c.reconnectDelay = time.Millisecond
	c.connectTimeout = time.Second
	c.keepAliveInterval = 5 * time.Millisecond
	return c
}

func TestReceiveLoopProcessesMessagesInOrder(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client)

	var mu sync.Mutex
	var seen []int
	c.AddUpdateCallback(func() {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c.Device().Snapshot().SupplyRPM)
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	assert.True(t, c.Available())

	for _, rpm := range []int{1410, 1420, 1430} {
		client.inbox <- vent.Message{"sup_rpm": float64(rpm)}
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{1410, 1420, 1430}, seen)
	mu.Unlock()
}

func TestStartConnectFailurePropagates(t *testing.T) {
	client := newFakeClient()
	client.connectResults = []error{errors.New("no route to device")}
	c := newTestCoordinator(t, client)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.False(t, c.Available())

	// No retry on the first connect and no loop was ever spawned.
	connects, closes, _ := client.stats()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 0, closes)
}

func TestCloseOnLoopExit(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client)

	require.NoError(t, c.Start(context.Background()))
	c.Stop()
	c.Stop() // idempotent

	_, closes, _ := client.stats()
	assert.Equal(t, 1, closes)
	assert.False(t, c.Available())
}

func TestReconnectAfterFailures(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	client.mu.Lock()
	client.connectResults = []error{
		errors.New("refused"),
		errors.New("refused"),
	}
	client.mu.Unlock()

	client.errs <- errors.New("connection reset")

	// Two failed attempts, success on the third; 4 connects total.
	require.Eventually(t, func() bool {
		connects, _, _ := client.stats()
		return c.Available() && connects == 4
	}, time.Second, time.Millisecond)

	// The loop closed the session exactly once before reconnecting, and the
	// disconnect handler skipped the redundant close.
	_, closes, maxLoops := client.stats()
	assert.Equal(t, 1, closes)
	assert.Equal(t, 1, maxLoops, "two receive loops were active at once")

	// The new loop still delivers messages.
	var mu sync.Mutex
	notified := 0
	c.AddUpdateCallback(func() {
		mu.Lock()
		notified++
		mu.Unlock()
	})
	client.inbox <- vent.Message{"exh_rpm": float64(1300)}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return notified == 1
	}, time.Second, time.Millisecond)
}

func TestReconnectGivesUpAfterFiveAttempts(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	refused := errors.New("refused")
	client.mu.Lock()
	client.connectResults = []error{refused, refused, refused, refused, refused}
	client.mu.Unlock()

	client.errs <- errors.New("connection reset")

	require.Eventually(t, func() bool {
		connects, _, _ := client.stats()
		return connects == 6 // initial + 5 reconnect attempts
	}, time.Second, time.Millisecond)

	// Terminal state: no sixth attempt, still unavailable.
	time.Sleep(20 * time.Millisecond)
	connects, closes, _ := client.stats()
	assert.Equal(t, 6, connects)
	assert.Equal(t, 1, closes)
	assert.False(t, c.Available())
}

func TestDisconnectHandlerSkipsRedundantClose(t *testing.T) {
	client := newFakeClient()
	client.closing = true
	refused := errors.New("refused")
	client.connectResults = []error{refused, refused, refused, refused, refused}

	c := newTestCoordinator(t, client)
	c.handleDisconnect(errors.New("connection reset"))

	_, closes, _ := client.stats()
	assert.Equal(t, 0, closes)
}

func TestDisconnectHandlerClosesWhenNotClosing(t *testing.T) {
	client := newFakeClient()
	refused := errors.New("refused")
	client.connectResults = []error{refused, refused, refused, refused, refused}

	c := newTestCoordinator(t, client)
	c.handleDisconnect(errors.New("connection reset"))

	_, closes, _ := client.stats()
	assert.Equal(t, 1, closes)
}

func TestRemoveCallbackIsIdempotent(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client)

	var mu sync.Mutex
	calls := 0
	remove := c.AddUpdateCallback(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	c.notifyUpdate()
	remove()
	remove() // second removal is a no-op
	c.notifyUpdate()

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestSendAirflowMode(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client)

	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.SendAirflowMode(ctx, vent.ModeBoost, 30))

	assert.Error(t, c.SendAirflowMode(ctx, "warp", 30))
	assert.Error(t, c.SendAirflowMode(ctx, vent.ModeBoost, 7))

	c.Stop()
	assert.ErrorIs(t, c.SendAirflowMode(ctx, vent.ModeBoost, 30), ErrNotConnected)
}

func TestConnectionListenerFiresOnTransitions(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client)

	var mu sync.Mutex
	var transitions []bool
	c.SetConnectionListener(func(connected bool) {
		mu.Lock()
		transitions = append(transitions, connected)
		mu.Unlock()
	})

	require.NoError(t, c.Start(context.Background()))
	c.Stop()

	mu.Lock()
	assert.Equal(t, []bool{true, false}, transitions)
	mu.Unlock()
}

func TestCommissioningLifecycle(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, c.StartCommissioning(ctx, vent.ModeNormal))
	require.NoError(t, c.StartCommissioning(ctx, vent.ModeNormal)) // no-op while active
	require.NoError(t, c.StopCommissioning(ctx))
	require.NoError(t, c.StopCommissioning(ctx)) // no-op when idle

	cmds := client.sentCommands()
	starts, stops := 0, 0
	for _, cmd := range cmds {
		switch cmd {
		case "commission_start":
			starts++
		case "commission_stop":
			stops++
		}
	}
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestDeviceInfoFallsBackToDefaultName(t *testing.T) {
	client := newFakeClient()
	c := newTestCoordinator(t, client)

	info := c.DeviceInfo()
	assert.Equal(t, "vent_test_1", info.ID)
	assert.Equal(t, "VentAxia Device", info.Name)
	assert.Equal(t, "VentAxia", info.Manufacturer)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	client.inbox <- vent.Message{"dname": "Sentinel Kinetic"}
	require.Eventually(t, func() bool {
		return c.DeviceInfo().Name == "Sentinel Kinetic"
	}, time.Second, time.Millisecond)
}
