package ventsim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JosyBan/ventaxia-ha/vent"
)

func receiveOne(t *testing.T, s *Simulator) vent.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := s.Receive(ctx)
	require.NoError(t, err)
	return msg
}

func TestSimulatorAnnouncesItselfOnConnect(t *testing.T) {
	s := New("vent_sim", time.Hour)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	msg := receiveOne(t, s)
	name, _ := msg.String("dname")
	dev, _ := msg.String(vent.KeyDevice)
	assert.Equal(t, "VentAxia Simulated", name)
	assert.Equal(t, "vent_sim", dev)
}

func TestSimulatorEmitsTelemetry(t *testing.T) {
	s := New("vent_sim", 10*time.Millisecond)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	receiveOne(t, s) // announcement

	msg := receiveOne(t, s)
	rpm, ok := msg.Int("sup_rpm")
	require.True(t, ok)
	assert.Greater(t, rpm, 0)
	_, ok = msg.Int("as_rsec")
	assert.True(t, ok)
}

func TestSimulatorAcknowledgesAirflowCommand(t *testing.T) {
	s := New("vent_sim", time.Hour)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	receiveOne(t, s) // announcement

	require.NoError(t, s.Send(vent.Message{
		vent.KeyID:      "req-1",
		vent.KeyCommand: "af_mode",
		"as_af":         vent.AirflowModes[vent.ModeBoost],
		"ar_min":        30,
	}))

	ack := receiveOne(t, s)
	id, _ := ack.String(vent.KeyID)
	status, _ := ack.String(vent.KeyStatus)
	assert.Equal(t, "req-1", id)
	assert.Equal(t, "ok", status)

	state := receiveOne(t, s)
	mode, _ := state.Int("as_af")
	minutes, _ := state.Int("ar_min")
	remaining, _ := state.Int("as_rsec")
	assert.Equal(t, vent.AirflowModes[vent.ModeBoost], mode)
	assert.Equal(t, 30, minutes)
	assert.Equal(t, 1800, remaining)
}

func TestSimulatorManualRunExpires(t *testing.T) {
	s := New("vent_sim", 10*time.Millisecond)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	s.mu.Lock()
	s.afMode = vent.AirflowModes[vent.ModePurge]
	s.arMin = 1
	s.rsec = 1
	s.mu.Unlock()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.rsec == 0 && s.afMode == vent.AirflowModes[vent.ModeNormal]
	}, time.Second, 5*time.Millisecond)
}

func TestSimulatorClose(t *testing.T) {
	s := New("vent_sim", time.Hour)
	require.NoError(t, s.Connect(context.Background()))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent
	assert.True(t, s.Closing())

	assert.ErrorIs(t, s.Send(vent.Message{vent.KeyCommand: "af_mode"}), vent.ErrClosed)

	// Draining the closed inbox ends with ErrClosed.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		_, err := s.Receive(ctx)
		if err != nil {
			assert.ErrorIs(t, err, vent.ErrClosed)
			return
		}
	}
}
