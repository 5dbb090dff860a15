package vent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerResolvesRegisteredRequest(t *testing.T) {
	tracker := NewPendingRequestTracker()

	ch, cancel, err := tracker.Register("req-1")
	require.NoError(t, err)
	defer cancel()
	assert.Equal(t, 1, tracker.PendingCount())

	resp := Message{KeyID: "req-1", KeyStatus: "ok"}
	assert.True(t, tracker.Resolve("req-1", resp))
	assert.Equal(t, 0, tracker.PendingCount())

	got := <-ch
	assert.Equal(t, resp, got)
}

func TestTrackerRejectsDuplicateID(t *testing.T) {
	tracker := NewPendingRequestTracker()

	_, cancel, err := tracker.Register("req-1")
	require.NoError(t, err)
	defer cancel()

	_, _, err = tracker.Register("req-1")
	assert.Error(t, err)
}

func TestTrackerResolveUnknownID(t *testing.T) {
	tracker := NewPendingRequestTracker()
	assert.False(t, tracker.Resolve("nobody", Message{}))
}

func TestTrackerResolvesAtMostOnce(t *testing.T) {
	tracker := NewPendingRequestTracker()

	_, cancel, err := tracker.Register("req-1")
	require.NoError(t, err)
	defer cancel()

	assert.True(t, tracker.Resolve("req-1", Message{KeyStatus: "ok"}))
	assert.False(t, tracker.Resolve("req-1", Message{KeyStatus: "ok"}))
}

func TestTrackerCancelReleasesReservation(t *testing.T) {
	tracker := NewPendingRequestTracker()

	_, cancel, err := tracker.Register("req-1")
	require.NoError(t, err)

	cancel()
	assert.Equal(t, 0, tracker.PendingCount())
	assert.False(t, tracker.Resolve("req-1", Message{}))

	// The id is free for reuse afterwards.
	_, cancel2, err := tracker.Register("req-1")
	require.NoError(t, err)
	cancel2()
}
