package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Timer states.
const (
	TimerIdle   = "idle"
	TimerActive = "active"
)

// Timer event types.
const (
	TimerEventStarted  = "started"
	TimerEventFinished = "finished"
)

// TimerEvent is a discrete lifecycle event for logbook-style consumers.
type TimerEvent struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Entity          string    `json:"entity"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	At              time.Time `json:"at"`
}

// RuntimeTimer mirrors the server-reported "manual airflow active for N
// minutes" state into a locally ticking seconds-remaining value. It is
// independent of further network traffic once started: remaining is derived
// from the recorded finish time, published once per tick.
type RuntimeTimer struct {
	log      *zap.SugaredLogger
	entityID string
	publish  func(remainingSeconds int)
	emit     func(TimerEvent)

	// Overridable from tests.
	now  func() time.Time
	tick time.Duration

	mu          sync.Mutex
	state       string
	durationMin int
	start       time.Time
	finish      time.Time
	tickCancel  context.CancelFunc
	tickDone    chan struct{}
}

// NewRuntimeTimer builds an idle timer. publish receives the remaining
// seconds on every tick; emit receives start/finish lifecycle events.
func NewRuntimeTimer(log *zap.SugaredLogger, entityID string, publish func(int), emit func(TimerEvent)) *RuntimeTimer {
	if publish == nil {
		publish = func(int) {}
	}
	if emit == nil {
		emit = func(TimerEvent) {}
	}
	return &RuntimeTimer{
		log:      log,
		entityID: entityID,
		publish:  publish,
		emit:     emit,
		now:      time.Now,
		tick:     time.Second,
		state:    TimerIdle,
	}
}

// State returns "idle" or "active".
func (t *RuntimeTimer) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// DurationMinutes returns the configured duration, 0 when idle.
func (t *RuntimeTimer) DurationMinutes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.durationMin
}

// Window returns the start and finish timestamps; zero times when idle.
func (t *RuntimeTimer) Window() (start, finish time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start, t.finish
}

// Remaining returns whole seconds until finish, never negative, and exactly
// zero whenever the timer is idle.
func (t *RuntimeTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

func (t *RuntimeTimer) remainingLocked() int {
	if t.state != TimerActive || t.finish.IsZero() {
		return 0
	}
	rem := int(t.finish.Sub(t.now()).Seconds())
	if rem < 0 {
		return 0
	}
	return rem
}

// Start activates the countdown for the given duration. Starting while
// already active with a live ticking task is a no-op, so duplicate timers
// cannot race on the same countdown.
func (t *RuntimeTimer) Start(durationMinutes int) {
	t.mu.Lock()
	if t.state == TimerActive && t.tickDone != nil {
		t.mu.Unlock()
		return
	}

	now := t.now()
	t.state = TimerActive
	t.durationMin = durationMinutes
	t.start = now
	t.finish = now.Add(time.Duration(durationMinutes) * time.Minute)

	var ctx context.Context
	var done chan struct{}
	if t.tickDone == nil {
		ctx, t.tickCancel = context.WithCancel(context.Background())
		done = make(chan struct{})
		t.tickDone = done
	}
	remaining := t.remainingLocked()
	t.mu.Unlock()

	t.emit(TimerEvent{
		ID:              uuid.NewString(),
		Type:            TimerEventStarted,
		Entity:          t.entityID,
		DurationMinutes: durationMinutes,
		At:              now,
	})

	if done != nil {
		go t.run(ctx, done)
	}
	t.publish(remaining)
}

// Cancel stops the countdown without firing a finished event, cancelling
// the ticking task and waiting for it to unwind. No-op while idle.
func (t *RuntimeTimer) Cancel() {
	t.mu.Lock()
	if t.state == TimerIdle && t.tickDone == nil {
		t.mu.Unlock()
		return
	}
	cancel, done := t.tickCancel, t.tickDone
	t.tickCancel, t.tickDone = nil, nil
	t.resetLocked()
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	t.publish(0)
}

// Close tears the ticking task down on shutdown, identical to Cancel.
func (t *RuntimeTimer) Close() {
	t.Cancel()
}

// resetLocked returns the timer to idle. Caller holds t.mu.
func (t *RuntimeTimer) resetLocked() {
	t.state = TimerIdle
	t.durationMin = 0
	t.start = time.Time{}
	t.finish = time.Time{}
}

// run publishes the remaining seconds once per tick and transitions to idle
// when the countdown reaches zero. Cancellation at any point is normal
// teardown.
func (t *RuntimeTimer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		t.mu.Lock()
		if t.state != TimerActive {
			t.mu.Unlock()
			return
		}
		rem := t.remainingLocked()
		t.mu.Unlock()

		t.publish(rem)
		if rem <= 0 {
			t.expire()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// expire is the natural finish path: transition to idle and fire exactly
// one finished event.
func (t *RuntimeTimer) expire() {
	t.mu.Lock()
	if t.state != TimerActive {
		t.mu.Unlock()
		return
	}
	cancel := t.tickCancel
	t.tickCancel = nil
	t.tickDone = nil
	t.resetLocked()
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	t.emit(TimerEvent{
		ID:     uuid.NewString(),
		Type:   TimerEventFinished,
		Entity: t.entityID,
		At:     t.now(),
	})
	t.publish(0)
}
