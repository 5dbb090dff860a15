// Package ventsim provides a simulated VentAxia unit behind the vent.Client
// contract, for development and demo use without a physical device.
package ventsim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/JosyBan/ventaxia-ha/vent"
)

// Simulator fakes one unit: periodic telemetry, request acknowledgements and
// a manual airflow state machine with a decrementing remaining-seconds field.
type Simulator struct {
	deviceID string
	interval time.Duration

	mu      sync.Mutex
	closing bool
	inbox   chan vent.Message
	stop    context.CancelFunc

	afMode int
	arMin  int
	rsec   int
	cmAf   int
}

// New returns a simulator emitting telemetry every interval.
func New(deviceID string, interval time.Duration) *Simulator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Simulator{
		deviceID: deviceID,
		interval: interval,
		afMode:   vent.AirflowModes[vent.ModeNormal],
	}
}

func (s *Simulator) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closing = false
	s.inbox = make(chan vent.Message, 64)
	loopCtx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	s.pushLocked(vent.Message{"dname": "VentAxia Simulated", "dev": s.deviceID})
	go s.telemetryLoop(loopCtx)
	return nil
}

func (s *Simulator) Receive(ctx context.Context) (vent.Message, error) {
	s.mu.Lock()
	inbox := s.inbox
	s.mu.Unlock()
	if inbox == nil {
		return nil, vent.ErrClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-inbox:
		if !ok {
			return nil, vent.ErrClosed
		}
		return msg, nil
	}
}

func (s *Simulator) Send(msg vent.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || s.inbox == nil {
		return vent.ErrClosed
	}

	cmd, _ := msg.String(vent.KeyCommand)
	switch cmd {
	case "af_mode":
		if code, ok := msg.Int("as_af"); ok {
			s.afMode = code
		}
		if minutes, ok := msg.Int("ar_min"); ok {
			s.arMin = minutes
			s.rsec = minutes * 60
		}
	case "commission_start":
		if code, ok := msg.Int("cm_af"); ok {
			s.cmAf = code
		}
	case "commission_stop":
		s.cmAf = 0
	}

	if id, ok := msg.String(vent.KeyID); ok && id != "" {
		ack := vent.Message{vent.KeyID: id, vent.KeyStatus: "ok"}
		s.pushLocked(ack)
	}
	s.pushLocked(s.stateLocked())
	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return nil
	}
	s.closing = true
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.inbox != nil {
		close(s.inbox)
	}
	return nil
}

func (s *Simulator) Closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing || s.inbox == nil
}

func (s *Simulator) telemetryLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			return
		}
		if s.rsec > 0 {
			step := int(s.interval / time.Second)
			if step < 1 {
				step = 1
			}
			s.rsec -= step
			if s.rsec <= 0 {
				// Manual run expired, fall back to normal.
				s.rsec = 0
				s.arMin = 0
				s.afMode = vent.AirflowModes[vent.ModeNormal]
			}
		}
		s.pushLocked(s.stateLocked())
		s.mu.Unlock()
	}
}

// stateLocked builds a telemetry message. Caller holds s.mu.
func (s *Simulator) stateLocked() vent.Message {
	boosted := s.afMode >= vent.AirflowModes[vent.ModeBoost]
	rpmBase := 1400
	if boosted {
		rpmBase = 2300
	}

	return vent.Message{
		"dev":            s.deviceID,
		"sup_rpm":        rpmBase + rand.Intn(40),
		"exh_rpm":        rpmBase - 50 + rand.Intn(40),
		"pwr":            12.0 + rand.Float64()*3,
		"as_af":          s.afMode,
		"ar_min":         s.arMin,
		"as_rsec":        s.rsec,
		"extract_temp_c": 20.5 + rand.Float64(),
		"outdoor_temp_c": 9.0 + rand.Float64()*2,
		"cm_af_sup":      31,
		"cm_af_exh":      29,
		"exr_rh":         78 + rand.Intn(4),
		"itk_rh":         52 + rand.Intn(4),
		"service_months": 10,
		"filter_months":  4,
	}
}

// pushLocked queues a message without blocking the caller; a full inbox
// drops the oldest style of telemetry rather than stalling. Caller holds s.mu.
func (s *Simulator) pushLocked(msg vent.Message) {
	select {
	case s.inbox <- msg:
	default:
	}
}
