// Package routes serves the local HTTP surface: a JSON state snapshot and
// the prometheus metrics endpoint.
package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/JosyBan/ventaxia-ha/bridge"
	"github.com/JosyBan/ventaxia-ha/coordinator"
	"github.com/JosyBan/ventaxia-ha/vent"
)

type timerResponse struct {
	State            string     `json:"state"`
	RemainingSeconds int        `json:"remaining_seconds"`
	DurationMinutes  int        `json:"duration_minutes"`
	Start            *time.Time `json:"start,omitempty"`
	Finish           *time.Time `json:"finish,omitempty"`
}

type stateResponse struct {
	Device      coordinator.DeviceInfo `json:"device"`
	Available   bool                   `json:"available"`
	State       vent.Snapshot          `json:"state"`
	Timer       timerResponse          `json:"timer"`
	RefreshedAt time.Time              `json:"refreshed_at"`
}

// State returns the handler for GET /state.
func State(log *zap.SugaredLogger, b *bridge.Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		coord := b.Coordinator()
		timer := b.Timer()

		resp := stateResponse{
			Device:    coord.DeviceInfo(),
			Available: coord.Available(),
			State:     coord.Device().Snapshot(),
			Timer: timerResponse{
				State:            timer.State(),
				RemainingSeconds: timer.Remaining(),
				DurationMinutes:  timer.DurationMinutes(),
			},
			RefreshedAt: time.Now().UTC(),
		}

		if start, finish := timer.Window(); !start.IsZero() {
			resp.Timer.Start = &start
			resp.Timer.Finish = &finish
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warnw("error encoding state response", "error", err)
		}
	}
}
