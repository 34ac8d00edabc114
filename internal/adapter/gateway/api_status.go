package gateway

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Version is reported by the health endpoint.
var Version = "dev"

// HealthResponse is the JSON body returned by GET /healthz.
type HealthResponse struct {
	Status        string       `json:"status"`
	Timestamp     time.Time    `json:"timestamp"`
	Service       string       `json:"service"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptimeSeconds"`
	Generations   *Generations `json:"generations"`
}

// Generations summarizes generation counters.
type Generations struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Metrics tracks counters for the health and metrics endpoints.
type Metrics struct {
	GenerationsStarted   atomic.Int64
	GenerationsCompleted atomic.Int64
	GenerationsFailed    atomic.Int64
	SlidesGenerated      atomic.Int64
}

// healthHandler returns an HTTP handler for GET /healthz.
func healthHandler(startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:        "ok",
			Timestamp:     time.Now().UTC(),
			Service:       "slidecoffee",
			Version:       Version,
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Generations: &Generations{
				Started:   metrics.GenerationsStarted.Load(),
				Completed: metrics.GenerationsCompleted.Load(),
				Failed:    metrics.GenerationsFailed.Load(),
			},
		})
	}
}
