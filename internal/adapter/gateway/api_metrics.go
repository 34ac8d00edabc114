package gateway

import (
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// metricsHandler returns an HTTP handler for GET /metrics in Prometheus text format.
// This uses the lightweight text format to avoid pulling in the full prometheus client.
func metricsHandler(startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n", name, v)
		}
		counter("slidecoffee_generations_started_total", "Generations that began streaming.", metrics.GenerationsStarted.Load())
		counter("slidecoffee_generations_completed_total", "Generations that saved a presentation.", metrics.GenerationsCompleted.Load())
		counter("slidecoffee_generations_failed_total", "Generations that ended with an error.", metrics.GenerationsFailed.Load())
		counter("slidecoffee_slides_generated_total", "Slides streamed to clients.", metrics.SlidesGenerated.Load())

		fmt.Fprintf(w, "# HELP slidecoffee_uptime_seconds Seconds since the server started.\n")
		fmt.Fprintf(w, "# TYPE slidecoffee_uptime_seconds gauge\n")
		fmt.Fprintf(w, "slidecoffee_uptime_seconds %.0f\n", time.Since(startTime).Seconds())

		// Go runtime metrics.
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		fmt.Fprintf(w, "# HELP go_goroutines Number of goroutines.\n")
		fmt.Fprintf(w, "# TYPE go_goroutines gauge\n")
		fmt.Fprintf(w, "go_goroutines %d\n", runtime.NumGoroutine())

		fmt.Fprintf(w, "# HELP go_memstats_alloc_bytes Bytes of allocated heap objects.\n")
		fmt.Fprintf(w, "# TYPE go_memstats_alloc_bytes gauge\n")
		fmt.Fprintf(w, "go_memstats_alloc_bytes %d\n", mem.Alloc)

		fmt.Fprintf(w, "# HELP go_memstats_sys_bytes Total bytes of memory obtained from the OS.\n")
		fmt.Fprintf(w, "# TYPE go_memstats_sys_bytes gauge\n")
		fmt.Fprintf(w, "go_memstats_sys_bytes %d\n", mem.Sys)

		fmt.Fprintf(w, "# HELP go_gc_duration_seconds Total GC pause duration.\n")
		fmt.Fprintf(w, "# TYPE go_gc_duration_seconds gauge\n")
		fmt.Fprintf(w, "go_gc_duration_seconds %f\n", float64(mem.PauseTotalNs)/1e9)
	}
}
