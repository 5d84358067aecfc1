package daemon

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solarekm/reaper/telemetry"
)

// healthResponse is the /healthz body.
type healthResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	WALIssues     []string `json:"wal_issues,omitempty"`
}

func (d *Daemon) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.handleHealthz)
	mux.HandleFunc("/readyz", d.handleReadyz)

	// The dual-export registry exists once telemetry.InitOTEL has run;
	// fall back to the default registry otherwise.
	if registry := telemetry.PrometheusRegistry; registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return mux
}

// handleHealthz is the liveness probe. It always answers 200 while the
// process is up; a WAL past its limits degrades the status but does not
// fail the probe.
func (d *Daemon) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(d.startTime).Seconds()),
	}

	if d.journal != nil {
		health := d.journal.GetHealth()
		if !health.Healthy {
			resp.Status = "degraded"
			resp.WALIssues = health.Issues
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleReadyz reports ready once the first sweep has completed.
func (d *Daemon) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !d.ready.Load() {
		http.Error(w, "waiting for first sweep", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
