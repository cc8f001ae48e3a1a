package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/audit"
	"github.com/akquise-tool/internal/cache"
)

// Refresher rebuilds the record cache from its sources.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// APIHandler handles health, statistics and operational endpoints.
type APIHandler struct {
	Store     *cache.Store
	Tracker   *audit.Tracker
	Refresher Refresher
	StartedAt time.Time
}

// StatsResponse describes the current state of the service.
type StatsResponse struct {
	Customers       int            `json:"customers"`
	Datasets        int            `json:"datasets"`
	SnapshotBuiltAt time.Time      `json:"snapshot_built_at"`
	UptimeSeconds   int64          `json:"uptime_seconds"`
	LockDecisions   *audit.Summary `json:"lock_decisions,omitempty"`
}

// Health reports liveness.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// GetStats returns cache sizes, snapshot age and lock decision counts.
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.Store.Snapshot()
	customers, datasets := snapshot.Counts()

	stats := StatsResponse{
		Customers:       customers,
		Datasets:        datasets,
		SnapshotBuiltAt: snapshot.BuiltAt(),
		UptimeSeconds:   int64(time.Since(h.StartedAt).Seconds()),
	}

	if h.Tracker != nil {
		summary, err := h.Tracker.Summarize(r.Context())
		if err != nil {
			log.WithError(err).Warn("Failed to summarize lock decisions for stats")
		} else {
			stats.LockDecisions = summary
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// TriggerRefresh rebuilds the cache from all sources on demand, for use
// after the office updates the customer sheet.
func (h *APIHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.Refresher == nil {
		http.Error(w, "Refresh not configured", http.StatusServiceUnavailable)
		return
	}

	if err := h.Refresher.Refresh(r.Context()); err != nil {
		log.WithError(err).Error("Manual refresh failed")
		http.Error(w, "Refresh failed", http.StatusInternalServerError)
		return
	}

	customers, datasets := h.Store.Snapshot().Counts()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"customers": customers,
		"datasets":  datasets,
	})
}
