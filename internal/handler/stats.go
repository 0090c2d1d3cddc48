package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// Health answers the gateway's own liveness probe.
func (p *Proxy) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// Stats exposes the operational status view: active strategy, backend counts,
// and per-backend health detail.
func (p *Proxy) Stats(w http.ResponseWriter, r *http.Request) {
	stats := p.gateway.Stats()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		p.log.WithError(err).Error("Failed to encode stats response")
	}
}
