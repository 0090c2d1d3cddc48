package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vkgw/vk-gateway/internal/cache"
	"github.com/vkgw/vk-gateway/internal/health"
	"github.com/vkgw/vk-gateway/internal/middleware"
)

// DeleteExpired removes every file whose retention window has passed: the
// file is deleted on its owning backend, then its metadata row and cached
// owner entry are dropped. Per-file failures are counted, not fatal.
func (p *Proxy) DeleteExpired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := p.log.WithField("request_id", middleware.RequestIDFrom(ctx))

	files, err := p.dir.ExpiredFiles(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to query expired files")
		http.Error(w, "Failed to query expired files", http.StatusServiceUnavailable)
		return
	}

	deleted, failed := 0, 0
	for _, file := range files {
		fileLog := log.WithField("file_id", file.FileID).WithField("server_id", file.ServerID)

		backend, ok := p.gateway.Backend(file.ServerID)
		if !ok {
			fileLog.Warn("Owning backend not registered, skipping file")
			failed++
			continue
		}

		if !p.deleteOnBackend(r, backend.URL, file.FileID) {
			fileLog.Warn("Failed to delete file on backend")
			failed++
			continue
		}

		if err := p.dir.DeleteFileMetadata(ctx, file.FileID); err != nil {
			fileLog.WithError(err).Error("Failed to delete file metadata")
			failed++
			continue
		}
		_ = p.ownerCache.Delete(ctx, cache.FileOwnerKey(file.FileID))

		fileLog.Info("Expired file deleted")
		deleted++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"expired": len(files),
		"deleted": deleted,
		"failed":  failed,
	})
}

// deleteOnBackend issues the delete call to the owning backend. A 404 counts
// as success: the file is already gone there.
func (p *Proxy) deleteOnBackend(r *http.Request, backendURL, fileID string) bool {
	target := strings.TrimRight(backendURL, "/") + "/api/v1/files/" + fileID

	req, err := http.NewRequestWithContext(r.Context(), http.MethodDelete, target, nil)
	if err != nil {
		return false
	}
	if p.secret != "" {
		req.Header.Set(health.SecretHeader, p.secret)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusNotFound
}
