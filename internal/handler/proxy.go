// Package handler implements the gateway's HTTP surface: the forwarding proxy
// and the operational endpoints.
package handler

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vkgw/vk-gateway/internal/cache"
	"github.com/vkgw/vk-gateway/internal/directory"
	"github.com/vkgw/vk-gateway/internal/domain"
	"github.com/vkgw/vk-gateway/internal/metrics"
	"github.com/vkgw/vk-gateway/internal/middleware"
	"github.com/vkgw/vk-gateway/internal/service"
	"github.com/vkgw/vk-gateway/pkg/logger"
)

// Proxy forwards inbound requests to a backend chosen either by file
// ownership or by the active load-balancing strategy.
type Proxy struct {
	gateway   *service.Gateway
	dir       directory.Directory
	ownerCache cache.Cache
	metrics   *metrics.Collector
	log       *logger.Logger
	client    *http.Client
	secret    string
	ownerTTL  time.Duration
}

// NewProxy creates the proxy handler.
func NewProxy(gw *service.Gateway, dir directory.Directory, ownerCache cache.Cache, collector *metrics.Collector, secret string, ownerTTL time.Duration, log *logger.Logger) *Proxy {
	return &Proxy{
		gateway:    gw,
		dir:        dir,
		ownerCache: ownerCache,
		metrics:    collector,
		log:        log,
		client:     &http.Client{Timeout: 30 * time.Second},
		secret:     secret,
		ownerTTL:   ownerTTL,
	}
}

// Routes mounts every gateway endpoint on the router. The catch-all proxy
// must be registered last.
func (p *Proxy) Routes(r *mux.Router) {
	r.HandleFunc("/api/v1/health", p.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/stats", p.Stats).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/files/delete-expired", p.DeleteExpired).Methods(http.MethodDelete)
	if p.metrics != nil {
		r.Handle("/metrics", p.metrics.Handler()).Methods(http.MethodGet)
	}
	r.PathPrefix("/api/v1/backend/{server_id}/").HandlerFunc(p.BackendByID)
	r.PathPrefix("/").HandlerFunc(p.ServeHTTP)
}

// ServeHTTP is the catch-all proxy. File requests route to the backend that
// owns the file when the metadata knows one; everything else goes through the
// load-balancing strategy. A strategy selection is always released, on every
// exit path, once the proxied call finishes.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := p.log.WithField("request_id", middleware.RequestIDFrom(r.Context()))

	var backend domain.Backend
	var found bool

	if fileID := extractFileID(r.URL.Path); fileID != "" {
		serverID := p.lookupOwner(r, fileID, log)
		if serverID != "" {
			owner, ok := p.gateway.Backend(serverID)
			if !ok {
				log.WithField("server_id", serverID).Error("File owner not present in registry")
				http.Error(w, "Backend not found", http.StatusInternalServerError)
				return
			}
			if !owner.Healthy {
				log.WithField("server_id", serverID).Warn("File owner is unhealthy")
				http.Error(w, "Backend unavailable", http.StatusServiceUnavailable)
				return
			}
			backend = owner
			found = true
		}
	}

	if !found {
		selected, err := p.gateway.Acquire()
		if err != nil {
			log.WithError(err).Error("No healthy backends available")
			http.Error(w, "No healthy backends available", http.StatusServiceUnavailable)
			return
		}
		backend = selected
		defer p.gateway.Release(backend)
	}

	p.forward(w, r, backend, r.URL.Path)
}

// BackendByID proxies to one named backend, bypassing the strategy.
func (p *Proxy) BackendByID(w http.ResponseWriter, r *http.Request) {
	serverID := mux.Vars(r)["server_id"]
	log := p.log.WithField("request_id", middleware.RequestIDFrom(r.Context())).
		WithField("server_id", serverID)

	backend, ok := p.gateway.Backend(serverID)
	if !ok {
		log.Warn("Backend not found")
		http.Error(w, "Backend not found", http.StatusNotFound)
		return
	}
	if !backend.Healthy {
		log.Warn("Backend is unhealthy")
		http.Error(w, "Backend unavailable", http.StatusServiceUnavailable)
		return
	}

	targetPath := strings.TrimPrefix(r.URL.Path, "/api/v1/backend/"+serverID)
	if targetPath == "" {
		targetPath = "/"
	}
	p.forward(w, r, backend, targetPath)
}

// lookupOwner resolves the backend owning a file, consulting the cache first
// and falling back to the directory. Lookup failures degrade to strategy
// selection; they never fail the request.
func (p *Proxy) lookupOwner(r *http.Request, fileID string, log *logger.Logger) string {
	ctx := r.Context()
	key := cache.FileOwnerKey(fileID)

	if serverID, err := p.ownerCache.Get(ctx, key); err == nil && serverID != "" {
		return serverID
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDisabled) {
		log.WithError(err).Warn("Owner cache lookup failed")
	}

	serverID, err := p.dir.FileBackend(ctx, fileID)
	if err != nil {
		log.WithError(err).WithField("file_id", fileID).
			Warn("Directory lookup failed, falling back to load balancer")
		return ""
	}
	if serverID == "" {
		return ""
	}

	if err := p.ownerCache.Set(ctx, key, serverID, p.ownerTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		log.WithError(err).Debug("Owner cache write failed")
	}
	return serverID
}

// forward streams the request to the backend and the response back.
func (p *Proxy) forward(w http.ResponseWriter, r *http.Request, backend domain.Backend, targetPath string) {
	log := p.log.BackendLogger(backend.ServerID, backend.URL)

	target, err := url.Parse(backend.URL)
	if err != nil {
		log.WithError(err).Error("Failed to parse backend URL")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Director = func(req *http.Request) {
		req.URL.Scheme = target.Scheme
		req.URL.Host = target.Host
		req.URL.Path = singleJoin(target.Path, targetPath)
		req.Host = target.Host
		req.Header.Set("X-Forwarded-By", "vk-gateway/1.0")
		req.Header.Set("X-Backend-ID", backend.ServerID)
		if req.Header.Get("X-Forwarded-Host") == "" {
			req.Header.Set("X-Forwarded-Host", r.Host)
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).Error("Failed to proxy request to backend")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

	start := time.Now()
	if p.metrics != nil {
		p.metrics.ProxyStarted(backend.ServerID)
		defer p.metrics.ProxyFinished(backend.ServerID)
	}

	log.WithField("method", r.Method).WithField("path", targetPath).
		Debug("Proxying request to backend")
	proxy.ServeHTTP(recorder, r)

	if p.metrics != nil {
		p.metrics.ObserveRequest(backend.ServerID, r.Method, recorder.statusCode, time.Since(start))
	}
}

func singleJoin(base, path string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// statusRecorder captures the status code written by the reverse proxy.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
		sr.ResponseWriter.WriteHeader(code)
	}
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.WriteHeader(http.StatusOK)
	}
	return sr.ResponseWriter.Write(b)
}

// extractFileID pulls a file ID out of the request path. Recognized shapes:
// /api/v1/files/{id}, /api/v1/files/download/{id}, /files/{id},
// /files/download/{id} and /download/{id}.
func extractFileID(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")

	if len(segments) >= 4 && segments[0] == "api" && segments[2] == "files" {
		if len(segments) >= 5 && segments[3] == "download" {
			return segments[4]
		}
		if len(segments) == 4 {
			return segments[3]
		}
	}

	if len(segments) >= 2 && segments[0] == "files" {
		if len(segments) >= 3 && segments[1] == "download" {
			return segments[2]
		}
		if len(segments) == 2 {
			return segments[1]
		}
	}

	if len(segments) == 2 && segments[0] == "download" {
		return segments[1]
	}

	return ""
}
