package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/visits/internal/httpserver/deps"
)

const defaultReadyTimeout = 2 * time.Second

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz probes the store and the cache concurrently. Only the store decides
// readiness: without a cache every read still succeeds, just slower.
func Readyz(d deps.Deps) http.HandlerFunc {
	timeout := d.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var store, cache componentStatus
		var g errgroup.Group
		g.Go(func() error {
			store = checkStore(ctx, d)
			return nil
		})
		g.Go(func() error {
			cache = checkCache(ctx, d)
			return nil
		})
		_ = g.Wait()

		components := map[string]componentStatus{
			"store": store,
			"cache": cache,
		}
		resp := readyzResponse{
			Ready:      store.OK,
			Mode:       determineMode(components),
			Components: components,
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if !resp.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func determineMode(components map[string]componentStatus) string {
	if store, ok := components["store"]; ok && !store.OK {
		return "critical" // no store = no counting
	}
	if cache, ok := components["cache"]; ok && !cache.OK {
		return "degraded" // every read hits the store
	}
	return "optimal"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Service.DevMode() {
		return componentStatus{OK: true, Mode: "dev"}
	}
	if err := d.Service.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Impact: "visits-unavailable",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true}
}

func checkCache(ctx context.Context, d deps.Deps) componentStatus {
	if d.CacheProbe == nil {
		return componentStatus{
			OK:     true,
			Mode:   "disabled",
			Impact: "reads-hit-store",
		}
	}
	if err := d.CacheProbe(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.CacheBackend,
			Impact: "reads-hit-store",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: d.CacheBackend}
}
