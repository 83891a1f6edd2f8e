package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/visits/internal/httpserver/deps"
)

// Visits answers the number of recorded visits as a plain-text integer.
// Dev mode answers -1.
func Visits(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Service.GetVisitCount(r.Context())
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeText(w, d, http.StatusOK, strconv.FormatInt(n, 10))
	}
}

type cachedCountResponse struct {
	Cached     bool    `json:"cached"`
	Value      *int64  `json:"value,omitempty"`
	Generation uint64  `json:"generation,omitempty"`
	AgeSeconds float64 `json:"age_seconds,omitempty"`
	TTLSeconds float64 `json:"ttl_seconds,omitempty"`
}

// VisitsCache shows what the cache holds without touching the store.
func VisitsCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := cachedCountResponse{}
		if snap, ok := d.Service.CachedCount(r.Context()); ok {
			now := d.Now()
			value := snap.Value
			resp.Cached = true
			resp.Value = &value
			resp.Generation = snap.Generation
			resp.AgeSeconds = snap.Age(now).Seconds()
			if !snap.ExpiresAt.IsZero() {
				resp.TTLSeconds = snap.ExpiresAt.Sub(now).Seconds()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type visitResponse struct {
	ID            int64     `json:"id"`
	ClientAddress string    `json:"client_address"`
	CreatedAt     time.Time `json:"created_at"`
}

type recentVisitsResponse struct {
	Visits []visitResponse `json:"visits"`
}

// RecentVisits lists the latest recorded visits, newest first. ?limit= narrows
// the list; the service caps it.
func RecentVisits(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeText(w, d, http.StatusBadRequest, "limit must be a positive integer\n")
				return
			}
			limit = n
		}

		visits, err := d.Service.RecentVisits(r.Context(), limit)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		resp := recentVisitsResponse{Visits: make([]visitResponse, 0, len(visits))}
		for _, v := range visits {
			resp.Visits = append(resp.Visits, visitResponse{
				ID:            v.ID,
				ClientAddress: v.ClientAddress,
				CreatedAt:     v.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
