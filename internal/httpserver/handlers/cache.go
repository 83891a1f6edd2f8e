package handlers

import (
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/visits/internal/httpserver/deps"
	"github.com/MrSnakeDoc/visits/internal/logger"
	"github.com/MrSnakeDoc/visits/internal/utils"
)

// ClearCache drops the cached count and repopulates it from the store.
func ClearCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Service.ResetCache(r.Context())
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		d.Logger.Info("cache cleared via endpoint",
			logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy)),
			logger.Int64("count", n))
		writeText(w, d, http.StatusOK, "Cache updated: "+strconv.FormatInt(n, 10)+"\n")
	}
}

// WarmCache asks the cache warmer for an immediate refresh and returns
// without waiting for it.
func WarmCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.WarmTrigger == nil {
			writeText(w, d, http.StatusNotImplemented, "Cache warmer is not running\n")
			return
		}

		d.WarmTrigger()
		d.Logger.Info("manual cache warm-up triggered via endpoint",
			logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy)))
		writeText(w, d, http.StatusAccepted, "Warm-up triggered\n")
	}
}
