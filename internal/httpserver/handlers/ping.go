package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/visits/internal/httpserver/deps"
	"github.com/MrSnakeDoc/visits/internal/utils"
)

// Ping records a visit from the caller and answers "pong".
func Ping(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := utils.ClientIP(r, d.TrustProxy)
		if err := d.Service.RecordVisit(r.Context(), ip); err != nil {
			writeError(w, r, d, err)
			return
		}
		writeText(w, d, http.StatusOK, "pong")
	}
}
