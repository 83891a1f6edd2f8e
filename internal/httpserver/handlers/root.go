package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/visits/internal/httpserver/deps"
)

// Root answers "OK" so load balancers probing "/" see a live service.
func Root(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeText(w, d, http.StatusOK, "OK")
	}
}
