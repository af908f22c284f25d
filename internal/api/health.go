package api

import "net/http"

// health answers liveness probes. Kept outside the middleware stack so
// monitoring traffic is never rate limited.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "I am awake!",
	})
}
