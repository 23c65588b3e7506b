package handler

import (
	"net/http"
)

// HealthCheckHandler reports liveness and the training backlog. It can be
// used for health checks by Docker or other services.
func HealthCheckHandler(jobs JobQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "ok"}
		if jobs != nil {
			body["queue_depth"] = jobs.Depth()
		}
		writeJSON(w, http.StatusOK, body)
	}
}
