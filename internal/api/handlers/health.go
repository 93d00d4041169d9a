package handlers

import "net/http"

// Health handles GET /healthz, a plain liveness check with no
// dependency on storage or the external configuration service.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
