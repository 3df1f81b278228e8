package http

import (
	"net/http"

	"github.com/carlmjohnson/versioninfo"
)

type HealthHandler struct {
	version string
}

// NewHealthHandler reports version in every response; empty means the build's VCS info.
func NewHealthHandler(version string) *HealthHandler {
	if version == "" {
		version = versioninfo.Short()
	}
	return &HealthHandler{version: version}
}

// Check is a liveness probe. The service has no downstream dependency that
// must be up before an unlock can be attempted.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok " + h.version))
}
