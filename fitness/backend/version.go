package backend

import (
	"net/http"

	"github.com/relabs-tech/workfit/core/access"
	"github.com/relabs-tech/workfit/core/logger"
)

var (
	// Version is the version of the curent build
	Version = "unset"
)

func (b *Backend) handleVersion() {
	logger.Default().Debugln("version")
	b.handle("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	}, http.MethodGet)
}

// handleHealth adds /health. Admins also get the version, the signed in
// account and the database error, if any.
func (b *Backend) handleHealth() {
	logger.Default().Debugln("health")
	b.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		auth := access.AuthorizationFromContext(r.Context())
		details := map[string]string{"status": "ok"}
		status := http.StatusOK
		err := b.store.Ping(r.Context())
		if err != nil {
			logger.FromContext(r.Context()).WithError(err).Errorln("health check failed")
			details["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if auth.HasRole(access.RoleAdmin) {
			details["version"] = Version
			details["admin"], _ = auth.Property("email")
			details["database"] = "ok"
			if err != nil {
				details["database"] = err.Error()
			}
		}
		writeJSON(w, status, details)
	}, http.MethodGet)
}
