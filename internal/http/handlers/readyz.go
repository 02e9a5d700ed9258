package handlers

import (
	"net/http"
	"os"

	"github.com/pagopa/interop-token-platform/internal/app"
	httpx "github.com/pagopa/interop-token-platform/internal/http"
	"github.com/pagopa/interop-token-platform/internal/observability/logger"
)

// NewHealthzHandler: liveness. Responde mientras el proceso viva.
func NewHealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// NewReadyzHandler: readiness. Chequea las dependencias del container.
func NewReadyzHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if v := os.Getenv("SERVICE_VERSION"); v != "" {
			w.Header().Set("X-Service-Version", v)
		}
		if c != nil && c.Ready != nil {
			if err := c.Ready(r.Context()); err != nil {
				logger.Named("readyz").Error("dependency unavailable", logger.Err(err))
				httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "dependencia no disponible", 2001)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
