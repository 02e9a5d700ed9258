// Package http expone el authorization server: el token endpoint OAuth2,
// health checks y métricas. Los handlers viven en el subpaquete handlers;
// acá va el router, los middlewares y el envelope de errores.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TokenRoutes son los handlers que el router monta. Se inyectan ya armados
// para no acoplar el router al container.
type TokenRoutes struct {
	Token   http.HandlerFunc
	Healthz http.HandlerFunc
	Readyz  http.HandlerFunc
}

// NewRouter arma el router del authorization server.
func NewRouter(routes TokenRoutes) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRecover)
	r.Use(WithRequestID)
	r.Use(WithCorrelationID)
	r.Use(WithLogging)

	r.Post("/token.oauth2", routes.Token)

	r.Get("/healthz", routes.Healthz)
	r.Get("/readyz", routes.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
