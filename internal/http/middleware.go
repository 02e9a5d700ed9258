package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pagopa/interop-token-platform/internal/observability/logger"
)

// ─────────────── Request ID ───────────────
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

// ─────────────── Correlation ID ───────────────
// El correlation id atraviesa todo el flujo hasta el registro de auditoría.
// Si el caller no manda uno, se genera.
func WithCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := strings.TrimSpace(r.Header.Get("X-Correlation-Id"))
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set("X-Correlation-Id", cid)

		// logger scoped al request, disponible vía logger.From(ctx)
		scoped := logger.With(
			logger.RequestID(w.Header().Get("X-Request-ID")),
			logger.CorrelationID(cid))
		next.ServeHTTP(w, r.WithContext(logger.ToContext(r.Context(), scoped)))
	})
}

// ─────────────── Recover de pánicos ───────────────
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Named("http").Error("panic recovered",
					logger.RequestID(w.Header().Get("X-Request-ID")),
					logger.String("recover", toString(rec)))
				WriteError(w, http.StatusInternalServerError, "internal_error", "panic recover", 1500)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "panic"
}

// ─────────────── Logging ───────────────
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func WithLogging(next http.Handler) http.Handler {
	log := logger.Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		log.Info("request",
			logger.RequestID(w.Header().Get("X-Request-ID")),
			logger.CorrelationID(w.Header().Get("X-Correlation-Id")),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(rec.status),
			logger.Duration(time.Since(start)))
	})
}
