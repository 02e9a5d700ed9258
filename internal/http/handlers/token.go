package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pagopa/interop-token-platform/internal/app"
	httpx "github.com/pagopa/interop-token-platform/internal/http"
	"github.com/pagopa/interop-token-platform/internal/metrics"
	"github.com/pagopa/interop-token-platform/internal/observability/logger"
	"github.com/pagopa/interop-token-platform/internal/token"
)

// tokenResponse es la respuesta OAuth2 estándar del token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// NewTokenHandler maneja POST /token.oauth2 (client credentials + JWT-bearer
// client assertion). El flujo completo vive en token.Service; acá solo se
// parsea la form y se mapea el resultado a HTTP.
func NewTokenHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo POST", 2100)
			return
		}
		start := time.Now()

		// OAuth2: application/x-www-form-urlencoded
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10) // 64KB
		if err := r.ParseForm(); err != nil {
			metrics.TokenRequests.WithLabelValues(token.CodeClientAssertionRequestValidationFailed).Inc()
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "form inválido", 2101)
			return
		}

		req := token.Request{
			ClientID:            strings.TrimSpace(r.PostForm.Get("client_id")),
			ClientAssertion:     strings.TrimSpace(r.PostForm.Get("client_assertion")),
			ClientAssertionType: strings.TrimSpace(r.PostForm.Get("client_assertion_type")),
			GrantType:           strings.TrimSpace(r.PostForm.Get("grant_type")),
			CorrelationID:       w.Header().Get("X-Correlation-Id"),
		}

		res, err := c.TokenSvc.GenerateToken(r.Context(), req)
		if err != nil {
			logger.FromWithFields(r.Context(), logger.ClientID(req.ClientID)).
				Warn("token request failed", logger.Err(err))
			writeTokenError(w, err)
			return
		}

		if res.LimitReached {
			metrics.TokenRequests.WithLabelValues("rate_limited").Inc()
			writeRateHeaders(w, res)
			httpx.WriteError(w, http.StatusTooManyRequests, "too_many_requests",
				"rate limit excedido para la organización", 2120)
			return
		}

		metrics.TokenRequests.WithLabelValues("issued").Inc()
		metrics.TokenGenerationLatency.Observe(float64(time.Since(start).Milliseconds()))

		writeRateHeaders(w, res)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		httpx.WriteJSON(w, http.StatusOK, tokenResponse{
			AccessToken: res.Token.Serialized,
			TokenType:   "Bearer",
			ExpiresIn:   int64(res.Token.ExpiresAt.Sub(res.Token.IssuedAt).Seconds()),
		})
	}
}

// writeRateHeaders expone el estado de la ventana también en respuestas OK,
// para que los clientes puedan auto-regularse antes del 429.
func writeRateHeaders(w http.ResponseWriter, res token.Result) {
	st := res.RateLimiterStatus
	if st.MaxRequests == 0 {
		return
	}
	w.Header().Set("X-Rate-Limit-Limit", strconv.Itoa(st.MaxRequests))
	w.Header().Set("X-Rate-Limit-Interval", strconv.FormatInt(st.RateInterval.Milliseconds(), 10))
	w.Header().Set("X-Rate-Limit-Remaining", strconv.Itoa(st.Remaining))
}

// writeTokenError mapea el error tipado del flujo a status + envelope.
// Cualquier error no tipado (storage caído, etc.) es un 500 opaco.
func writeTokenError(w http.ResponseWriter, err error) {
	terr, ok := token.AsError(err)
	if !ok {
		metrics.TokenRequests.WithLabelValues("internal_error").Inc()
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "error interno", 2199)
		return
	}
	metrics.TokenRequests.WithLabelValues(terr.Code).Inc()

	switch terr.Code {
	case token.CodeClientAssertionRequestValidationFailed:
		httpx.WriteError(w, http.StatusBadRequest, terr.Code, terr.Detail, 2102)

	case token.CodeClientAssertionValidationFailed:
		httpx.WriteError(w, http.StatusUnauthorized, terr.Code, terr.Detail, 2103)

	case token.CodeClientAssertionSignatureValidationFailed:
		httpx.WriteError(w, http.StatusUnauthorized, terr.Code, terr.Detail, 2104)

	case token.CodeTokenGenerationStatesEntryNotFound:
		httpx.WriteError(w, http.StatusUnauthorized, terr.Code, terr.Detail, 2105)

	case token.CodeInvalidTokenClientKidPurposeEntry:
		httpx.WriteError(w, http.StatusUnauthorized, terr.Code, terr.Detail, 2106)

	case token.CodeKeyTypeMismatch:
		httpx.WriteError(w, http.StatusUnauthorized, terr.Code, terr.Detail, 2107)

	case token.CodePlatformStateValidationFailed:
		// 403: credencial válida pero el estado de plataforma no autoriza.
		// Se reportan TODAS las condiciones que fallaron, no la primera.
		httpx.WriteErrorReasons(w, http.StatusForbidden, terr.Code,
			"platform states no autorizan la emisión", 2108, terr.Reasons)

	case token.CodeTokenSigningFailed:
		httpx.WriteError(w, http.StatusInternalServerError, terr.Code, "no se pudo firmar el token", 2109)

	case token.CodeFallbackAuditFailed:
		// El token se firmó pero no se pudo auditar: se descarta, el cliente
		// nunca lo ve.
		httpx.WriteError(w, http.StatusInternalServerError, terr.Code, "auditoría falló", 2110)

	default:
		httpx.WriteError(w, http.StatusInternalServerError, terr.Code, terr.Detail, 2199)
	}
}
