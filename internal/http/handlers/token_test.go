package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pagopa/interop-token-platform/internal/rate"
	"github.com/pagopa/interop-token-platform/internal/token"
)

type errorBody struct {
	Error     string   `json:"error"`
	ErrorCode int      `json:"error_code"`
	Reasons   []string `json:"reasons"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestWriteTokenErrorMapping(t *testing.T) {
	cases := []struct {
		code       string
		wantStatus int
	}{
		{token.CodeClientAssertionRequestValidationFailed, http.StatusBadRequest},
		{token.CodeClientAssertionValidationFailed, http.StatusUnauthorized},
		{token.CodeClientAssertionSignatureValidationFailed, http.StatusUnauthorized},
		{token.CodeTokenGenerationStatesEntryNotFound, http.StatusUnauthorized},
		{token.CodeInvalidTokenClientKidPurposeEntry, http.StatusUnauthorized},
		{token.CodeKeyTypeMismatch, http.StatusUnauthorized},
		{token.CodePlatformStateValidationFailed, http.StatusForbidden},
		{token.CodeTokenSigningFailed, http.StatusInternalServerError},
		{token.CodeFallbackAuditFailed, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeTokenError(rec, &token.Error{Code: tc.code, Detail: "x"})
			if rec.Code != tc.wantStatus {
				t.Fatalf("status want %d got %d", tc.wantStatus, rec.Code)
			}
			if body := decodeError(t, rec); body.Error != tc.code {
				t.Fatalf("error field want %q got %q", tc.code, body.Error)
			}
		})
	}
}

func TestWriteTokenErrorReasons(t *testing.T) {
	rec := httptest.NewRecorder()
	writeTokenError(rec, &token.Error{
		Code:    token.CodePlatformStateValidationFailed,
		Reasons: []string{"inactive agreement", "inactive purpose"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
	body := decodeError(t, rec)
	if len(body.Reasons) != 2 || body.Reasons[0] != "inactive agreement" {
		t.Fatalf("reasons must be reported in full: %+v", body)
	}
}

func TestWriteTokenErrorOpaqueInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeTokenError(rec, errors.New("pg: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != "internal_error" {
		t.Fatalf("internal errors must be opaque: %+v", body)
	}
}

func TestWriteRateHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	writeRateHeaders(rec, token.Result{RateLimiterStatus: rate.Status{
		MaxRequests:  100,
		RateInterval: time.Second,
		Remaining:    42,
	}})
	h := rec.Header()
	if h.Get("X-Rate-Limit-Limit") != "100" || h.Get("X-Rate-Limit-Interval") != "1000" || h.Get("X-Rate-Limit-Remaining") != "42" {
		t.Fatalf("unexpected headers: %v", h)
	}

	// sin estado del limiter (error temprano) no se emiten headers
	rec = httptest.NewRecorder()
	writeRateHeaders(rec, token.Result{})
	if rec.Header().Get("X-Rate-Limit-Limit") != "" {
		t.Fatalf("headers must be omitted without limiter status: %v", rec.Header())
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthzHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}
