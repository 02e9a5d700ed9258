package http

import (
	"encoding/json"
	"net/http"
)

type apiError struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	ErrorCode        int      `json:"error_code,omitempty"`
	Reasons          []string `json:"reasons,omitempty"`
	RequestID        string   `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, desc string, errCode int) {
	WriteErrorReasons(w, status, code, desc, errCode, nil)
}

// WriteErrorReasons: variante con la lista de condiciones que fallaron
// (platformStateValidationFailed reporta todas, no solo la primera).
func WriteErrorReasons(w http.ResponseWriter, status int, code, desc string, errCode int, reasons []string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		ErrorCode:        errCode,
		Reasons:          reasons,
		RequestID:        rid,
	})
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
