package token

import (
	"fmt"
	"strings"
)

// Códigos de error del flujo de emisión. Todos son terminales para la
// request; ninguno se recupera en silencio. Rate limiting NO está acá:
// no es un error, es un resultado normal (Result.LimitReached).
const (
	CodeClientAssertionRequestValidationFailed   = "clientAssertionRequestValidationFailed"
	CodeClientAssertionValidationFailed          = "clientAssertionValidationFailed"
	CodeClientAssertionSignatureValidationFailed = "clientAssertionSignatureValidationFailed"
	CodeTokenGenerationStatesEntryNotFound       = "tokenGenerationStatesEntryNotFound"
	CodeInvalidTokenClientKidPurposeEntry        = "invalidTokenClientKidPurposeEntry"
	CodeKeyTypeMismatch                          = "keyTypeMismatch"
	CodePlatformStateValidationFailed            = "platformStateValidationFailed"
	CodeTokenSigningFailed                       = "tokenSigningFailed"
	CodeFallbackAuditFailed                      = "fallbackAuditFailed"
)

// Error es el error tipado del flujo. Reasons solo se llena para
// platformStateValidationFailed (la lista completa de condiciones que
// fallan, no solo la primera).
type Error struct {
	Code    string
	Detail  string
	Reasons []string
}

func (e *Error) Error() string {
	if len(e.Reasons) > 0 {
		return fmt.Sprintf("%s: %s", e.Code, strings.Join(e.Reasons, ", "))
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return e.Code
}

func newErr(code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// AsError extrae el *Error tipado si err lo es.
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
