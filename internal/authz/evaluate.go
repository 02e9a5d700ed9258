// Package authz contiene la decisión pura de autorización: dada una entrada
// resuelta del Token Generation Index, ¿puede este cliente pedir un token?
package authz

import (
	"fmt"
	"strings"

	"github.com/pagopa/interop-token-platform/internal/model"
)

const GrantTypeClientCredentials = "client_credentials"

// ValidationError junta TODAS las condiciones que fallan, no solo la
// primera: el caller reporta la lista completa en una sola respuesta.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("platform state validation failed: %s", strings.Join(e.Reasons, ", "))
}

// Evaluate decide authorize/deny.
//   - clientKind api: autorizado incondicionalmente (sin acople a
//     purpose/agreement).
//   - clientKind consumer: autorizado sii agreement, descriptor y purpose
//     están los tres activos.
func Evaluate(entry model.TokenGenStatesEntry, grantType string) error {
	if grantType != GrantTypeClientCredentials {
		return fmt.Errorf("unsupported grant type %q", grantType)
	}

	switch e := entry.(type) {
	case *model.TokenGenStatesClientEntry:
		// clave API pura: no hay estado de plataforma que chequear
		return nil

	case *model.TokenGenStatesClientPurposeEntry:
		if e.ClientKind == model.ClientKindAPI {
			return nil
		}
		var reasons []string
		if e.AgreementState != model.ItemStateActive {
			reasons = append(reasons, "inactive agreement")
		}
		if e.DescriptorState != model.ItemStateActive {
			reasons = append(reasons, "inactive e-service")
		}
		if e.PurposeState != model.ItemStateActive {
			reasons = append(reasons, "inactive purpose")
		}
		if len(reasons) > 0 {
			return &ValidationError{Reasons: reasons}
		}
		return nil

	default:
		return fmt.Errorf("unknown token-generation entry type %T", entry)
	}
}
