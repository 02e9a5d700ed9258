package app

import (
	"context"

	"github.com/pagopa/interop-token-platform/internal/token"
)

type Container struct {
	TokenSvc *token.Service

	// Ready chequea las dependencias (storage) para /readyz. Puede ser nil.
	Ready func(ctx context.Context) error
}
