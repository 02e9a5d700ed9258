// Package rate implementa el límite de requests por organización del token
// endpoint. Ventana fija por organización; llegar al máximo NO es un error,
// es un resultado normal tipado (LimitReached) que corta el flujo antes de
// firmar y auditar.
//
// El backend es inyectable: Redis para deployments multi-instancia, memoria
// para single-instance/dev. Ambos se testean.
package rate

import (
	"context"
	"time"
)

type Config struct {
	MaxRequests  int
	RateInterval time.Duration
}

// Status es el resultado de un consume. Viaja hasta la respuesta del token
// endpoint (headers X-Rate-Limit-*).
type Status struct {
	LimitReached bool
	MaxRequests  int
	RateInterval time.Duration
	Remaining    int
}

type Limiter interface {
	// Consume registra un hit para la organización y retorna el estado de la
	// ventana. Con LimitReached=true el caller no debe firmar ni auditar.
	Consume(ctx context.Context, organizationID string) (Status, error)
}

func (c Config) status(hits int64) Status {
	remaining := int64(c.MaxRequests) - hits
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		LimitReached: hits > int64(c.MaxRequests),
		MaxRequests:  c.MaxRequests,
		RateInterval: c.RateInterval,
		Remaining:    int(remaining),
	}
}
