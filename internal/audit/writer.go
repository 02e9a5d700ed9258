// Package audit persiste el registro de cada token firmado. La auditoría es
// obligatoria, no best-effort: si fallan el publish al bus Y el fallback a
// object storage, la operación completa falla y el caller NO debe devolver
// el token aunque ya esté firmado.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagopa/interop-token-platform/internal/bus"
	"github.com/pagopa/interop-token-platform/internal/objectstore"
)

// FallbackError: fallaron las dos vías de auditoría.
type FallbackError struct {
	PublishErr  error
	FallbackErr error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("fallback audit failed: publish: %v; fallback: %v", e.PublishErr, e.FallbackErr)
}

type Writer struct {
	publisher bus.Publisher
	fallback  objectstore.Store
	log       *zap.Logger
}

func NewWriter(publisher bus.Publisher, fallback objectstore.Store, log *zap.Logger) *Writer {
	return &Writer{publisher: publisher, fallback: fallback, log: log}
}

// Record publica el registro al bus; si falla, lo escribe al object storage
// bajo token-details/{yyyyMMdd}/{yyyyMMdd}_{uuid}. Si ambas vías fallan
// retorna FallbackError: hard error para el caller.
func (w *Writer) Record(ctx context.Context, rec TokenAuditRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	pubErr := w.publisher.Publish(ctx, payload)
	if pubErr == nil {
		return nil
	}
	w.log.Warn("audit publish failed, falling back to object storage",
		zap.String("jwt_id", rec.JWTID), zap.Error(pubErr))

	key := fallbackKey(time.Now().UTC())
	if fbErr := w.fallback.Put(ctx, key, payload); fbErr != nil {
		return &FallbackError{PublishErr: pubErr, FallbackErr: fbErr}
	}
	w.log.Info("audit record written to fallback storage",
		zap.String("jwt_id", rec.JWTID), zap.String("key", key))
	return nil
}

func fallbackKey(now time.Time) string {
	ymd := now.Format("20060102")
	return fmt.Sprintf("token-details/%s/%s_%s", ymd, ymd, uuid.NewString())
}
