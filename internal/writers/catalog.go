// Package writers contiene los tres writer consumers que mantienen el
// Platform State Store y el Token Generation Index consistentes con los
// eventos de dominio. Cada paso es idempotente: la secuencia
// update-canónico → fan-out no es atómica, y un crash en el medio deja un
// estado intermedio válido que la reentrega corrige.
package writers

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/pagopa/interop-token-platform/internal/metrics"
	"github.com/pagopa/interop-token-platform/internal/model"
	"github.com/pagopa/interop-token-platform/internal/observability/logger"
	"github.com/pagopa/interop-token-platform/internal/platformstate"
	"github.com/pagopa/interop-token-platform/internal/tokengenstate"
)

// CatalogWriter procesa eventos de descriptores de e-service.
type CatalogWriter struct {
	platform *platformstate.Store
	tokens   *tokengenstate.Store
	log      *zap.Logger
}

func NewCatalogWriter(platform *platformstate.Store, tokens *tokengenstate.Store, log *zap.Logger) *CatalogWriter {
	return &CatalogWriter{platform: platform, tokens: tokens, log: log}
}

func (w *CatalogWriter) Handle(ctx context.Context, env model.EventEnvelope) error {
	switch env.Type {
	case model.EventDescriptorPublished, model.EventDescriptorActivated:
		return w.upsertAndFanout(ctx, env, model.ItemStateActive)
	case model.EventDescriptorSuspended:
		return w.upsertAndFanout(ctx, env, model.ItemStateInactive)
	case model.EventDescriptorQuotasUpdated:
		return w.quotasUpdated(ctx, env)
	case model.EventDescriptorArchived:
		return w.archived(ctx, env)
	default:
		// evento de catálogo que no afecta la autorización: ack y seguir
		return nil
	}
}

func (w *CatalogWriter) upsertAndFanout(ctx context.Context, env model.EventEnvelope, state model.ItemState) error {
	ev, err := decodeDescriptorEvent(env)
	if err != nil {
		return err
	}
	pk := model.EServiceDescriptorPK(ev.EServiceID, ev.Descriptor.ID)

	applied, err := w.platform.UpsertCatalog(ctx, model.PlatformStatesCatalogEntry{
		PK:                        pk,
		State:                     state,
		DescriptorAudience:        ev.Descriptor.Audience,
		DescriptorVoucherLifespan: ev.Descriptor.VoucherLifespan,
		Version:                   env.Version,
	})
	if err != nil {
		return fmt.Errorf("upsert catalog entry %s: %w", pk, err)
	}
	if !applied {
		// versión vieja: el estado actual ya es más nuevo, no propagar
		w.log.Debug("stale catalog event skipped", logger.EntryPK(pk), logger.EventVersion(env.Version))
		metrics.WriterEvents.WithLabelValues("catalog", env.Type).Inc()
		return nil
	}

	err = w.fanout(ctx, ev, func(e *model.TokenGenStatesClientPurposeEntry) {
		e.DescriptorState = state
		// backfill si la entrada se creó antes de conocer el descriptor
		if len(e.DescriptorAudience) == 0 {
			e.DescriptorAudience = ev.Descriptor.Audience
		}
		if e.DescriptorVoucherLifespan == 0 {
			e.DescriptorVoucherLifespan = ev.Descriptor.VoucherLifespan
		}
	})
	if err != nil {
		return err
	}
	metrics.WriterEvents.WithLabelValues("catalog", env.Type).Inc()
	return nil
}

func (w *CatalogWriter) quotasUpdated(ctx context.Context, env model.EventEnvelope) error {
	ev, err := decodeDescriptorEvent(env)
	if err != nil {
		return err
	}
	pk := model.EServiceDescriptorPK(ev.EServiceID, ev.Descriptor.ID)

	applied, err := w.platform.UpsertCatalog(ctx, model.PlatformStatesCatalogEntry{
		PK:                        pk,
		State:                     model.DescriptorStateToItemState(ev.Descriptor.State),
		DescriptorAudience:        ev.Descriptor.Audience,
		DescriptorVoucherLifespan: ev.Descriptor.VoucherLifespan,
		Version:                   env.Version,
	})
	if err != nil {
		return fmt.Errorf("upsert catalog entry %s: %w", pk, err)
	}
	if !applied {
		metrics.WriterEvents.WithLabelValues("catalog", env.Type).Inc()
		return nil
	}

	err = w.fanout(ctx, ev, func(e *model.TokenGenStatesClientPurposeEntry) {
		e.DescriptorVoucherLifespan = ev.Descriptor.VoucherLifespan
		e.DescriptorAudience = ev.Descriptor.Audience
	})
	if err != nil {
		return err
	}
	metrics.WriterEvents.WithLabelValues("catalog", env.Type).Inc()
	return nil
}

// archived borra la entrada canónica pero NO borra las entradas del índice:
// solo les apaga descriptorState. Las entradas se van solo cuando se revoca
// el binding cliente/clave/purpose (fuera de este repo).
func (w *CatalogWriter) archived(ctx context.Context, env model.EventEnvelope) error {
	ev, err := decodeDescriptorEvent(env)
	if err != nil {
		return err
	}
	pk := model.EServiceDescriptorPK(ev.EServiceID, ev.Descriptor.ID)

	if err := w.platform.DeleteCatalog(ctx, pk); err != nil {
		return fmt.Errorf("delete catalog entry %s: %w", pk, err)
	}
	err = w.fanout(ctx, ev, func(e *model.TokenGenStatesClientPurposeEntry) {
		e.DescriptorState = model.ItemStateInactive
	})
	if err != nil {
		return err
	}
	metrics.WriterEvents.WithLabelValues("catalog", env.Type).Inc()
	return nil
}

// fanout drena el índice eservice+descriptor completo y aplica el patch a
// cada entrada dependiente. El drain completo importa: un scan parcial
// dejaría entradas desactualizadas.
func (w *CatalogWriter) fanout(ctx context.Context, ev *model.EServiceDescriptorEvent, patch func(*model.TokenGenStatesClientPurposeEntry)) error {
	key := model.EServiceDescriptorKey(ev.EServiceID, ev.Descriptor.ID)
	entries, err := w.tokens.ListByEServiceDescriptor(ctx, key)
	if err != nil {
		return fmt.Errorf("query token entries by %s: %w", key, err)
	}
	for _, e := range entries {
		patch(&e)
		applied, err := w.tokens.PatchClientPurposeEntry(ctx, e)
		if err != nil {
			return fmt.Errorf("patch token entry %s: %w", e.PK, err)
		}
		if applied {
			metrics.WriterFanoutPatches.WithLabelValues("catalog").Inc()
		}
	}
	w.log.Debug("descriptor fan-out done", logger.String("descriptor_key", key), logger.Count(len(entries)))
	return nil
}

func decodeDescriptorEvent(env model.EventEnvelope) (*model.EServiceDescriptorEvent, error) {
	var ev model.EServiceDescriptorEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
	}
	if ev.EServiceID == "" || ev.Descriptor.ID == "" {
		return nil, fmt.Errorf("%s payload without eservice/descriptor id", env.Type)
	}
	return &ev, nil
}
