package writers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagopa/interop-token-platform/internal/kvstore"
	"github.com/pagopa/interop-token-platform/internal/metrics"
	"github.com/pagopa/interop-token-platform/internal/model"
	"github.com/pagopa/interop-token-platform/internal/observability/logger"
	"github.com/pagopa/interop-token-platform/internal/platformstate"
	"github.com/pagopa/interop-token-platform/internal/tokengenstate"
)

// AgreementWriter procesa el ciclo de vida de agreements. La invariante
// clave: entre los agreements que comparten consumer+eservice solo el de
// mayor agreementTimestamp es "latest", y solo el latest propaga al índice.
type AgreementWriter struct {
	platform *platformstate.Store
	tokens   *tokengenstate.Store
	log      *zap.Logger
}

func NewAgreementWriter(platform *platformstate.Store, tokens *tokengenstate.Store, log *zap.Logger) *AgreementWriter {
	return &AgreementWriter{platform: platform, tokens: tokens, log: log}
}

func (w *AgreementWriter) Handle(ctx context.Context, env model.EventEnvelope) error {
	switch env.Type {
	case model.EventAgreementAdded,
		model.EventAgreementActivated,
		model.EventAgreementSuspended,
		model.EventAgreementUnsuspended,
		model.EventAgreementUpgraded,
		model.EventAgreementArchived:
		return w.apply(ctx, env)
	default:
		return nil
	}
}

func (w *AgreementWriter) apply(ctx context.Context, env model.EventEnvelope) error {
	ev, err := decodeAgreementEvent(env)
	if err != nil {
		return err
	}
	ag := ev.Agreement
	pk := model.AgreementPK(ag.ID)
	gsi := model.ConsumerEServiceKey(ag.ConsumerID, ag.EServiceID)

	applied, err := w.platform.UpsertAgreement(ctx, model.PlatformStatesAgreementEntry{
		PK:                        pk,
		State:                     model.AgreementStateToItemState(ag.State),
		Version:                   env.Version,
		GSIPKConsumerIDEServiceID: gsi,
		AgreementTimestamp:        agreementTimestamp(ag),
		AgreementDescriptorID:     ag.DescriptorID,
	})
	if err != nil {
		return fmt.Errorf("upsert agreement entry %s: %w", pk, err)
	}
	metrics.WriterEvents.WithLabelValues("agreement", env.Type).Inc()
	if !applied {
		w.log.Debug("stale agreement event skipped", logger.EntryPK(pk), logger.EventVersion(env.Version))
		return nil
	}

	// solo el agreement latest para su par consumer+eservice propaga
	latest, err := w.platform.IsLatestAgreement(ctx, gsi, ag.ID)
	if err != nil {
		return fmt.Errorf("latest check for %s: %w", gsi, err)
	}
	if !latest {
		w.log.Debug("agreement is not latest, no fan-out", logger.EntryPK(pk))
		return nil
	}

	return w.fanout(ctx, env.Type, &ag, gsi)
}

func (w *AgreementWriter) fanout(ctx context.Context, eventType string, ag *model.Agreement, gsi string) error {
	entries, err := w.tokens.ListByConsumerEService(ctx, gsi)
	if err != nil {
		return fmt.Errorf("query token entries by %s: %w", gsi, err)
	}

	// en un upgrade el descriptor cambia: refrescar la copia denormalizada
	// del descriptor desde el estado canónico (si ya existe)
	var catalog *model.PlatformStatesCatalogEntry
	if eventType == model.EventAgreementUpgraded {
		c, err := w.platform.GetCatalog(ctx, model.EServiceDescriptorPK(ag.EServiceID, ag.DescriptorID))
		if err != nil && err != kvstore.ErrNotFound {
			return fmt.Errorf("read catalog entry for upgrade: %w", err)
		}
		catalog = c
	}

	state := model.AgreementStateToItemState(ag.State)
	for _, e := range entries {
		e.AgreementID = ag.ID
		e.AgreementState = state
		if catalog != nil {
			e.GSIPKEServiceIDDescriptorID = model.EServiceDescriptorKey(ag.EServiceID, ag.DescriptorID)
			e.DescriptorState = catalog.State
			e.DescriptorAudience = catalog.DescriptorAudience
			e.DescriptorVoucherLifespan = catalog.DescriptorVoucherLifespan
		}
		applied, err := w.tokens.PatchClientPurposeEntry(ctx, e)
		if err != nil {
			return fmt.Errorf("patch token entry %s: %w", e.PK, err)
		}
		if applied {
			metrics.WriterFanoutPatches.WithLabelValues("agreement").Inc()
		}
	}
	return nil
}

// agreementTimestamp es la clave de orden del invariante "latest":
// activación si existe, si no creación.
func agreementTimestamp(ag model.Agreement) time.Time {
	if ag.Timestamps.ActivatedAt != nil {
		return *ag.Timestamps.ActivatedAt
	}
	return ag.Timestamps.CreatedAt
}

func decodeAgreementEvent(env model.EventEnvelope) (*model.AgreementEvent, error) {
	var ev model.AgreementEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
	}
	if ev.Agreement.ID == "" || ev.Agreement.ConsumerID == "" || ev.Agreement.EServiceID == "" {
		return nil, fmt.Errorf("%s payload without agreement identifiers", env.Type)
	}
	return &ev, nil
}
