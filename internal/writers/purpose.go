package writers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pagopa/interop-token-platform/internal/kvstore"
	"github.com/pagopa/interop-token-platform/internal/metrics"
	"github.com/pagopa/interop-token-platform/internal/model"
	"github.com/pagopa/interop-token-platform/internal/observability/logger"
	"github.com/pagopa/interop-token-platform/internal/platformstate"
	"github.com/pagopa/interop-token-platform/internal/tokengenstate"
)

// PurposeWriter procesa transiciones de versiones de purpose. El estado del
// purpose es derivado: activo si alguna versión está activa. Además hace el
// backfill perezoso de los campos agreement/descriptor que falten en las
// entradas del índice (una clave pudo atarse a un purpose antes de que
// existieran las entradas canónicas correspondientes).
type PurposeWriter struct {
	platform *platformstate.Store
	tokens   *tokengenstate.Store
	log      *zap.Logger
}

func NewPurposeWriter(platform *platformstate.Store, tokens *tokengenstate.Store, log *zap.Logger) *PurposeWriter {
	return &PurposeWriter{platform: platform, tokens: tokens, log: log}
}

func (w *PurposeWriter) Handle(ctx context.Context, env model.EventEnvelope) error {
	switch env.Type {
	case model.EventPurposeVersionActivated,
		model.EventPurposeVersionSuspended,
		model.EventPurposeVersionUnsuspended,
		model.EventPurposeVersionArchived:
		return w.apply(ctx, env)
	default:
		return nil
	}
}

func (w *PurposeWriter) apply(ctx context.Context, env model.EventEnvelope) error {
	ev, err := decodePurposeEvent(env)
	if err != nil {
		return err
	}
	p := ev.Purpose
	pk := model.PurposePK(p.ID)

	state := model.PurposeStateToItemState(p.Versions)
	versionID := model.ActivePurposeVersionID(p.Versions)

	applied, err := w.platform.UpsertPurpose(ctx, model.PlatformStatesPurposeEntry{
		PK:                pk,
		State:             state,
		PurposeVersionID:  versionID,
		PurposeEServiceID: p.EServiceID,
		PurposeConsumerID: p.ConsumerID,
		Version:           env.Version,
	})
	if err != nil {
		return fmt.Errorf("upsert purpose entry %s: %w", pk, err)
	}
	metrics.WriterEvents.WithLabelValues("purpose", env.Type).Inc()
	if !applied {
		w.log.Debug("stale purpose event skipped", logger.EntryPK(pk), logger.EventVersion(env.Version))
		return nil
	}

	return w.fanout(ctx, &p, state, versionID)
}

func (w *PurposeWriter) fanout(ctx context.Context, p *model.Purpose, state model.ItemState, versionID string) error {
	entries, err := w.tokens.ListByPurpose(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("query token entries by purpose %s: %w", p.ID, err)
	}

	for _, e := range entries {
		e.PurposeState = state
		if versionID != "" {
			e.PurposeVersionID = versionID
		}
		if err := w.backfill(ctx, &e, p); err != nil {
			return err
		}
		applied, err := w.tokens.PatchClientPurposeEntry(ctx, e)
		if err != nil {
			return fmt.Errorf("patch token entry %s: %w", e.PK, err)
		}
		if applied {
			metrics.WriterFanoutPatches.WithLabelValues("purpose").Inc()
		}
	}
	w.log.Debug("purpose fan-out done", logger.PurposeID(p.ID), logger.Count(len(entries)))
	return nil
}

// backfill completa los campos denormalizados que falten leyendo el estado
// canónico. Si el agreement/descriptor todavía no existe, la entrada queda
// como está y converge cuando lleguen esos eventos.
func (w *PurposeWriter) backfill(ctx context.Context, e *model.TokenGenStatesClientPurposeEntry, p *model.Purpose) error {
	gsi := model.ConsumerEServiceKey(p.ConsumerID, p.EServiceID)

	if e.AgreementID == "" {
		agreements, err := w.platform.ListAgreementsByConsumerEService(ctx, gsi)
		if err != nil {
			return fmt.Errorf("backfill agreement for %s: %w", e.PK, err)
		}
		if latest := latestAgreement(agreements); latest != nil {
			e.AgreementID = model.AgreementIDFromPK(latest.PK)
			e.AgreementState = latest.State
			e.GSIPKConsumerIDEServiceID = gsi

			if e.GSIPKEServiceIDDescriptorID == "" && latest.AgreementDescriptorID != "" {
				e.GSIPKEServiceIDDescriptorID = model.EServiceDescriptorKey(p.EServiceID, latest.AgreementDescriptorID)
			}
		}
	}

	if e.GSIPKEServiceIDDescriptorID != "" && e.DescriptorState == "" {
		eserviceID, descriptorID, ok := model.SplitEServiceDescriptorKey(e.GSIPKEServiceIDDescriptorID)
		if !ok {
			return fmt.Errorf("entry %s has malformed eservice-descriptor key", e.PK)
		}
		catalog, err := w.platform.GetCatalog(ctx, model.EServiceDescriptorPK(eserviceID, descriptorID))
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("backfill descriptor for %s: %w", e.PK, err)
		}
		e.DescriptorState = catalog.State
		e.DescriptorAudience = catalog.DescriptorAudience
		e.DescriptorVoucherLifespan = catalog.DescriptorVoucherLifespan
	}
	return nil
}

func latestAgreement(entries []model.PlatformStatesAgreementEntry) *model.PlatformStatesAgreementEntry {
	if len(entries) == 0 {
		return nil
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.AgreementTimestamp.After(latest.AgreementTimestamp) {
			latest = e
		}
	}
	return &latest
}

func decodePurposeEvent(env model.EventEnvelope) (*model.PurposeEvent, error) {
	var ev model.PurposeEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
	}
	if ev.Purpose.ID == "" {
		return nil, fmt.Errorf("%s payload without purpose id", env.Type)
	}
	return &ev, nil
}
