package writers

import (
	"context"
	"testing"
	"time"

	"github.com/pagopa/interop-token-platform/internal/model"
)

func agreementPayload(id, descriptorID, state string, activatedAt time.Time) model.AgreementEvent {
	created := activatedAt.Add(-time.Hour)
	return model.AgreementEvent{
		Agreement: model.Agreement{
			ID:           id,
			ConsumerID:   "t1",
			EServiceID:   "e1",
			DescriptorID: descriptorID,
			State:        state,
			Timestamps: model.AgreementTimestamps{
				CreatedAt:   created,
				ActivatedAt: &activatedAt,
			},
		},
	}
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAgreementActivatedFanout(t *testing.T) {
	ctx := context.Background()
	fx := newWriterFixture()
	w := NewAgreementWriter(fx.platform, fx.tokens, nop())

	e := boundEntry("c1")
	e.AgreementID = ""
	e.AgreementState = model.ItemStateInactive
	fx.seedTokenEntry(t, e)

	env := envelope(t, 1, model.EventAgreementActivated, agreementPayload("a1", "d1", model.AgreementStateActive, t0))
	if err := w.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}

	ag, err := fx.platform.GetAgreement(ctx, model.AgreementPK("a1"))
	if err != nil {
		t.Fatalf("get agreement: %v", err)
	}
	if ag.State != model.ItemStateActive || ag.AgreementDescriptorID != "d1" {
		t.Fatalf("unexpected canonical entry: %+v", ag)
	}

	got := fx.getTokenEntry(t, "c1", "k1", "p1")
	if got.AgreementID != "a1" || got.AgreementState != model.ItemStateActive {
		t.Fatalf("fan-out missing: %+v", got)
	}
}

func TestNonLatestAgreementDoesNotFanOut(t *testing.T) {
	ctx := context.Background()
	fx := newWriterFixture()
	w := NewAgreementWriter(fx.platform, fx.tokens, nop())

	e := boundEntry("c1")
	fx.seedTokenEntry(t, e)

	// a2 (más nuevo) llega primero
	if err := w.Handle(ctx, envelope(t, 1, model.EventAgreementActivated,
		agreementPayload("a2", "d2", model.AgreementStateActive, t0.Add(time.Hour)))); err != nil {
		t.Fatalf("a2: %v", err)
	}
	// después llega el viejo a1: upsert canónico sí, fan-out no
	if err := w.Handle(ctx, envelope(t, 1, model.EventAgreementSuspended,
		agreementPayload("a1", "d1", model.AgreementStateSuspended, t0))); err != nil {
		t.Fatalf("a1: %v", err)
	}

	if _, err := fx.platform.GetAgreement(ctx, model.AgreementPK("a1")); err != nil {
		t.Fatalf("a1 canonical entry must exist: %v", err)
	}
	got := fx.getTokenEntry(t, "c1", "k1", "p1")
	if got.AgreementID != "a2" {
		t.Fatalf("non-latest agreement must not overwrite the index: %+v", got)
	}
	if got.AgreementState != model.ItemStateActive {
		t.Fatalf("index regressed to non-latest state: %+v", got)
	}
}

func TestAgreementUpgradedRefreshesDescriptor(t *testing.T) {
	ctx := context.Background()
	fx := newWriterFixture()
	w := NewAgreementWriter(fx.platform, fx.tokens, nop())

	// descriptor destino del upgrade ya publicado
	if _, err := fx.platform.UpsertCatalog(ctx, model.PlatformStatesCatalogEntry{
		PK:                        model.EServiceDescriptorPK("e1", "d2"),
		State:                     model.ItemStateActive,
		DescriptorAudience:        []string{"aud.e1.v2"},
		DescriptorVoucherLifespan: 900,
		Version:                   1,
	}); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	fx.seedTokenEntry(t, boundEntry("c1"))

	env := envelope(t, 1, model.EventAgreementUpgraded, agreementPayload("a2", "d2", model.AgreementStateActive, t0))
	if err := w.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got := fx.getTokenEntry(t, "c1", "k1", "p1")
	if got.AgreementID != "a2" {
		t.Fatalf("agreement not updated: %+v", got)
	}
	if got.GSIPKEServiceIDDescriptorID != model.EServiceDescriptorKey("e1", "d2") {
		t.Fatalf("descriptor key not refreshed: %+v", got)
	}
	if got.DescriptorVoucherLifespan != 900 || got.DescriptorAudience[0] != "aud.e1.v2" {
		t.Fatalf("descriptor denorm not refreshed: %+v", got)
	}
}

func TestStaleAgreementVersionSkipped(t *testing.T) {
	ctx := context.Background()
	fx := newWriterFixture()
	w := NewAgreementWriter(fx.platform, fx.tokens, nop())
	fx.seedTokenEntry(t, boundEntry("c1"))

	if err := w.Handle(ctx, envelope(t, 2, model.EventAgreementActivated,
		agreementPayload("a1", "d1", model.AgreementStateActive, t0))); err != nil {
		t.Fatalf("v2: %v", err)
	}
	if err := w.Handle(ctx, envelope(t, 1, model.EventAgreementSuspended,
		agreementPayload("a1", "d1", model.AgreementStateSuspended, t0))); err != nil {
		t.Fatalf("stale v1: %v", err)
	}

	ag, err := fx.platform.GetAgreement(ctx, model.AgreementPK("a1"))
	if err != nil {
		t.Fatalf("get agreement: %v", err)
	}
	if ag.State != model.ItemStateActive || ag.Version != 2 {
		t.Fatalf("stale version must not regress: %+v", ag)
	}
	if got := fx.getTokenEntry(t, "c1", "k1", "p1"); got.AgreementState != model.ItemStateActive {
		t.Fatalf("stale event must not fan out: %+v", got)
	}
}
