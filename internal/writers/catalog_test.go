package writers

import (
	"context"
	"testing"

	"github.com/pagopa/interop-token-platform/internal/kvstore"
	"github.com/pagopa/interop-token-platform/internal/model"
)

func descriptorPayload(descriptorID, state string, lifespan int64) model.EServiceDescriptorEvent {
	return model.EServiceDescriptorEvent{
		EServiceID: "e1",
		Descriptor: model.Descriptor{
			ID:              descriptorID,
			State:           state,
			Audience:        []string{"aud.e1"},
			VoucherLifespan: lifespan,
		},
	}
}

func TestDescriptorActivatedFanout(t *testing.T) {
	ctx := context.Background()
	fx := newWriterFixture()
	w := NewCatalogWriter(fx.platform, fx.tokens, nop())

	// dos entradas dependen de e1#d1, una de e1#d9
	for _, c := range []string{"c1", "c2"} {
		e := boundEntry(c)
		e.DescriptorState = model.ItemStateInactive
		e.DescriptorAudience = nil
		e.DescriptorVoucherLifespan = 0
		fx.seedTokenEntry(t, e)
	}
	other := boundEntry("c3")
	other.GSIPKEServiceIDDescriptorID = model.EServiceDescriptorKey("e1", "d9")
	other.DescriptorState = model.ItemStateInactive
	fx.seedTokenEntry(t, other)

	env := envelope(t, 1, model.EventDescriptorActivated, descriptorPayload("d1", model.DescriptorStatePublished, 600))
	if err := w.Handle(ctx, env); err != nil {
		t.Fatalf("handle: %v", err)
	}

	// entrada canónica creada
	cat, err := fx.platform.GetCatalog(ctx, model.EServiceDescriptorPK("e1", "d1"))
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if cat.State != model.ItemStateActive || cat.DescriptorVoucherLifespan != 600 {
		t.Fatalf("unexpected catalog entry: %+v", cat)
	}

	// fan-out: las dos de d1 activas y con backfill de audience/lifespan
	for _, c := range []string{"c1", "c2"} {
		e := fx.getTokenEntry(t, c, "k1", "p1")
		if e.DescriptorState != model.ItemStateActive {
			t.Fatalf("%s: descriptor state not patched: %+v", c, e)
		}
		if len(e.DescriptorAudience) == 0 || e.DescriptorVoucherLifespan != 600 {
			t.Fatalf("%s: audience/lifespan not backfilled: %+v", c, e)
		}
	}
	// la de d9 no se toca
	if e := fx.getTokenEntry(t, "c3", "k1", "p1"); e.DescriptorState != model.ItemStateInactive {
		t.Fatalf("d9 entry must not be patched: %+v", e)
	}
}

func TestStaleDescriptorEventSkipsFanout(t *testing.T) {
	ctx := context.Background()
	fx := newWriterFixture()
	w := NewCatalogWriter(fx.platform, fx.tokens, nop())
	fx.seedTokenEntry(t, boundEntry("c1"))

	// v2 primero (activo), después llega v1 reordenado (suspendido)
	if err := w.Handle(ctx, envelope(t, 2, model.EventDescriptorActivated, descriptorPayload("d1", model.DescriptorStatePublished, 600))); err != nil {
		t.Fatalf("v2: %v", err)
	}
	if err := w.Handle(ctx, envelope(t, 1, model.EventDescriptorSuspended, descriptorPayload("d1", model.DescriptorStateSuspended, 600))); err != nil {
		t.Fatalf("stale v1: %v", err)
	}

	cat, err := fx.platform.GetCatalog(ctx, model.EServiceDescriptorPK("e1", "d1"))
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if cat.State != model.ItemStateActive || cat.Version != 2 {
		t.Fatalf("stale event must not regress canonical state: %+v", cat)
	}
	if e := fx.getTokenEntry(t, "c1", "k1", "p1"); e.DescriptorState != model.ItemStateActive {
		t.Fatalf("stale event must not fan out: %+v", e)
	}
}

func TestDuplicateDescriptorDeliveryConverges(t *testing.T) {
	ctx := context.Background()
	fx := newWriterFixture()
	w := NewCatalogWriter(fx.platform, fx.tokens, nop())
	fx.seedTokenEntry(t, boundEntry("c1"))

	env := envelope(t, 1, model.EventDescriptorSuspended, descriptorPayload("d1", model.DescriptorStateSuspended, 600))
	if err := w.Handle(ctx, env); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := w.Handle(ctx, env); err != nil {
		t.Fatalf("redelivery must be a clean no-op: %v", err)
	}

	if e := fx.getTokenEntry(t, "c1", "k1", "p1"); e.DescriptorState != model.ItemStateInactive {
		t.Fatalf("state after redelivery: %+v", e)
	}
}

func TestDescriptorArchived(t *testing.T) {
	ctx := context.Background()
	fx := newWriterFixture()
	w := NewCatalogWriter(fx.platform, fx.tokens, nop())
	fx.seedTokenEntry(t, boundEntry("c1"))

	if err := w.Handle(ctx, envelope(t, 1, model.EventDescriptorActivated, descriptorPayload("d1", model.DescriptorStatePublished, 600))); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := w.Handle(ctx, envelope(t, 2, model.EventDescriptorArchived, descriptorPayload("d1", model.DescriptorStateArchived, 600))); err != nil {
		t.Fatalf("archive: %v", err)
	}

	// entrada canónica borrada, entradas del índice apagadas pero presentes
	if _, err := fx.platform.GetCatalog(ctx, model.EServiceDescriptorPK("e1", "d1")); err != kvstore.ErrNotFound {
		t.Fatalf("canonical entry must be deleted, got %v", err)
	}
	if e := fx.getTokenEntry(t, "c1", "k1", "p1"); e.DescriptorState != model.ItemStateInactive {
		t.Fatalf("index entry must be inactive, not deleted: %+v", e)
	}
}

func TestDescriptorQuotasUpdated(t *testing.T) {
	ctx := context.Background()
	fx := newWriterFixture()
	w := NewCatalogWriter(fx.platform, fx.tokens, nop())
	fx.seedTokenEntry(t, boundEntry("c1"))

	if err := w.Handle(ctx, envelope(t, 1, model.EventDescriptorActivated, descriptorPayload("d1", model.DescriptorStatePublished, 600))); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := w.Handle(ctx, envelope(t, 2, model.EventDescriptorQuotasUpdated, descriptorPayload("d1", model.DescriptorStatePublished, 1200))); err != nil {
		t.Fatalf("quotas: %v", err)
	}

	cat, err := fx.platform.GetCatalog(ctx, model.EServiceDescriptorPK("e1", "d1"))
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if cat.DescriptorVoucherLifespan != 1200 || cat.State != model.ItemStateActive {
		t.Fatalf("quotas not applied: %+v", cat)
	}
	if e := fx.getTokenEntry(t, "c1", "k1", "p1"); e.DescriptorVoucherLifespan != 1200 {
		t.Fatalf("quotas not fanned out: %+v", e)
	}
}

func TestIrrelevantCatalogEventAcked(t *testing.T) {
	fx := newWriterFixture()
	w := NewCatalogWriter(fx.platform, fx.tokens, nop())

	env := envelope(t, 1, "EServiceNameUpdated", map[string]string{"eserviceId": "e1"})
	if err := w.Handle(context.Background(), env); err != nil {
		t.Fatalf("unknown event must be acked without effect: %v", err)
	}
}
