package platformstate

import (
	"context"
	"testing"
	"time"

	"github.com/pagopa/interop-token-platform/internal/kvstore/memory"
	"github.com/pagopa/interop-token-platform/internal/model"
)

func TestUpsertAgreementVersionGuard(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())

	entry := model.PlatformStatesAgreementEntry{
		PK:                        model.AgreementPK("a1"),
		State:                     model.ItemStateActive,
		Version:                   1,
		GSIPKConsumerIDEServiceID: model.ConsumerEServiceKey("t1", "e1"),
	}

	applied, err := s.UpsertAgreement(ctx, entry)
	if err != nil || !applied {
		t.Fatalf("first upsert: applied=%v err=%v", applied, err)
	}

	// redelivery de la misma versión: no-op sin error
	applied, err = s.UpsertAgreement(ctx, entry)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if applied {
		t.Fatal("redelivery of same version must not apply")
	}

	// versión más nueva aplica
	entry.Version = 2
	entry.State = model.ItemStateInactive
	applied, err = s.UpsertAgreement(ctx, entry)
	if err != nil || !applied {
		t.Fatalf("newer version: applied=%v err=%v", applied, err)
	}

	// versión vieja out-of-order: no-op, el estado queda el nuevo
	entry.Version = 1
	entry.State = model.ItemStateActive
	applied, err = s.UpsertAgreement(ctx, entry)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if applied {
		t.Fatal("stale version must not apply")
	}

	got, err := s.GetAgreement(ctx, model.AgreementPK("a1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != model.ItemStateInactive || got.Version != 2 {
		t.Fatalf("entry regressed: state=%s version=%d", got.State, got.Version)
	}
}

func TestIsLatestAgreement(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())
	gsi := model.ConsumerEServiceKey("t1", "e1")

	// sin pares: latest
	latest, err := s.IsLatestAgreement(ctx, gsi, "a1")
	if err != nil || !latest {
		t.Fatalf("empty index: latest=%v err=%v", latest, err)
	}

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.UpsertAgreement(ctx, model.PlatformStatesAgreementEntry{
		PK: model.AgreementPK("a1"), State: model.ItemStateActive, Version: 1,
		GSIPKConsumerIDEServiceID: gsi, AgreementTimestamp: old,
	}); err != nil {
		t.Fatalf("upsert a1: %v", err)
	}

	// agreement solitario: latest
	latest, err = s.IsLatestAgreement(ctx, gsi, "a1")
	if err != nil || !latest {
		t.Fatalf("lone agreement: latest=%v err=%v", latest, err)
	}

	// llega un upgrade con timestamp posterior
	if _, err := s.UpsertAgreement(ctx, model.PlatformStatesAgreementEntry{
		PK: model.AgreementPK("a2"), State: model.ItemStateActive, Version: 1,
		GSIPKConsumerIDEServiceID: gsi, AgreementTimestamp: old.Add(time.Hour),
	}); err != nil {
		t.Fatalf("upsert a2: %v", err)
	}

	latest, err = s.IsLatestAgreement(ctx, gsi, "a1")
	if err != nil {
		t.Fatalf("latest a1: %v", err)
	}
	if latest {
		t.Fatal("a1 must not be latest after a2")
	}
	latest, err = s.IsLatestAgreement(ctx, gsi, "a2")
	if err != nil || !latest {
		t.Fatalf("a2 should be latest: latest=%v err=%v", latest, err)
	}
}
