package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/pagopa/interop-token-platform/internal/kvstore"
)

func TestPutGetConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	doc := []byte(`{"PK":"AGREEMENT#a1","version":1}`)
	if err := s.Put(ctx, kvstore.TablePlatformStates, "AGREEMENT#a1", doc); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, kvstore.TablePlatformStates, "AGREEMENT#a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(doc) {
		t.Fatalf("get mismatch: %s", got)
	}

	// first-write-wins
	if err := s.Put(ctx, kvstore.TablePlatformStates, "AGREEMENT#a1", doc); err != kvstore.ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if _, err := s.Get(ctx, kvstore.TablePlatformStates, "AGREEMENT#missing"); err != kvstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateConditions(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.Update(ctx, kvstore.TablePlatformStates, "AGREEMENT#a1", []byte(`{}`), kvstore.Condition{})
	if err != kvstore.ErrNotFound {
		t.Fatalf("update on missing key: expected ErrNotFound, got %v", err)
	}

	if err := s.Put(ctx, kvstore.TablePlatformStates, "AGREEMENT#a1", []byte(`{"version":5}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	// version guard: 5 stored, VersionBelow 5 → stale
	err = s.Update(ctx, kvstore.TablePlatformStates, "AGREEMENT#a1", []byte(`{"version":5}`), kvstore.Condition{VersionBelow: 5})
	if err != kvstore.ErrConditionFailed {
		t.Fatalf("expected ErrConditionFailed for equal version, got %v", err)
	}
	err = s.Update(ctx, kvstore.TablePlatformStates, "AGREEMENT#a1", []byte(`{"version":6}`), kvstore.Condition{VersionBelow: 6})
	if err != nil {
		t.Fatalf("expected apply for newer version, got %v", err)
	}

	// attr guard
	if err := s.Put(ctx, kvstore.TableTokenGenStates, "CLIENTKIDPURPOSE#c#k#p", []byte(`{"GSIPK_purposeId":"p"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	err = s.Update(ctx, kvstore.TableTokenGenStates, "CLIENTKIDPURPOSE#c#k#p", []byte(`{"GSIPK_purposeId":"p","x":1}`),
		kvstore.Condition{RequireAttr: "GSIPK_purposeId"})
	if err != nil {
		t.Fatalf("attr guard should pass: %v", err)
	}
	err = s.Update(ctx, kvstore.TableTokenGenStates, "CLIENTKIDPURPOSE#c#k#p", []byte(`{}`),
		kvstore.Condition{RequireAttr: "agreementId"})
	if err != kvstore.ErrConditionFailed {
		t.Fatalf("expected ErrConditionFailed for missing attr, got %v", err)
	}
}

func TestQueryPaginationDrain(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 5; i++ {
		pk := fmt.Sprintf("CLIENTKIDPURPOSE#c%d#k#p", i)
		doc := []byte(fmt.Sprintf(`{"PK":%q,"GSIPK_eserviceId_descriptorId":"e1#d1"}`, pk))
		if err := s.Put(ctx, kvstore.TableTokenGenStates, pk, doc); err != nil {
			t.Fatalf("put %s: %v", pk, err)
		}
	}
	// una entrada de otro descriptor que NO debe aparecer
	if err := s.Put(ctx, kvstore.TableTokenGenStates, "CLIENTKIDPURPOSE#x#k#p",
		[]byte(`{"PK":"CLIENTKIDPURPOSE#x#k#p","GSIPK_eserviceId_descriptorId":"e1#d9"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	page, err := s.Query(ctx, kvstore.TableTokenGenStates, kvstore.IndexEServiceDescriptor, "e1#d1", "", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Items) != 2 || page.Cursor == "" {
		t.Fatalf("expected full first page with cursor, got %d items cursor %q", len(page.Items), page.Cursor)
	}

	all, err := kvstore.QueryAll(ctx, s, kvstore.TableTokenGenStates, kvstore.IndexEServiceDescriptor, "e1#d1", 2)
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 entries after drain, got %d", len(all))
	}
}
