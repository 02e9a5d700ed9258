package writers

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/pagopa/interop-token-platform/internal/kvstore"
	"github.com/pagopa/interop-token-platform/internal/kvstore/memory"
	"github.com/pagopa/interop-token-platform/internal/model"
	"github.com/pagopa/interop-token-platform/internal/platformstate"
	"github.com/pagopa/interop-token-platform/internal/tokengenstate"
)

type writerFixture struct {
	kv       *memory.Store
	platform *platformstate.Store
	tokens   *tokengenstate.Store
}

func newWriterFixture() *writerFixture {
	kv := memory.New()
	return &writerFixture{
		kv:       kv,
		platform: platformstate.New(kv),
		tokens:   tokengenstate.New(kv),
	}
}

func (f *writerFixture) seedTokenEntry(t *testing.T, e model.TokenGenStatesClientPurposeEntry) {
	t.Helper()
	doc, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
	if err := f.kv.Put(context.Background(), kvstore.TableTokenGenStates, e.PK, doc); err != nil {
		t.Fatalf("seed entry %s: %v", e.PK, err)
	}
}

func (f *writerFixture) getTokenEntry(t *testing.T, clientID, kid, purposeID string) *model.TokenGenStatesClientPurposeEntry {
	t.Helper()
	e, err := f.tokens.GetClientPurposeEntry(context.Background(), clientID, kid, purposeID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	return e
}

func envelope(t *testing.T, version int64, eventType string, payload any) model.EventEnvelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return model.EventEnvelope{
		StreamID: "stream-1",
		Version:  version,
		Type:     eventType,
		Payload:  raw,
	}
}

// entrada mínima válida apuntando a e1#d1 / purpose p1
func boundEntry(clientID string) model.TokenGenStatesClientPurposeEntry {
	return model.TokenGenStatesClientPurposeEntry{
		PK:                          model.ClientKidPurposePK(clientID, "k1", "p1"),
		ClientKind:                  model.ClientKindConsumer,
		PublicKey:                   "pem",
		ConsumerID:                  "t1",
		AgreementID:                 "a1",
		AgreementState:              model.ItemStateActive,
		GSIPKConsumerIDEServiceID:   model.ConsumerEServiceKey("t1", "e1"),
		GSIPKEServiceIDDescriptorID: model.EServiceDescriptorKey("e1", "d1"),
		DescriptorState:             model.ItemStateActive,
		DescriptorAudience:          []string{"aud.e1"},
		DescriptorVoucherLifespan:   600,
		GSIPKPurposeID:              "p1",
		PurposeState:                model.ItemStateActive,
		PurposeVersionID:            "pv1",
		GSIPKKid:                    "k1",
		GSIPKClientIDPurposeID:      model.ClientPurposeKey(clientID, "p1"),
	}
}

func nop() *zap.Logger { return zap.NewNop() }
