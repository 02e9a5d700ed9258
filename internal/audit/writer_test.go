package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakePublisher struct {
	err      error
	payloads [][]byte
}

func (p *fakePublisher) Publish(_ context.Context, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

type fakeObjectStore struct {
	err     error
	objects map[string][]byte
}

func (s *fakeObjectStore) Put(_ context.Context, key string, body []byte) error {
	if s.err != nil {
		return s.err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = body
	return nil
}

func testRecord() TokenAuditRecord {
	return TokenAuditRecord{
		JWTID:          "jti-1",
		CorrelationID:  "corr-1",
		ClientID:       "c1",
		OrganizationID: "t1",
	}
}

func TestRecordPublishes(t *testing.T) {
	pub := &fakePublisher{}
	fb := &fakeObjectStore{}
	w := NewWriter(pub, fb, zap.NewNop())

	if err := w.Record(context.Background(), testRecord()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(pub.payloads) != 1 {
		t.Fatalf("expected 1 published record, got %d", len(pub.payloads))
	}
	if len(fb.objects) != 0 {
		t.Fatal("fallback must not be touched when publish succeeds")
	}

	var rec TokenAuditRecord
	if err := json.Unmarshal(pub.payloads[0], &rec); err != nil {
		t.Fatalf("published payload not JSON: %v", err)
	}
	if rec.JWTID != "jti-1" || rec.CorrelationID != "corr-1" {
		t.Fatalf("payload mismatch: %+v", rec)
	}
}

func TestRecordFallsBackToObjectStorage(t *testing.T) {
	pub := &fakePublisher{err: errors.New("bus down")}
	fb := &fakeObjectStore{}
	w := NewWriter(pub, fb, zap.NewNop())

	if err := w.Record(context.Background(), testRecord()); err != nil {
		t.Fatalf("record with working fallback must succeed: %v", err)
	}
	if len(fb.objects) != 1 {
		t.Fatalf("expected 1 fallback object, got %d", len(fb.objects))
	}
	ymd := time.Now().UTC().Format("20060102")
	for key := range fb.objects {
		if !strings.HasPrefix(key, "token-details/"+ymd+"/"+ymd+"_") {
			t.Fatalf("unexpected fallback key %q", key)
		}
	}
}

func TestRecordBothPathsFail(t *testing.T) {
	pub := &fakePublisher{err: errors.New("bus down")}
	fb := &fakeObjectStore{err: errors.New("disk full")}
	w := NewWriter(pub, fb, zap.NewNop())

	err := w.Record(context.Background(), testRecord())
	var fberr *FallbackError
	if !errors.As(err, &fberr) {
		t.Fatalf("expected FallbackError, got %v", err)
	}
	if fberr.PublishErr == nil || fberr.FallbackErr == nil {
		t.Fatalf("both causes must be kept: %+v", fberr)
	}
}
