package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pagopa/interop-token-platform/internal/model"
)

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]Message
	acked   []string
}

func (s *scriptedSource) Fetch(ctx context.Context, _ int64) ([]Message, error) {
	s.mu.Lock()
	if len(s.batches) == 0 {
		s.mu.Unlock()
		// sin más mensajes: bloquear hasta cancelación como haría el bus real
		<-ctx.Done()
		return nil, ctx.Err()
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	s.mu.Unlock()
	return b, nil
}

func (s *scriptedSource) Ack(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = append(s.acked, id)
	return nil
}

func (s *scriptedSource) ackedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acked...)
}

type recordingHandler struct {
	mu      sync.Mutex
	seen    []string
	failOn  string
	failErr error
}

func (h *recordingHandler) Handle(_ context.Context, env model.EventEnvelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if env.Type == h.failOn {
		return h.failErr
	}
	h.seen = append(h.seen, env.Type)
	return nil
}

func msg(id, streamID, eventType string, version int64) Message {
	return Message{
		ID: id,
		Envelope: model.EventEnvelope{
			StreamID: streamID,
			Version:  version,
			Type:     eventType,
		},
	}
}

func runBriefly(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); err != context.DeadlineExceeded && err != context.Canceled {
		t.Fatalf("run: %v", err)
	}
}

func TestRunnerProcessesStreamInOrder(t *testing.T) {
	src := &scriptedSource{batches: [][]Message{{
		msg("1-0", "s1", "A", 1),
		msg("1-1", "s1", "B", 2),
		msg("1-2", "s1", "C", 3),
	}}}
	h := &recordingHandler{}
	runBriefly(t, NewRunner(src, h, 2, zap.NewNop()))

	want := []string{"A", "B", "C"}
	if len(h.seen) != 3 {
		t.Fatalf("expected 3 handled, got %v", h.seen)
	}
	for i, typ := range want {
		if h.seen[i] != typ {
			t.Fatalf("order broken: %v", h.seen)
		}
	}
	if acked := src.ackedIDs(); len(acked) != 3 {
		t.Fatalf("expected 3 acks, got %v", acked)
	}
}

func TestRunnerStopsStreamOnFirstFailure(t *testing.T) {
	src := &scriptedSource{batches: [][]Message{{
		msg("1-0", "s1", "A", 1),
		msg("1-1", "s1", "BOOM", 2),
		msg("1-2", "s1", "C", 3),
		// otro stream sigue de largo
		msg("2-0", "s2", "D", 1),
	}}}
	h := &recordingHandler{failOn: "BOOM", failErr: errors.New("handler failed")}
	runBriefly(t, NewRunner(src, h, 2, zap.NewNop()))

	acked := src.ackedIDs()
	for _, id := range acked {
		if id == "1-1" || id == "1-2" {
			t.Fatalf("failed/following messages must stay unacked, got %v", acked)
		}
	}
	// el anterior al fallo sí se ackea, y s2 no se ve afectado
	found := map[string]bool{}
	for _, id := range acked {
		found[id] = true
	}
	if !found["1-0"] || !found["2-0"] {
		t.Fatalf("expected 1-0 and 2-0 acked, got %v", acked)
	}
	for _, typ := range h.seen {
		if typ == "C" {
			t.Fatalf("C must not run after BOOM: %v", h.seen)
		}
	}
}
