// Package consumer es el runtime de los writer consumers: lee sobres de
// eventos de una fuente, los agrupa por stream y los entrega a un handler.
// La entrega es at-least-once: un evento que falla no se ackea y el bus lo
// reentrega; los handlers son idempotentes así que la reentrega converge.
package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pagopa/interop-token-platform/internal/model"
	"github.com/pagopa/interop-token-platform/internal/observability/logger"
)

// Handler procesa un sobre. Retornar error = no ack (fail the event);
// eventos desconocidos deben retornar nil (ack y seguir).
type Handler interface {
	Handle(ctx context.Context, env model.EventEnvelope) error
}

// Message es un sobre con su id de entrega en el bus.
type Message struct {
	ID       string
	Envelope model.EventEnvelope
}

// Source abstrae el bus de eventos (colaborador externo).
type Source interface {
	// Fetch bloquea hasta que haya mensajes o expire el poll.
	Fetch(ctx context.Context, max int64) ([]Message, error)
	Ack(ctx context.Context, id string) error
}

type Runner struct {
	source  Source
	handler Handler
	workers int
	log     *zap.Logger
}

func NewRunner(source Source, handler Handler, workers int, log *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{source: source, handler: handler, workers: workers, log: log}
}

// Run procesa hasta que el contexto se cancele. Streams distintos corren en
// paralelo; dentro de un stream los sobres van en orden de llegada.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := r.source.Fetch(ctx, 64)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Error("fetch failed, backing off", zap.Error(err))
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		r.dispatch(ctx, msgs)
	}
}

func (r *Runner) dispatch(ctx context.Context, msgs []Message) {
	// orden por stream: un slice por streamId, respetando orden de fetch
	streams := make(map[string][]Message)
	var order []string
	for _, m := range msgs {
		sid := m.Envelope.StreamID
		if _, ok := streams[sid]; !ok {
			order = append(order, sid)
		}
		streams[sid] = append(streams[sid], m)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, sid := range order {
		batch := streams[sid]
		g.Go(func() error {
			r.processStream(gctx, batch)
			return nil
		})
	}
	_ = g.Wait()
}

// processStream procesa el batch de un stream en orden. Al primer fallo se
// corta: los sobres posteriores del mismo stream quedan pendientes para
// preservar el orden en la reentrega.
func (r *Runner) processStream(ctx context.Context, batch []Message) {
	for _, m := range batch {
		log := r.log.With(
			logger.StreamID(m.Envelope.StreamID),
			logger.EventVersion(m.Envelope.Version),
			logger.EventType(m.Envelope.Type))

		if err := r.handler.Handle(ctx, m.Envelope); err != nil {
			log.Error("event failed, leaving unacked for redelivery", zap.Error(err))
			return
		}
		if err := r.source.Ack(ctx, m.ID); err != nil {
			log.Error("ack failed", zap.Error(err))
			return
		}
		log.Debug("event processed")
	}
}
