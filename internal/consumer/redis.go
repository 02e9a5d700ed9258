package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/pagopa/interop-token-platform/internal/model"
)

// RedisSource lee sobres de un stream de Redis con consumer group. Cada
// writer (agreement/catalog/purpose) tiene su stream y su group; mensajes
// sin ack vuelven a entregarse al reiniciar (XAUTOCLAIM lo maneja la
// operación del bus, acá solo leemos lo nuevo y lo pendiente propio).
type RedisSource struct {
	client   *rdb.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
}

func NewRedisSource(ctx context.Context, client *rdb.Client, stream, group, consumerName string) (*RedisSource, error) {
	// crear el group si no existe (MKSTREAM crea el stream vacío)
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %s on %s: %w", group, stream, err)
	}
	return &RedisSource{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumerName,
		block:    5 * time.Second,
	}, nil
}

func (s *RedisSource) Fetch(ctx context.Context, max int64) ([]Message, error) {
	res, err := s.client.XReadGroup(ctx, &rdb.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    max,
		Block:    s.block,
	}).Result()
	if err == rdb.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Message
	for _, stream := range res {
		for _, m := range stream.Messages {
			env, err := decodeEnvelope(m.Values)
			if err != nil {
				// sobre malformado: hard error, queda pendiente para
				// alerta/reproceso, no se descarta en silencio
				return nil, fmt.Errorf("malformed envelope %s: %w", m.ID, err)
			}
			out = append(out, Message{ID: m.ID, Envelope: env})
		}
	}
	return out, nil
}

func (s *RedisSource) Ack(ctx context.Context, id string) error {
	return s.client.XAck(ctx, s.stream, s.group, id).Err()
}

func decodeEnvelope(values map[string]any) (model.EventEnvelope, error) {
	raw, ok := values["payload"].(string)
	if !ok {
		return model.EventEnvelope{}, fmt.Errorf("missing payload field")
	}
	var env model.EventEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return model.EventEnvelope{}, err
	}
	if env.Type == "" || env.StreamID == "" {
		return model.EventEnvelope{}, fmt.Errorf("envelope without type or stream id")
	}
	return env, nil
}
