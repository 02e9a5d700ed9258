// Package bus abstrae el message bus para publicar registros. El cliente
// concreto es un colaborador externo; acá vive la interfaz y el adapter
// Redis Streams que usamos por defecto.
package bus

import (
	"context"
	"errors"

	rdb "github.com/redis/go-redis/v9"
)

// ErrNoClient se retorna cuando no hay cliente configurado; el caller decide
// el fallback (el audit writer cae a object storage).
var ErrNoClient = errors.New("bus: redis client not configured")

type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// RedisPublisher publica en un stream (XADD). El stream es append-only y los
// consumidores leen con consumer groups.
type RedisPublisher struct {
	Client *rdb.Client
	Stream string
}

func NewRedisPublisher(client *rdb.Client, stream string) *RedisPublisher {
	return &RedisPublisher{Client: client, Stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, payload []byte) error {
	if p.Client == nil {
		return ErrNoClient
	}
	return p.Client.XAdd(ctx, &rdb.XAddArgs{
		Stream: p.Stream,
		Values: map[string]any{"payload": payload},
	}).Err()
}
