package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

// Enqueue appends job to the stream and returns the entry id.
func (p *Producer) Enqueue(ctx context.Context, job Job) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: job.fields(),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", job.Type, err)
	}
	return id, nil
}
