package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
)

// Redis list backed queuer. Messages being handled sit in a processing list so a crashed
// consumer's message can be recovered with Requeue.
type RedisQueuer struct {
	db         *redis.Client
	key        string
	processing string
	// Longest single blocking pop; the loop re-checks ctx in between
	block time.Duration
}

var _ Queuer = (*RedisQueuer)(nil)

func NewRedisQueuer(client *redis.Client, key string) *RedisQueuer {
	return &RedisQueuer{
		db:         client,
		key:        key,
		processing: key + ":processing",
		block:      5 * time.Second,
	}
}

func (q *RedisQueuer) Enqueue(ctx context.Context, message any) error {
	ctx, span := tracer.Start(ctx, "RedisQueuer.Enqueue", trace.WithAttributes(
		attribute.String("key", q.key),
	))
	defer span.End()

	msgJSON, err := json.Marshal(message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return err
	}

	if err := q.db.RPush(ctx, q.key, msgJSON).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued message")
	return nil
}

func (q *RedisQueuer) Dequeue(ctx context.Context, timeout time.Duration, handler MessageHandler) error {
	ctx, span := tracer.Start(ctx, "RedisQueuer.Dequeue", trace.WithAttributes(
		attribute.String("key", q.key),
		attribute.Int64("timeoutSecs", int64(timeout.Seconds())),
	))
	defer span.End()

	var msg string
	for {
		var err error
		msg, err = q.db.BLMove(ctx, q.key, q.processing, "LEFT", "RIGHT", q.block).Result()
		if err == nil {
			break
		}
		if !errors.Is(err, redis.Nil) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to dequeue message")
			return err
		}
		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context cancelled")
			return ctx.Err()
		}
	}

	span.AddEvent("got_message", trace.WithAttributes(attribute.String("message", msg)))

	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	handleErr := handler.Handle(handlerCtx, []byte(msg))

	_, err := q.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processing, 1, msg)
		var pe *PoisonError
		if handleErr != nil && !errors.As(handleErr, &pe) {
			pipe.RPush(ctx, q.key, msg)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to settle message")
		return err
	}

	if handleErr != nil {
		logger.Logger.WarnContext(ctx, "failed to handle request", "error", handleErr, "message", msg)
		span.AddEvent("failed_message_handler", trace.WithAttributes(
			attribute.String("error", handleErr.Error()),
		))
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dequeued message")
	return nil
}

// Moves messages abandoned in the processing list back onto the queue. Only safe while no
// consumer is running.
func (q *RedisQueuer) Requeue(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.db.LMove(ctx, q.processing, q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
}
