package queue

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/queue")

//go:generate mockgen -destination ./mock/mock.go -package mock . Queuer,MessageHandler

// Intake queue carrying build requests from repository hooks to the coordinator
type Queuer interface {
	// JSON encodes `message` and appends it
	Enqueue(ctx context.Context, message any) error
	// Waits for one message and hands it to `handler`, which gets at most `timeout` to finish.
	// A PoisonError from the handler drops the message; any other error leaves it for redelivery.
	Dequeue(ctx context.Context, timeout time.Duration, handler MessageHandler) error
}

type MessageHandler interface {
	Handle(ctx context.Context, message []byte) error
}

// Adapts a function to MessageHandler
type HandlerFunc func(ctx context.Context, message []byte) error

func (f HandlerFunc) Handle(ctx context.Context, message []byte) error {
	return f(ctx, message)
}

// Returned by a handler for a request that can never succeed, e.g. one that does not decode
type PoisonError struct {
	Err error
}

func (p PoisonError) Error() string {
	return fmt.Sprintf("unprocessable request: %v", p.Err)
}

func (p PoisonError) Unwrap() error {
	return p.Err
}

func WrapPoisonError(err error) error {
	return &PoisonError{Err: err}
}
