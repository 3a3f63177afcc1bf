package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
)

// Azure storage queues backed queuer. A message handed out more than `maxDeliveries` times
// is dropped without reaching the handler.
type AzureQueuer struct {
	az *azqueue.QueueClient
	// Wait between polls of an empty queue
	idle          time.Duration
	maxDeliveries int64
}

var _ Queuer = (*AzureQueuer)(nil)

// `queueName` must exist in the storage account. `maxDeliveries` of zero disables the limit.
func NewAzureQueuer(storageAccountName string,
	storageAccountKey string,
	queueServiceURL string,
	queueName string,
	maxDeliveries int64,
) (*AzureQueuer, error) {
	azureCred, err := azqueue.NewSharedKeyCredential(storageAccountName, storageAccountKey)
	if err != nil {
		return nil, err
	}
	serviceClient, err := azqueue.NewServiceClientWithSharedKeyCredential(
		queueServiceURL,
		azureCred,
		&azqueue.ClientOptions{
			ClientOptions: policy.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries: 5,
					RetryDelay: 500 * time.Millisecond,
				},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	return &AzureQueuer{
		az:            serviceClient.NewQueueClient(queueName),
		idle:          5 * time.Second,
		maxDeliveries: maxDeliveries,
	}, nil
}

func (q *AzureQueuer) Enqueue(ctx context.Context, message any) error {
	ctx, span := tracer.Start(ctx, "AzureQueuer.Enqueue")
	defer span.End()

	body, err := json.Marshal(message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return err
	}

	span.SetAttributes(attribute.Int("bytes", len(body)))
	if _, err := q.az.EnqueueMessage(ctx, string(body), nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued message")
	return nil
}

// Polls until one message is visible, hiding it for `visibility` seconds
func (q *AzureQueuer) receive(ctx context.Context, visibility int32) (azqueue.DequeueMessagesResponse, error) {
	for {
		resp, err := q.az.DequeueMessage(ctx, &azqueue.DequeueMessageOptions{
			VisibilityTimeout: &visibility,
		})
		if err != nil {
			return resp, err
		}
		switch len(resp.Messages) {
		case 0:
		case 1:
			return resp, nil
		default:
			return resp, fmt.Errorf("unexpected number of messages: %d", len(resp.Messages))
		}

		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(q.idle):
		}
	}
}

func (q *AzureQueuer) Dequeue(
	ctx context.Context,
	timeout time.Duration,
	handler MessageHandler,
) error {
	ctx, span := tracer.Start(ctx, "AzureQueuer.Dequeue", trace.WithAttributes(
		attribute.Int64("timeoutSecs", int64(timeout.Seconds())),
	))
	defer span.End()

	// the message stays invisible a little past the handler's deadline
	resp, err := q.receive(ctx, int32(timeout.Seconds())+5)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to dequeue message")
		return err
	}
	received := resp.Messages[0]

	text := *received.MessageText
	deliveries := *received.DequeueCount
	span.AddEvent("got_message", trace.WithAttributes(
		attribute.String("message", text),
		attribute.Int64("dequeueCount", deliveries),
	))

	if q.maxDeliveries > 0 && deliveries > q.maxDeliveries {
		logger.Logger.ErrorContext(ctx, "dropping request after repeated failures",
			"message", text, "deliveries", deliveries)
		span.AddEvent("exhausted_deliveries")
	} else {
		handlerCtx, cancel := context.WithTimeout(ctx, timeout)
		err := handler.Handle(handlerCtx, []byte(text))
		cancel()

		var pe *PoisonError
		switch {
		case err == nil:
		case errors.As(err, &pe):
			logger.Logger.ErrorContext(ctx, "dropping poisoned request", "error", err, "message", text)
		default:
			// the message reappears once its visibility timeout lapses
			logger.Logger.WarnContext(ctx, "failed to handle request, leaving it queued",
				"error", err, "deliveries", deliveries)
			span.AddEvent("failed_message_handler", trace.WithAttributes(
				attribute.String("error", err.Error()),
			))
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "dequeued message but failed to handle")
			return nil
		}
	}

	if _, err := q.az.DeleteMessage(ctx, *received.MessageID, *received.PopReceipt, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dequeued message")
	return nil
}
