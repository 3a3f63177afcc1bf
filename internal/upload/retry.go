package upload

import (
	"context"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/codes"
)

var _ Uploader = (*RetryUploader)(nil)

// Wraps every call of another uploader in a backoff loop
type RetryUploader struct {
	uploader Uploader
	backoff  func() retry.Backoff
}

func NewRetryUploaderBackoff(uploader Uploader, backoff func() retry.Backoff) *RetryUploader {
	return &RetryUploader{uploader: uploader, backoff: backoff}
}

// Archiving is off the build's critical path so waiting is cheap
func NewRetryUploader(uploader Uploader) *RetryUploader {
	return NewRetryUploaderBackoff(uploader, func() retry.Backoff {
		b := retry.NewExponential(time.Second)
		b = retry.WithMaxDuration(2*time.Minute, b)
		return b
	})
}

func retried[T any](ctx context.Context, r *RetryUploader, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "RetryUploader."+name)
	defer span.End()

	var result T
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "RetryUploader."+name+".Retry")
		defer span.End()

		var err error
		result, err = fn(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "attempt failed")
			return retry.RetryableError(err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "attempt succeeded")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retries exhausted")
		var zero T
		return zero, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "succeeded")
	return result, nil
}

func (r *RetryUploader) Exists(ctx context.Context, key string) (bool, error) {
	return retried(ctx, r, "Exists", func(ctx context.Context) (bool, error) {
		return r.uploader.Exists(ctx, key)
	})
}

func (r *RetryUploader) StoreIdentifier(ctx context.Context) (string, error) {
	return retried(ctx, r, "StoreIdentifier", r.uploader.StoreIdentifier)
}

func (r *RetryUploader) Upload(ctx context.Context, reader io.ReadSeeker, length int64, key string) error {
	_, err := retried(ctx, r, "Upload", func(ctx context.Context) (struct{}, error) {
		// a failed attempt may have consumed part of the reader
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			return struct{}{}, retry.RetryableError(err)
		}
		return struct{}{}, r.uploader.Upload(ctx, reader, length, key)
	})
	return err
}
