package upload

import (
	"bytes"
	"context"
	"io"
	"path"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/hash"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/upload")

//go:generate mockgen -destination ./mock/mock.go -package mock . Uploader

// Remote object store mirroring build artifacts
type Uploader interface {
	// Create or overwrite the object at `key`
	Upload(ctx context.Context, reader io.ReadSeeker, length int64, key string) error
	// Whether an object exists at `key`. Used to skip re-uploads, not authoritative.
	Exists(ctx context.Context, key string) (bool, error)
	// Where objects go, for logging
	StoreIdentifier(ctx context.Context) (string, error)
}

// Uploads `data` under `prefix/<sha256 of data>` unless an object with that key already
// exists, and returns the key
func Hashed(ctx context.Context, u Uploader, prefix string, data []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "UploadHashed", trace.WithAttributes(
		attribute.String("prefix", prefix),
		attribute.Int("length", len(data)),
	))
	defer span.End()

	sum, err := hash.Reader(ctx, bytes.NewReader(data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash data")
		return "", err
	}
	key := path.Join(prefix, sum)

	exists, err := u.Exists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check if object exists")
		return "", err
	}
	if exists {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found existing object")
		return key, nil
	}

	if err := u.Upload(ctx, bytes.NewReader(data), int64(len(data)), key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload object")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded object by hash")
	return key, nil
}
