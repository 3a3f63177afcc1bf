package hash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/hash")

// Hex sha256 of everything left in `r`
func Reader(ctx context.Context, r io.Reader) (string, error) {
	_, span := tracer.Start(ctx, "Reader")
	defer span.End()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read into hasher")
		return "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	span.AddEvent("digested", trace.WithAttributes(attribute.String("sum", sum)))
	return sum, nil
}
