package store

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/upload"
)

// Prefix of content addressed artifact objects in the archive
const objectPrefix = "objects"

// Name of the per-build archive object mapping artifact names to object keys
const IndexFile = "index.json"

// Copies a saved build to the archive. Identical artifacts across builds share one object.
// Failures are logged and never fail the save.
func (s *Store) mirror(ctx context.Context, dir string, files map[string][]byte) {
	ctx, span := tracer.Start(ctx, "Store.mirror", trace.WithAttributes(
		attribute.String("dir", dir),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	ident, err := s.archive.StoreIdentifier(ctx)
	if err != nil {
		ident = "unknown"
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	index := make(map[string]string, len(files))
	for _, name := range names {
		key, err := upload.Hashed(ctx, s.archive, objectPrefix, files[name])
		if err != nil {
			logger.Logger.ErrorContext(ctx, "failed to archive artifact",
				"archive", ident, "dir", dir, "artifact", name, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to archive artifact")
			return
		}
		index[name] = key
	}

	data, err := json.Marshal(index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode index")
		return
	}

	key := path.Join(dir, IndexFile)
	if err := s.archive.Upload(ctx, bytes.NewReader(data), int64(len(data)), key); err != nil {
		logger.Logger.ErrorContext(ctx, "failed to archive index", "archive", ident, "key", key, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to archive index")
		return
	}

	logger.Logger.DebugContext(ctx, "archived build", "archive", ident, "key", key)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "archived build")
}
