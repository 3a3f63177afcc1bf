package vcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/logger"
)

// Keeps accepting writes after the underlying writer fails.
// git get-tar-commit-id stops reading after the first header block.
type lenientWriter struct {
	w      io.Writer
	failed bool
}

func (l *lenientWriter) Write(p []byte) (int, error) {
	if !l.failed {
		if _, err := l.w.Write(p); err != nil {
			l.failed = true
		}
	}
	return len(p), nil
}

// Exports the staff materials for kind/proj into `dest`, returning the staff short revision
func (r *Repos) ExportStaff(ctx context.Context, kind, proj, dest string) (string, error) {
	return r.export(ctx, kind+"/"+proj, dest)
}

// Streams `git archive` of the staff tree at `path` into two consumers at once: tar extracting
// into `dest`, and git get-tar-commit-id reporting which commit was archived. Nothing holds the
// whole archive in memory.
func (r *Repos) export(ctx context.Context, path, dest string) (string, error) {
	ctx, span := tracer.Start(ctx, "Repos.Export", trace.WithAttributes(
		attribute.String("path", path),
		attribute.String("dest", dest),
	))
	defer span.End()

	strip := len(strings.Split(strings.Trim(path, "/"), "/"))

	extract := command.New("tar", "-x", "-C", dest, fmt.Sprintf("--strip-components=%d", strip))
	extract.PipeStdin = true
	tar, err := r.runner.Start(ctx, extract)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start tar")
		return "", err
	}

	identify := command.New("git", "get-tar-commit-id")
	identify.PipeStdin = true
	id, err := r.runner.Start(ctx, identify)
	if err != nil {
		_ = tar.Stdin.Close()
		_, _ = tar.Wait()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start get-tar-commit-id")
		return "", err
	}

	archiveCmd := command.New("git", "archive", "--format=tar", r.opts.Branch, path).In(r.opts.StaffRepo)
	archiveCmd.Stdout = io.MultiWriter(tar.Stdin, &lenientWriter{w: id.Stdin})
	archive, err := r.runner.Start(ctx, archiveCmd)
	if err != nil {
		_ = tar.Stdin.Close()
		_ = id.Stdin.Close()
		_, _ = tar.Wait()
		_, _ = id.Wait()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start git archive")
		return "", err
	}

	// countdown over every participant's exit
	var (
		wg      sync.WaitGroup
		results [3]*command.Result
		errs    [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		results[0], errs[0] = archive.Wait()
		// end of stream for both consumers
		_ = tar.Stdin.Close()
		_ = id.Stdin.Close()
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = tar.Wait()
	}()
	go func() {
		defer wg.Done()
		results[2], errs[2] = id.Wait()
	}()
	wg.Wait()

	names := [3]string{"git archive", "tar", "git get-tar-commit-id"}
	var failures []error
	for i := range results {
		switch {
		case errs[i] != nil:
			failures = append(failures, fmt.Errorf("%s: %w", names[i], errs[i]))
		case results[i].ExitCode != 0:
			failures = append(failures, fmt.Errorf("%s: %w", names[i], results[i].Check()))
		}
	}
	if len(failures) > 0 {
		err := errors.Join(append([]error{ErrExport}, failures...)...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "export participant failed")
		return "", err
	}

	rev := strings.TrimSpace(string(results[2].Stdout))
	if rev == "" {
		err := fmt.Errorf("%w: archive carried no commit id", ErrExport)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no commit id")
		return "", err
	}

	logger.Logger.DebugContext(ctx, "exported staff materials", "path", path, "rev", rev)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "exported")
	return short(rev), nil
}
