package vcs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/types"
)

// Fields are NUL separated and records NUL terminated (-z), so subjects may hold anything
const (
	logFormat = "--format=%H%x00%an%x00%ae%x00%at%x00%cn%x00%ce%x00%ct%x00%s"
	logFields = 8
)

// Selects the commits a log covers
type LogRange struct {
	args []string
}

// Commits reachable from `to` but not from `from`
func Between(from, to string) LogRange {
	return LogRange{args: []string{from + ".." + to}}
}

// Just the commit `rev`
func Single(rev string) LogRange {
	return LogRange{args: []string{"-1", rev}}
}

// Passed through to git log as-is
func Raw(args ...string) LogRange {
	return LogRange{args: args}
}

// Structured commit log of the repository (bare or not) at `dir`
func (r *Repos) Log(ctx context.Context, dir string, rng LogRange) ([]types.CommitInfo, error) {
	ctx, span := tracer.Start(ctx, "Repos.Log", trace.WithAttributes(
		attribute.String("dir", dir),
		attribute.StringSlice("range", rng.args),
	))
	defer span.End()

	args := append([]string{"log", "-z", logFormat}, rng.args...)
	args = append(args, "--")
	result, err := r.git(ctx, dir, nil, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to run git log")
		return nil, err
	}

	commits, err := ParseLog(result.Stdout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse git log")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "read log")
	return commits, nil
}

func ParseLog(out []byte) ([]types.CommitInfo, error) {
	text := strings.TrimSuffix(string(out), "\x00")
	if strings.TrimSpace(text) == "" {
		return []types.CommitInfo{}, nil
	}

	fields := strings.Split(text, "\x00")
	if len(fields)%logFields != 0 {
		return nil, fmt.Errorf("malformed log: %d fields", len(fields))
	}

	commits := make([]types.CommitInfo, 0, len(fields)/logFields)
	for i := 0; i < len(fields); i += logFields {
		f := fields[i : i+logFields]
		authorTime, err := parseEpoch(f[3])
		if err != nil {
			return nil, err
		}
		committerTime, err := parseEpoch(f[6])
		if err != nil {
			return nil, err
		}
		commits = append(commits, types.CommitInfo{
			Rev:            strings.TrimSpace(f[0]),
			Author:         f[1],
			AuthorEmail:    f[2],
			AuthorTime:     authorTime,
			Committer:      f[4],
			CommitterEmail: f[5],
			CommitterTime:  committerTime,
			Subject:        f[7],
		})
	}
	return commits, nil
}

func parseEpoch(s string) (time.Time, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed log timestamp %q: %w", s, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}
