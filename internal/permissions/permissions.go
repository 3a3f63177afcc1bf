package permissions

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/logger"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/permissions")

// Delegates ACL changes to a site-specific program:
//
//	<program> staff <dir>
//	<program> writable <dir> <user>...
type Program struct {
	executor command.Executor
	program  string
	staff    []string
}

func NewProgram(executor command.Executor, program string, staff []string) *Program {
	return &Program{executor: executor, program: program, staff: staff}
}

func (p *Program) run(ctx context.Context, args ...string) error {
	result, err := p.executor.Execute(ctx, command.New(p.program, args...))
	if err != nil {
		return err
	}
	return result.Check()
}

func (p *Program) StaffOnly(ctx context.Context, dir string) error {
	ctx, span := tracer.Start(ctx, "Program.StaffOnly", trace.WithAttributes(
		attribute.String("dir", dir),
	))
	defer span.End()

	args := append([]string{"staff", dir}, p.staff...)
	if err := p.run(ctx, args...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to restrict to staff")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "restricted to staff")
	return nil
}

func (p *Program) Writable(ctx context.Context, dir string, users []string) error {
	ctx, span := tracer.Start(ctx, "Program.Writable", trace.WithAttributes(
		attribute.String("dir", dir),
		attribute.StringSlice("users", users),
	))
	defer span.End()

	args := append([]string{"writable", dir}, users...)
	if err := p.run(ctx, args...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to grant write")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "granted write")
	return nil
}

// Leaves filesystem permissions alone, for deployments where the OS already handles access
type Noop struct{}

func (Noop) StaffOnly(ctx context.Context, dir string) error {
	logger.Logger.DebugContext(ctx, "permissions disabled, leaving staff-only dir as is", "dir", dir)
	return nil
}

func (Noop) Writable(ctx context.Context, dir string, users []string) error {
	logger.Logger.DebugContext(ctx, "permissions disabled, leaving dir as is", "dir", dir, "users", users)
	return nil
}
