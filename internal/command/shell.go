package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
	diditotel "github.com/maxg/didit-sub000/internal/otel"
)

// Ensure ShellExecutor implements Runner interface.
var _ Runner = (*ShellExecutor)(nil)

// Executes the command via fork / subprocess
type ShellExecutor struct{}

func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{}
}

func (*ShellExecutor) build(ctx context.Context, command *Command) *exec.Cmd {
	//nolint:gosec // G204: not controllable by sanitizing here; callers should ensure sanitization
	cmd := exec.CommandContext(ctx, command.Program, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = append(os.Environ(), diditotel.InjectEnv(ctx)...)
	cmd.Env = append(cmd.Env, command.Env...)
	cmd.WaitDelay = time.Second
	return cmd
}

func (e *ShellExecutor) Execute(ctx context.Context, command *Command) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ShellExecutor.Execute", trace.WithAttributes(
		attribute.String("program", command.Program),
		attribute.StringSlice("args", command.Args),
		attribute.String("dir", command.Dir),
	))
	defer span.End()

	var stdout, stderr bytes.Buffer

	cmd := e.build(ctx, command)
	cmd.Stdin = command.Stdin
	cmd.Stdout = &stdout
	if command.Stdout != nil {
		cmd.Stdout = command.Stdout
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to execute command")
			return nil, err
		}
	}

	stdoutBytes := stdout.Bytes()
	stderrBytes := stderr.Bytes()
	logLines(ctx, "stdout", stdoutBytes)
	logLines(ctx, "stderr", stderrBytes)

	span.AddEvent("executed", trace.WithAttributes(
		attribute.Int("exitCode", cmd.ProcessState.ExitCode()),
	))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "successfully executed command")
	return &Result{
		Cmd:      command.argv(),
		Stdout:   stdoutBytes,
		Stderr:   stderrBytes,
		ExitCode: cmd.ProcessState.ExitCode(),
	}, nil
}

func logLines(ctx context.Context, stream string, b []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		logger.Logger.DebugContext(ctx, stream, "line", scanner.Text())
	}
}
