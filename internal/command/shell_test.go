package command_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/diditerrors"
)

func TestExecute(t *testing.T) {
	t.Run("ZeroExitCode", func(t *testing.T) {
		ctx := context.Background()
		shell := command.NewShellExecutor()

		expected := &command.Result{
			Cmd:      []string{"echo", "-n", "a"},
			Stdout:   []byte("a"),
			Stderr:   []byte{},
			ExitCode: 0,
		}

		cmd := command.New("echo", "-n", "a")
		result, err := shell.Execute(ctx, cmd)
		require.NoError(t, err, "failed to run command")
		assert.Equal(t, expected, result, "command result did not match")
		assert.NoError(t, result.Check(), "zero exit should check clean")
	})

	t.Run("NonzeroExitCode", func(t *testing.T) {
		ctx := context.Background()
		shell := command.NewShellExecutor()

		cmd := command.New("sh", "-c", "echo oops >&2; exit 3")
		result, err := shell.Execute(ctx, cmd)
		require.NoError(t, err, "non-zero exit is not an execution error")
		assert.Equal(t, 3, result.ExitCode)

		err = result.Check()
		var ee diditerrors.ExitError
		require.ErrorAs(t, err, &ee, "check should produce an exit error")
		assert.Equal(t, 3, ee.Code)
		assert.Equal(t, "oops", ee.Message)
	})

	t.Run("MissingProgram", func(t *testing.T) {
		ctx := context.Background()
		shell := command.NewShellExecutor()

		_, err := shell.Execute(ctx, command.New("/nonexistent/didit-program"))
		require.Error(t, err, "spawn failures are errors")
	})

	t.Run("DirAndEnv", func(t *testing.T) {
		ctx := context.Background()
		shell := command.NewShellExecutor()
		dir := t.TempDir()

		cmd := command.New("sh", "-c", `pwd; echo "$DIDIT_TEST"`).In(dir).WithEnv("DIDIT_TEST=yes")
		result, err := shell.Execute(ctx, cmd)
		require.NoError(t, err, "failed to run command")

		lines := strings.Split(strings.TrimSpace(string(result.Stdout)), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasSuffix(lines[0], strings.TrimPrefix(dir, "/private")), "ran in wrong dir")
		assert.Equal(t, "yes", lines[1])
	})

	t.Run("Stdin", func(t *testing.T) {
		ctx := context.Background()
		shell := command.NewShellExecutor()

		cmd := command.New("cat")
		cmd.Stdin = strings.NewReader("piped")
		result, err := shell.Execute(ctx, cmd)
		require.NoError(t, err, "failed to run command")
		assert.Equal(t, "piped", string(result.Stdout))
	})

	t.Run("Cancel context graceful shutdown", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
		defer cancel()

		shell := command.NewShellExecutor()

		cmd := command.New("sleep", "10")
		result, err := shell.Execute(ctx, cmd)
		require.NoError(t, err, "context cancel sets return code -1")
		assert.Equal(t, -1, result.ExitCode, "context cancel sets return code to -1")
	})
}

func TestStart(t *testing.T) {
	t.Run("PipeStdin", func(t *testing.T) {
		ctx := context.Background()
		shell := command.NewShellExecutor()

		cmd := command.New("tr", "a-z", "A-Z")
		cmd.PipeStdin = true
		p, err := shell.Start(ctx, cmd)
		require.NoError(t, err, "failed to start")

		_, err = io.WriteString(p.Stdin, "hello")
		require.NoError(t, err, "failed to write stdin")
		require.NoError(t, p.Stdin.Close())

		result, err := p.Wait()
		require.NoError(t, err, "failed to wait")
		assert.Equal(t, 0, result.ExitCode)
		assert.Equal(t, "HELLO", string(result.Stdout))
	})

	t.Run("StreamStdout", func(t *testing.T) {
		ctx := context.Background()
		shell := command.NewShellExecutor()

		var out strings.Builder
		cmd := command.New("printf", "streamed")
		cmd.Stdout = &out
		p, err := shell.Start(ctx, cmd)
		require.NoError(t, err, "failed to start")

		result, err := p.Wait()
		require.NoError(t, err, "failed to wait")
		assert.Equal(t, 0, result.ExitCode)
		assert.Equal(t, "streamed", out.String())
	})
}
