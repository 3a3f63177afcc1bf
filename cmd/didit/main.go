package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maxg/didit-sub000/cmd/didit/cmds"
	"github.com/maxg/didit-sub000/internal/diditerrors"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
)

func runApp(ctx context.Context) int {
	err := cmds.Execute(ctx)
	if err != nil {
		logger.Logger.Error("error executing subcommand", "error", err)

		var ee diditerrors.ExitError
		if errors.As(err, &ee) {
			return ee.Code
		}
		return types.ExitErrored
	}

	return types.ExitNormal
}

func main() {
	logger.InitSlog(slog.LevelInfo)

	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	code := runApp(ctx)
	cancelSignal()
	os.Exit(code)
}
