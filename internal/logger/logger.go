package logger

import (
	"log/slog"
	"os"

	slogotel "github.com/remychantenay/slog-otel"
)

var LogLevel = new(slog.LevelVar)

var jsonHandler = slog.NewJSONHandler(
	os.Stderr,
	&slog.HandlerOptions{AddSource: true, Level: LogLevel},
)
var sloghandler = slogotel.NewOtelHandler(slogotel.WithNoTraceEvents(true))
var Handler = sloghandler(jsonHandler)
var Logger = slog.New(Handler).With("service", "didit")

// Installs the logger as the slog default at `level`
func InitSlog(level slog.Level) {
	LogLevel.Set(level)
	slog.SetDefault(Logger)
}

// Logger scoped to one build
func ForBuild(buildID string) *slog.Logger {
	return Logger.With("build_id", buildID)
}
