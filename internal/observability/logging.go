package observability

import (
	"context"
	"log/slog"
	"os"
)

// GlobalLogger is the logger used by services and background work. The
// HTTP layer replaces it with its context-aware logger at startup.
var GlobalLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetLogger replaces GlobalLogger. A nil logger is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = l
	}
}

// LogAsyncOperationStart logs the start of an asynchronous operation.
func LogAsyncOperationStart(ctx context.Context, operation string, attrs ...any) {
	GlobalLogger.DebugContext(ctx, "async operation started",
		append([]any{slog.String("operation", operation), slog.String("type", "async_start")}, attrs...)...)
}

// LogAsyncOperationEnd logs the completion of an asynchronous operation.
func LogAsyncOperationEnd(ctx context.Context, operation string, attrs ...any) {
	GlobalLogger.DebugContext(ctx, "async operation completed",
		append([]any{slog.String("operation", operation), slog.String("type", "async_end")}, attrs...)...)
}

// LogAsyncOperationDiscarded logs a result dropped because its owner went away
// or a newer operation superseded it.
func LogAsyncOperationDiscarded(ctx context.Context, operation, reason string) {
	GlobalLogger.DebugContext(ctx, "async operation discarded",
		slog.String("operation", operation),
		slog.String("type", "async_discarded"),
		slog.String("reason", reason),
	)
}

// LogAsyncOperationError logs an error in an asynchronous operation.
func LogAsyncOperationError(ctx context.Context, operation string, err error, attrs ...any) {
	GlobalLogger.ErrorContext(ctx, "async operation failed",
		append([]any{
			slog.String("operation", operation),
			slog.String("type", "async_error"),
			slog.String("error", err.Error()),
		}, attrs...)...)
}
