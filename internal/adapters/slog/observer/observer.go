package observer

import (
	"context"
	"log/slog"

	observerport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/observer"
)

// Logger writes one structured log line per wizard event. Failures log at warn level,
// remote call starts at debug, everything else at info.
type Logger struct {
	log *slog.Logger
}

var _ observerport.Observer = (*Logger)(nil)

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{log: logger}
}

func (l *Logger) Observe(ctx context.Context, ev observerport.Event) {
	attrs := []slog.Attr{slog.String("event", string(ev.Kind))}
	if ev.Step != "" {
		attrs = append(attrs, slog.String("step", string(ev.Step)))
	}
	if ev.From != "" {
		attrs = append(attrs, slog.String("from", string(ev.From)))
	}
	if ev.ClientType != "" {
		attrs = append(attrs, slog.String("client_type", string(ev.ClientType)))
	}
	if ev.Ordinal != 0 {
		attrs = append(attrs, slog.Int("ordinal", ev.Ordinal))
	}
	if ev.Duration != 0 {
		attrs = append(attrs, slog.Duration("duration", ev.Duration))
	}
	if ev.Message != "" {
		attrs = append(attrs, slog.String("message", ev.Message))
	}
	l.log.LogAttrs(ctx, level(ev.Kind), "onboarding event", attrs...)
}

func level(k observerport.Kind) slog.Level {
	switch k {
	case observerport.KindValidationFailed, observerport.KindRemoteCallFailed, observerport.KindCatalogFetchFailed:
		return slog.LevelWarn
	case observerport.KindRemoteCallStarted:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
