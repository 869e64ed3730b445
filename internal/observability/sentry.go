package observability

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tbourn/civic-report-backend/internal/config"
)

var sentryInit = sentry.Init

// SetupSentry initializes the global Sentry client. An empty DSN disables
// reporting; the returned flush is then a no-op. Call flush before exit so
// buffered events are delivered.
func SetupSentry(cfg config.SentryConfig, b Build) (flush func(time.Duration) bool, err error) {
	if cfg.DSN == "" {
		return func(time.Duration) bool { return true }, nil
	}
	env := cfg.Environment
	if env == "" {
		env = b.Environment
	}
	err = sentryInit(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env,
		Release:          b.Version,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}
	return sentry.Flush, nil
}
