package errreport

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"pagepreview/internal/config"
	"pagepreview/internal/services"
)

// Release is reported with every event.
var Release = "pagepreview@dev"

// Reporter captures errors out of band.
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// New returns a Sentry reporter when a DSN is configured and a no-op
// reporter otherwise.
func New(cfg *config.Config) (Reporter, error) {
	if cfg == nil || strings.TrimSpace(cfg.Sentry.DSN) == "" {
		return Noop{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     Release,
		SampleRate:  cfg.Sentry.SampleRate,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "errreport", "init", "invalid sentry dsn", err)
	}
	return &sentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

type sentryReporter struct {
	hub *sentry.Hub
}

func (r *sentryReporter) Report(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_kind", services.Kind(err))
		for k, v := range contextTags(ctx) {
			scope.SetTag(k, v)
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

func (r *sentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

func contextTags(ctx context.Context) map[string]string {
	tags := make(map[string]string, 3)
	if ctx == nil {
		return tags
	}
	if process, ok := services.ProcessFromContext(ctx); ok {
		tags["process"] = process
	}
	if batch, ok := services.BatchIDFromContext(ctx); ok {
		tags["batch_id"] = batch
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		tags["request_id"] = rid
	}
	return tags
}

// Noop discards reports.
type Noop struct{}

func (Noop) Report(context.Context, error, map[string]string) {}

func (Noop) Flush(time.Duration) bool { return true }
