package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
)

var tracer = otel.Tracer("github.com/gideonjohnson/PrepCoach-sub004/internal/services")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// publish delivers events after their transaction committed. Failures are logged and
// never undo the change.
func publish(ctx context.Context, publisher events.Publisher, logger zerolog.Logger, event events.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event_type", event.Type).Str("event_key", event.Key).Msg("publish event failed")
	}
}

func orNop(publisher events.Publisher) events.Publisher {
	if publisher == nil {
		return events.Nop{}
	}
	return publisher
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// notFound maps a missing row onto target and passes every other error through.
func notFound(err error, target *Error) error {
	if isNoRows(err) {
		return target
	}
	return err
}
