// Package natsutil carries typed JSON events over NATS, with the trace
// context of the publisher travelling in the message headers.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/pochini/pochini/pkg/natsutil"

// headers exposes msg headers to the OTel propagator. nats.Header and
// http.Header share their underlying type.
func headers(msg *nats.Msg) propagation.HeaderCarrier {
	if msg.Header == nil {
		msg.Header = nats.Header{}
	}
	return propagation.HeaderCarrier(msg.Header)
}

// Publisher is the part of *nats.Conn used by Publish.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Encode builds a JSON message for subject carrying the trace context of ctx.
func Encode[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, headers(msg))
	return msg, nil
}

// Decode unmarshals msg into a T and returns the trace context it carried.
func Decode[T any](msg *nats.Msg) (context.Context, T, error) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return nil, v, fmt.Errorf("natsutil: decode %s: %w", msg.Subject, err)
	}
	return otel.GetTextMapPropagator().Extract(context.Background(), headers(msg)), v, nil
}

// Publish sends v as JSON on subject.
func Publish[T any](ctx context.Context, p Publisher, subject string, v T) error {
	msg, err := Encode(ctx, subject, v)
	if err != nil {
		return err
	}
	if err := p.PublishMsg(msg); err != nil {
		return fmt.Errorf("natsutil: publish %s: %w", subject, err)
	}
	return nil
}

// Handler adapts h to a nats.MsgHandler. Each message runs in a consumer
// span parented by the publisher's trace. Malformed messages are logged and
// dropped.
func Handler[T any](logger *slog.Logger, h func(context.Context, T)) nats.MsgHandler {
	if logger == nil {
		logger = slog.Default()
	}
	tracer := otel.Tracer(tracerName)
	return func(msg *nats.Msg) {
		ctx, v, err := Decode[T](msg)
		if err != nil {
			logger.Warn("dropping malformed message", "subject", msg.Subject, "err", err)
			return
		}
		ctx, span := tracer.Start(ctx, "consume "+msg.Subject, trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()
		h(ctx, v)
	}
}

// QueueSubscribe registers h on subject within queue; each message goes to
// one member of the group.
func QueueSubscribe[T any](nc *nats.Conn, subject, queue string, logger *slog.Logger, h func(context.Context, T)) (*nats.Subscription, error) {
	sub, err := nc.QueueSubscribe(subject, queue, Handler(logger, h))
	if err != nil {
		return nil, fmt.Errorf("natsutil: subscribe %s/%s: %w", subject, queue, err)
	}
	return sub, nil
}
