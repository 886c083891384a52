package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vantutran2k1/elements/pkg/metrics"
)

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Publish sends ev as JSON on <prefix>.<kind>, with the trace context in the
// message headers.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(Subject(p.prefix, ev.Kind))
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))

	if err := p.nc.PublishMsg(msg); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(ev.Kind), "error").Inc()
		return fmt.Errorf("publish event to %s: %w", msg.Subject, err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(ev.Kind), "ok").Inc()
	return nil
}
