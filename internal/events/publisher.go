package events

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/saga/internal/domain"
)

// Publisher delivers domain events to interested subscribers.
// Publish failures must not fail the operation that produced the event.
type Publisher interface {
	Publish(event domain.Event) error
	Close()
}

// NATSPublisher publishes domain events as JSON messages on NATS
// subjects derived from the event category and name.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("saga"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}

	return &NATSPublisher{
		conn:   conn,
		logger: logger,
	}, nil
}

func (p *NATSPublisher) Publish(event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.Subject(), err)
	}

	if err := p.conn.Publish(event.Subject(), data); err != nil {
		return fmt.Errorf("publishing %s: %w", event.Subject(), err)
	}

	return nil
}

func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("draining nats connection", "error", err)
	}
}

// LogPublisher writes domain events to the structured log. Used when
// no NATS server is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(event domain.Event) error {
	attrs := []any{
		"subject", event.Subject(),
		"occurred_at", event.OccurredAt,
	}
	for k, v := range event.Context {
		attrs = append(attrs, k, v)
	}
	p.logger.Info("domain event", attrs...)
	return nil
}

func (p *LogPublisher) Close() {}
