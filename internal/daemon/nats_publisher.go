package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/daemon/events"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// NATSPublisher mirrors the daemon's run lifecycle events onto a JetStream
// subject so external consumers (dashboards, chat bridges) can follow runs
// without polling the admin API.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	unsub   func()
	done    chan struct{}
}

// natsEnvelope wraps every published event with its kind for consumers.
type natsEnvelope struct {
	Kind        string    `json:"kind"`
	PublishedAt time.Time `json:"published_at"`
	Event       any       `json:"event"`
}

// NewNATSPublisher connects to NATS and subscribes to the bus. Returns an
// error when the config section is disabled or the connection fails.
func NewNATSPublisher(cfg *config.NATSConfig, bus *events.Bus) (*NATSPublisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("nats publishing is disabled")
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &NATSPublisher{
		conn:    conn,
		js:      js,
		subject: cfg.Subject,
		done:    make(chan struct{}),
	}

	ch, unsub := events.Subscribe[events.RunEvent](bus, 64)
	p.unsub = unsub
	go p.forward(ch)

	slog.Info("NATS run event publisher started", logfields.URL(cfg.URL), "subject", cfg.Subject)
	return p, nil
}

// forward drains bus events into JetStream until the subscription closes.
func (p *NATSPublisher) forward(ch <-chan events.RunEvent) {
	defer close(p.done)
	for evt := range ch {
		if err := p.publish(evt); err != nil {
			slog.Warn("Failed to publish run event to NATS",
				logfields.RunID(evt.EventRunID()),
				logfields.Error(err))
		}
	}
}

func (p *NATSPublisher) publish(evt events.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	envelope := natsEnvelope{
		Kind:        eventKind(evt),
		PublishedAt: time.Now(),
		Event:       evt,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// eventKind names the event type on the wire.
func eventKind(evt events.RunEvent) string {
	switch evt.(type) {
	case events.RunQueued:
		return "run_queued"
	case events.RunStarted:
		return "run_started"
	case events.StageStarted:
		return "stage_started"
	case events.EntryFinished:
		return "entry_finished"
	case events.RunFinished:
		return "run_finished"
	default:
		return "unknown"
	}
}

// Close unsubscribes from the bus, waits for in-flight publishes and closes
// the connection.
func (p *NATSPublisher) Close() error {
	if p.unsub != nil {
		p.unsub()
	}
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		slog.Warn("Timed out waiting for NATS publisher to drain")
	}
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
