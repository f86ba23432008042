// Package events publishes reservation lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/salafacil/salafacil/internal/application"
)

// DefaultQueue is the durable queue reservation events are routed to.
const DefaultQueue = "reservation.events"

// DefaultDialTimeout bounds connecting to the broker, handshake included.
const DefaultDialTimeout = 2 * time.Second

// Message is the JSON body of a published reservation event.
type Message struct {
	Type           string    `json:"type"`
	ReservationID  string    `json:"reservation_id"`
	RoomID         string    `json:"sala_id"`
	UserID         string    `json:"usuario_id"`
	Title          string    `json:"titulo"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Start          time.Time `json:"data_inicio"`
	End            time.Time `json:"data_fim"`
	ActorID        string    `json:"actor_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewMessage flattens an application event into its wire form.
func NewMessage(event application.ReservationEvent) Message {
	r := event.Reservation
	return Message{
		Type:           string(event.Type),
		ReservationID:  r.ID,
		RoomID:         r.RoomID,
		UserID:         r.UserID,
		Title:          r.Title,
		Status:         string(r.Status),
		PreviousStatus: string(event.PreviousStatus),
		Start:          r.Start.UTC(),
		End:            r.End.UTC(),
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt.UTC(),
	}
}

// AMQPPublisher sends events to a durable queue over one long-lived
// connection, redialling when the broker drops it.
type AMQPPublisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ application.EventPublisher = (*AMQPPublisher)(nil)

// Dial connects to the broker at url and declares queue.
func Dial(url, queue string, logger *slog.Logger) (*AMQPPublisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &AMQPPublisher{url: url, queue: queue, dialTimeout: DefaultDialTimeout, logger: logger.With("component", "events")}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// connectLocked dials within the smaller of dialTimeout and ctx's deadline so
// a dead broker cannot hold the mutex past the caller's budget.
func (p *AMQPPublisher) connectLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("events: dial broker: %w", err)
	}
	timeout := p.dialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("events: dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("events: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("events: declare queue %s: %w", p.queue, err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// PublishReservationEvent sends event as a persistent JSON message.
func (p *AMQPPublisher) PublishReservationEvent(ctx context.Context, event application.ReservationEvent) error {
	body, err := json.Marshal(NewMessage(event))
	if err != nil {
		return fmt.Errorf("events: encode event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt.UTC(),
		Type:         string(event.Type),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connectLocked(ctx); err != nil {
			return err
		}
		p.logger.InfoContext(ctx, "reconnected to broker", "queue", p.queue)
	}

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			p.closeLocked()
		}
		return fmt.Errorf("events: publish %s: %w", event.Type, err)
	}
	return nil
}

// Close shuts the channel and connection down.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.conn = nil
	}
	return errors.Join(errs...)
}

// LogPublisher records events in the log instead of a broker. It is used when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher that only logs.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "events")}
}

// PublishReservationEvent logs the event at debug level.
func (p *LogPublisher) PublishReservationEvent(ctx context.Context, event application.ReservationEvent) error {
	msg := NewMessage(event)
	p.logger.DebugContext(ctx, "reservation event",
		"type", msg.Type,
		"reservation_id", msg.ReservationID,
		"status", msg.Status,
		"previous_status", msg.PreviousStatus,
	)
	return nil
}
