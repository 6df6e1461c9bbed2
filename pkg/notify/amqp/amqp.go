// Package amqp implements a notification handler that publishes
// confirmation-request payloads to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/melpes/mailcal/pkg/confirm"
)

// Default exchange topology.
const (
	DefaultExchange   = "mailcal.confirmations"
	DefaultRoutingKey = "confirmation.requested"
	publishTimeout    = 5 * time.Second
)

// Config holds the AMQP handler configuration.
type Config struct {
	// URL is the broker connection string (amqp://...).
	URL string
	// Exchange is the topic exchange payloads are published to.
	Exchange string
	// RoutingKey is the routing key applied to every payload.
	RoutingKey string
}

// Handler publishes payloads as persistent JSON messages.
type Handler struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

// New connects to the broker and declares the topic exchange.
func New(cfg Config, logger *slog.Logger) (*Handler, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("AMQP URL is required")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = DefaultRoutingKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declaring exchange: %w", err)
	}

	logger.Info("AMQP notification handler connected", "exchange", cfg.Exchange)

	return &Handler{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// Name implements confirm.Handler.
func (h *Handler) Name() string { return "amqp" }

// Notify implements confirm.Handler.
func (h *Handler) Notify(payload confirm.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	err = h.channel.PublishWithContext(ctx,
		h.exchange,
		h.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    payload.RequestID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing payload for request %s: %w", payload.RequestID, err)
	}

	h.logger.Debug("notification published",
		"request_id", payload.RequestID,
		"routing_key", h.routingKey,
	)
	return nil
}

// Close closes the channel and connection.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channel != nil {
		if err := h.channel.Close(); err != nil {
			h.logger.Warn("error closing channel", "error", err)
		}
	}
	if h.conn != nil {
		if err := h.conn.Close(); err != nil {
			return err
		}
	}
	return nil
}
