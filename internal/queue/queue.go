package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/internal/util"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

const (
	RefreshExchange   = "herbflow_exchange"
	RefreshRoutingKey = "dataset.refresh"
)

// RefreshMsg announces that the source tables changed. Version is the
// content hash seen by the publisher and may be empty for manual refreshes.
type RefreshMsg struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRefreshMsg creates a message with a fresh id and the current time.
func NewRefreshMsg(version, reason string) (RefreshMsg, error) {
	id, err := gonanoid.New()
	if err != nil {
		return RefreshMsg{}, fmt.Errorf("nanoid: %w", err)
	}
	return RefreshMsg{
		ID:        id,
		Version:   version,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Publisher is implemented by *amqp091.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Enabled reports whether a broker is configured.
func Enabled() bool {
	return util.GetEnv("RABBITMQ_HOST") != ""
}

func Init() *amqp091.Connection {
	user := util.GetEnvString("RABBITMQ_USER", "guest")
	pass := util.GetEnvString("RABBITMQ_PASSWORD", "guest")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnvString("RABBITMQ_PORT", "5672")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupRefreshExchange declares the durable topic exchange refresh events
// are published on.
func SetupRefreshExchange(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		RefreshExchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("ExchangeDeclare failed: %w", err)
	}
	return nil
}

// PublishRefresh sends msg to every bound consumer.
func PublishRefresh(ctx context.Context, ch Publisher, msg RefreshMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		MessageId:    msg.ID,
		Body:         body,
		DeliveryMode: amqp091.Transient,
		Timestamp:    msg.Timestamp,
	}

	err = ch.PublishWithContext(
		ctx,
		RefreshExchange,
		RefreshRoutingKey,
		false,
		false,
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish refresh: %w", err)
	}

	logger.Debug("[Queue] Refresh published", "id", msg.ID, "version", msg.Version, "reason", msg.Reason)
	return nil
}

// DecodeRefresh parses a refresh message body.
func DecodeRefresh(body []byte) (RefreshMsg, error) {
	var msg RefreshMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return RefreshMsg{}, fmt.Errorf("invalid refresh message: %w", err)
	}
	if msg.ID == "" {
		return RefreshMsg{}, errors.New("invalid refresh message: missing id")
	}
	return msg, nil
}

// ConsumeRefresh binds an exclusive, auto-deleted queue to the refresh
// exchange, so each consumer process receives every event, and calls fn
// for each one until ctx is done or the channel closes.
func ConsumeRefresh(ctx context.Context, ch *amqp091.Channel, fn func(RefreshMsg)) error {
	if err := SetupRefreshExchange(ch); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("QueueDeclare failed: %w", err)
	}

	if err := ch.QueueBind(q.Name, RefreshRoutingKey, RefreshExchange, false, nil); err != nil {
		return fmt.Errorf("QueueBind failed: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		true,  // autoAck
		true,  // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	logger.Info("[Queue] Listening for refresh events", "queue", q.Name)
	HandleDeliveries(ctx, msgs, fn)
	return nil
}

// HandleDeliveries decodes deliveries and passes them to fn. Malformed
// bodies are logged and dropped.
func HandleDeliveries(ctx context.Context, msgs <-chan amqp091.Delivery, fn func(RefreshMsg)) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping refresh consumer")
			return
		case d, ok := <-msgs:
			if !ok {
				logger.Info("[Queue] Message channel closed")
				return
			}
			msg, err := DecodeRefresh(d.Body)
			if err != nil {
				logger.Warn("[Queue] Dropping message", "err", err)
				continue
			}
			fn(msg)
		}
	}
}
