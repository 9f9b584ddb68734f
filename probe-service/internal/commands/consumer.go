package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/agsys-platform/svclink/pkg/model"
	"github.com/agsys-platform/svclink/probe-service/internal/relay"
)

// Relayer executes relay commands against target services.
type Relayer interface {
	Relay(ctx context.Context, req relay.Request) (*model.RelayResult, error)
}

// Consumer pulls operator-issued relay commands off RabbitMQ and executes
// them. Commands that complete with a failure outcome are acked like any
// other; only commands that could not be attempted at all are requeued.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	relayer Relayer
	project string
	logger  *zap.Logger
	done    chan struct{}
}

// NewConsumer connects to RabbitMQ and opens the command channel.
func NewConsumer(url, project string, relayer Relayer, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		relayer: relayer,
		project: project,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// QueueName returns the command queue for a project.
func QueueName(project string) string {
	return fmt.Sprintf("relay.commands.%s", project)
}

// Start declares the command queue and begins consuming from it.
func (c *Consumer) Start(ctx context.Context) error {
	queue := QueueName(c.project)

	if _, err := c.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	msgs, err := c.channel.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", queue, err)
	}

	c.logger.Info("commands.consumer_started", zap.String("queue", queue))

	go c.consume(ctx, msgs)

	return nil
}

func (c *Consumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("commands.channel_closed")
				return
			}
			c.handle(ctx, msg)
		}
	}
}

// handle executes one command. Malformed commands are dropped; commands the
// relayer could not attempt are requeued for a later run.
func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	var cmd model.RelayCommand
	if err := json.Unmarshal(msg.Body, &cmd); err != nil {
		c.logger.Error("commands.decode_failed", zap.Error(err))
		msg.Nack(false, false)
		return
	}
	if cmd.Target == "" {
		c.logger.Error("commands.missing_target", zap.String("command_id", cmd.CommandID))
		msg.Nack(false, false)
		return
	}

	correlationID, err := uuid.Parse(cmd.CommandID)
	if err != nil {
		correlationID = uuid.New()
	}

	res, err := c.relayer.Relay(ctx, relay.Request{
		Target:        cmd.Target,
		Method:        cmd.Method,
		Path:          cmd.Path,
		Payload:       cmd.Payload,
		CorrelationID: correlationID,
	})
	if err != nil {
		c.logger.Error("commands.relay_not_attempted",
			zap.String("command_id", cmd.CommandID),
			zap.String("target", cmd.Target),
			zap.Error(err))
		msg.Nack(false, true) // Requeue on failure
		return
	}

	c.logger.Info("commands.relay_executed",
		zap.String("command_id", cmd.CommandID),
		zap.String("target", cmd.Target),
		zap.String("outcome", res.Outcome),
		zap.Int("status_code", res.StatusCode))
	msg.Ack(false)
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	close(c.done)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
