package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/marketloop/earnings/internal/fraud"
	"github.com/marketloop/earnings/internal/retry"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	prefetchCount  = 20
	handlerTimeout = 30 * time.Second
)

// envelope is the broker-side fraud event framing. Type selects the payload
// shape; data carries the provider event verbatim.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// FraudConsumer drains the fraud-event queue into the ingestor. The broker is
// a second ingress beside the signed webhook endpoint, used by internal
// services that already verified the provider event.
type FraudConsumer struct {
	url      string
	queue    string
	ingestor *fraud.Ingestor

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewFraudConsumer(url, queue string, ingestor *fraud.Ingestor) *FraudConsumer {
	return &FraudConsumer{url: url, queue: queue, ingestor: ingestor}
}

func (c *FraudConsumer) connect(ctx context.Context) error {
	return retry.Do(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return fmt.Errorf("open channel: %w", err)
		}

		if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("declare queue %s: %w", c.queue, err)
		}
		if err := ch.Qos(prefetchCount, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("set qos: %w", err)
		}

		c.mu.Lock()
		c.conn = conn
		c.channel = ch
		c.mu.Unlock()

		zap.L().Info("fraud consumer connected", zap.String("queue", c.queue))
		return nil
	})
}

// Run consumes until ctx is canceled, reconnecting on broker failures.
func (c *FraudConsumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.connect(ctx); err != nil {
			return err
		}

		err := c.consume(ctx)
		c.close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zap.L().Warn("fraud consumer disconnected, reconnecting", zap.Error(err))
	}
}

func (c *FraudConsumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("channel not initialized")
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *FraudConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	var env envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		zap.L().Error("fraud consumer: malformed envelope", zap.Error(err))
		// Malformed messages never become valid; drop without requeue.
		_ = msg.Nack(false, false)
		return
	}

	if err := c.ingestor.ProcessRaw(ctx, env.Type, env.Data); err != nil {
		zap.L().Error("fraud consumer: event rejected",
			zap.Error(err),
			zap.String("type", env.Type),
		)
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

func (c *FraudConsumer) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
