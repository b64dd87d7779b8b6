package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ReindexQueue carries ids of atoms whose vector record must be rebuilt.
const ReindexQueue = "reindex_queue"

// MaxRetries is how often a message is retried before it is parked in
// the dead-letter queue.
const MaxRetries = 10

// RetryDelay is how long a message waits in the retry queue.
const RetryDelay = 10 * time.Second

// amqpIChannel is the part of *amqp091.Channel used for declaring and
// publishing.
type amqpIChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Init dials RabbitMQ.
func Init(url string) (*amqp091.Connection, error) {
	if url == "" {
		return nil, fmt.Errorf("RabbitMQ is not configured")
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each queue with a dead-letter queue and a retry
// queue that routes back to it after RetryDelay.
func SetupQueues(ch amqpIChannel, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(RetryDelay / time.Millisecond),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}
	return nil
}

// PublishFIFO publishes a persistent JSON message on the default exchange.
func PublishFIFO(ctx context.Context, ch amqpIChannel, queueName string, data []byte, headers amqp091.Table) error {
	return ch.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// HandleProcessingError moves a failed delivery to the retry queue, or
// to the dead-letter queue once it has been retried MaxRetries times.
// The delivery is acked once republished and requeued if that fails.
func HandleProcessingError(ctx context.Context, ch amqpIChannel, msg amqp091.Delivery, queueName string) (target string, err error) {
	retries := retryCount(msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	target = queueName + "_retry"
	if retries >= MaxRetries {
		target = queueName + "_dlq"
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	if err := PublishFIFO(ctx, ch, target, msg.Body, headers); err != nil {
		_ = msg.Nack(false, true)
		return target, fmt.Errorf("publish to %s: %w", target, err)
	}
	return target, msg.Ack(false)
}

// retryCount reads x-retries. RabbitMQ hands integers back with the
// width they were published with.
func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
