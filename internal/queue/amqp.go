package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/file-parser/backend/internal/models"
)

const (
	connectRetries    = 10
	connectRetryDelay = 5 * time.Second
)

// AMQPQueue is a RabbitMQ-backed Queue. Jobs are published as
// persistent messages on a durable queue; unacked jobs are redelivered
// by the broker when a worker dies, giving at-least-once delivery.
// Failures are published to a companion "<name>.failures" queue.
type AMQPQueue struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	log       *slog.Logger

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
	closed     bool
}

// NewAMQPQueue connects to the broker and declares the job and
// failure queues. prefetch bounds the unacked messages in flight and
// should match the worker count: all workers consume from this one
// channel, so a prefetch of 1 would serialize the pool.
func NewAMQPQueue(url, queueName string, prefetch int, log *slog.Logger) (*AMQPQueue, error) {
	conn, err := connectWithRetry(url, connectRetries, connectRetryDelay, log)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	for _, name := range []string{queueName, queueName + ".failures"} {
		_, err = channel.QueueDeclare(
			name,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("declaring queue %s: %w", name, err)
		}
	}

	if prefetch <= 0 {
		prefetch = 1
	}
	// One unacked job per worker keeps the per-job ownership
	// guarantee while letting the pool run in parallel.
	if err := channel.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting QoS: %w", err)
	}

	log.Info("connected to message broker", "queue", queueName)

	return &AMQPQueue{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
		log:       log,
	}, nil
}

func connectWithRetry(url string, maxRetries int, delay time.Duration, log *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		log.Warn("broker connection failed", "attempt", i+1, "max", maxRetries, "error", err)
		if i < maxRetries-1 {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("connecting after %d attempts: %w", maxRetries, err)
}

var _ Queue = (*AMQPQueue)(nil)

// Enqueue publishes a persistent job message.
func (q *AMQPQueue) Enqueue(ctx context.Context, job models.ParseJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		"",          // exchange
		q.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing job: %w", err)
	}
	return nil
}

// Dequeue blocks for the next job from the broker.
func (q *AMQPQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	deliveries, err := q.consume()
	if err != nil {
		return nil, err
	}

	select {
	case msg, ok := <-deliveries:
		if !ok {
			return nil, ErrClosed
		}
		var job models.ParseJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			// Undecodable payloads can never succeed; drop without
			// requeue.
			q.log.Warn("dropping malformed job payload", "error", err)
			_ = msg.Nack(false, false)
			return nil, fmt.Errorf("decoding job payload: %w", err)
		}
		return &Delivery{
			Job:  job,
			ack:  func() error { return msg.Ack(false) },
			nack: func() error { return msg.Nack(false, true) },
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *AMQPQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}
	if q.deliveries != nil {
		return q.deliveries, nil
	}

	deliveries, err := q.channel.Consume(
		q.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("registering consumer: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// ReportFailure publishes the failure record to the companion queue.
func (q *AMQPQueue) ReportFailure(ctx context.Context, job models.ParseJob, cause error) error {
	body, err := json.Marshal(Failure{Job: job, Reason: cause.Error(), At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding failure: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		"",
		q.queueName+".failures",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing failure: %w", err)
	}
	return nil
}

// Close shuts down the broker connection.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true

	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
