package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultQueueName is the queue the recurrence worker consumes.
	DefaultQueueName = "daygraph_mutation_events"
	// DefaultDLQName holds events that exhausted their retries.
	DefaultDLQName = "daygraph_mutation_events_dlq"
	// DefaultExchangeName is the mutation-event exchange.
	DefaultExchangeName = "daygraph_events"
)

// RabbitMQStream implements EventStream on RabbitMQ.
type RabbitMQStream struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	queueName    string
	dlqName      string
	exchangeName string
}

// NewRabbitMQStream connects to RabbitMQ and declares the exchange, queue
// and dead-letter queue.
func NewRabbitMQStream(amqpURL string) (*RabbitMQStream, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	s := &RabbitMQStream{
		conn:         conn,
		channel:      ch,
		queueName:    DefaultQueueName,
		dlqName:      DefaultDLQName,
		exchangeName: DefaultExchangeName,
	}
	if err := s.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}
	return s, nil
}

func (s *RabbitMQStream) setup() error {
	err := s.channel.ExchangeDeclare(
		s.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := s.channel.QueueDeclare(
		s.dlqName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := s.channel.QueueBind(s.dlqName, "dlq", s.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    s.exchangeName,
		"x-dead-letter-routing-key": "dlq",
	}
	if _, err := s.channel.QueueDeclare(
		s.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		queueArgs,
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := s.channel.QueueBind(s.queueName, "events", s.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}
	return nil
}

// Publish sends one event.
func (s *RabbitMQStream) Publish(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return s.channel.PublishWithContext(
		ctx,
		s.exchangeName,
		"events",
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Timestamp:    event.CreatedAt,
		},
	)
}

// rabbitDelivery wraps one amqp delivery.
type rabbitDelivery struct {
	event    *Event
	delivery amqp.Delivery
}

func (d *rabbitDelivery) Ack() error              { return d.delivery.Ack(false) }
func (d *rabbitDelivery) Nack(requeue bool) error { return d.delivery.Nack(false, requeue) }
func (d *rabbitDelivery) Event() *Event           { return d.event }

// Consume delivers events asynchronously on a dedicated channel.
func (s *RabbitMQStream) Consume(ctx context.Context, prefetchCount int) (<-chan Delivery, <-chan error, error) {
	consumeCh, err := s.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		s.queueName,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	out := make(chan Delivery, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- fmt.Errorf("delivery channel closed")
					return
				}

				var event Event
				if err := json.Unmarshal(delivery.Body, &event); err != nil {
					// Undecodable message goes to the DLQ.
					_ = delivery.Nack(false, false)
					errChan <- fmt.Errorf("failed to unmarshal event: %w", err)
					continue
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case out <- &rabbitDelivery{event: &event, delivery: delivery}:
				}
			}
		}
	}()

	return out, errChan, nil
}

// Close closes the channel and connection.
func (s *RabbitMQStream) Close() error {
	var err error
	if s.channel != nil {
		err = s.channel.Close()
	}
	if s.conn != nil {
		if closeErr := s.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// HealthCheck verifies the connection is open.
func (s *RabbitMQStream) HealthCheck(ctx context.Context) error {
	if s.conn == nil || s.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	return nil
}

var _ EventStream = (*RabbitMQStream)(nil)
