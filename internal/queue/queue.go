// Package queue connects to RabbitMQ and processes asynchronous graph
// assembly jobs. Every queue gets a retry companion that dead-letters
// messages back after a delay, and a DLQ for messages that keep failing.
package queue

import (
	"fmt"
	"time"

	"github.com/entlink/entlink/internal/util"

	"github.com/rabbitmq/amqp091-go"
)

// AssembleQueue carries graph assembly jobs from the API to the worker.
const AssembleQueue = "assemble_queue"

// Queues lists every work queue the worker consumes.
var Queues = []string{AssembleQueue}

// Init connects to RabbitMQ using the RABBITMQ_* environment variables.
func Init() (*amqp091.Connection, error) {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnv("RABBITMQ_PORT"),
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each work queue together with its retry queue and
// DLQ. The retry queue holds failed messages for 10 seconds and then
// dead-letters them back onto the work queue.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(retryName, true, false, false, false, amqp091.Table{
			"x-message-ttl":             int32(10000),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": name,
		})
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retryName, err)
		}
	}

	return nil
}

// PublishFIFO publishes a persistent message onto the named queue.
func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	return ch.Publish("", q.Name, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}
