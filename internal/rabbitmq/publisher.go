package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Publish публикует снапшот записи в exchange потоков изменений.
func Publish(ch *amqp.Channel, routingKey string, body []byte) error {
	const op = "rabbitmq.Publish"
	err := ch.Publish(
		Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
