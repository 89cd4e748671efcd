package rabbitmq

import (
	"context"
	"fmt"
	"log"

	"github.com/streadway/amqp"
)

// ConsumeKey привязывает эксклюзивную очередь к routing key и передаёт тела
// сообщений в handler. Очередь авто-удаляемая: живёт столько же, сколько
// подписка. Возвращает имя очереди для диагностики.
func ConsumeKey(ctx context.Context, ch *amqp.Channel, routingKey string, handler func([]byte) error) (string, error) {
	const op = "rabbitmq.ConsumeKey"

	q, err := ch.QueueDeclare(
		"", // server-named
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.QueueBind(q.Name, routingKey, Exchange, false, nil); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	delivery, err := ch.Consume(
		q.Name,
		"",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				if err := handler(d.Body); err != nil {
					if nackErr := d.Nack(false, false); nackErr != nil {
						log.Printf("failed to nack message: %v", nackErr)
					}
					continue
				}
				if ackErr := d.Ack(false); ackErr != nil {
					log.Printf("failed to ack message: %v", ackErr)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return q.Name, nil
}
