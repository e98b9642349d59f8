package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/turnos-booking/internal/service"
)

// StartConsumer connects to the broker at url, consumes ConfirmedQueue and
// hands every event to deliver.  It reconnects with exponential backoff and
// returns only when ctx is cancelled.  A message that cannot be delivered is
// rejected without requeue so a poison message never loops.
func StartConsumer(ctx context.Context, url string, deliver service.Notifier) error {
	if url == "" {
		url = DefaultURL
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("confirm-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, deliver)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("confirm-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, deliver service.Notifier) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Printf("confirm-consumer: set QoS failed: %v", err)
	}
	if _, err := declare(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, d.Body, deliver); err != nil {
				retry := shouldRequeue(err, d.Redelivered)
				log.Printf("confirm-consumer: handle message failed (requeue=%t): %v", retry, err)
				_ = d.Nack(false, retry)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// errDelivery marks a well-formed event whose notification could not be sent.
var errDelivery = errors.New("delivery failed")

// shouldRequeue gives a failed delivery one more attempt; malformed events
// and second failures are dropped.
func shouldRequeue(err error, redelivered bool) bool {
	return errors.Is(err, errDelivery) && !redelivered
}

func handleMessage(ctx context.Context, body []byte, deliver service.Notifier) error {
	var ev ReservationConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	res, err := ev.Reservation()
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.EventID, err)
	}
	if err := deliver.Notify(ctx, res); err != nil {
		return fmt.Errorf("%w for %s: %w", errDelivery, ev.ExternalReference, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
