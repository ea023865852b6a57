package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/streadway/amqp"
)

// AMQP publishes JSON messages to a topic exchange, using the event topic as
// the routing key. A dropped connection is re-dialed on the next publish.
type AMQP struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQP(url, exchange string) (*AMQP, error) {
	p := &AMQP{url: url, exchange: exchange}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQP) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declaring exchange %s: %w", p.exchange, err)
	}

	p.conn = conn
	p.channel = ch
	return nil
}

func (p *AMQP) Publish(ctx context.Context, topic string, data any) error {
	body, err := json.Marshal(Message{Topic: topic, Data: data, OccurredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	return retry.Do(
		func() error { return p.publish(topic, body) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

func (p *AMQP) publish(topic string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	err := p.channel.Publish(p.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.close()
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (p *AMQP) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.close()
}

func (p *AMQP) close() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}
