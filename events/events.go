// Package events publishes order lifecycle events after they are committed.
package events

import (
	"context"
	"time"

	"github.com/irsalhamdi/course-market/api/background"
	"github.com/sirupsen/logrus"
)

const (
	OrderPaid         = "order.paid"
	OrderFailed       = "order.failed"
	EnrollmentCreated = "enrollment.created"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, data any) error
}

type Message struct {
	Topic      string    `json:"topic"`
	Data       any       `json:"data"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Dispatcher hands events to a Publisher on the background group so the
// request that produced them does not wait on the broker.
type Dispatcher struct {
	pub     Publisher
	bg      *background.Background
	log     logrus.FieldLogger
	timeout time.Duration
}

func NewDispatcher(pub Publisher, bg *background.Background, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{pub: pub, bg: bg, log: log, timeout: 30 * time.Second}
}

func (d *Dispatcher) Emit(topic string, data any) {
	if d == nil {
		return
	}

	d.bg.Add(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.pub.Publish(ctx, topic, data); err != nil {
			d.log.WithFields(logrus.Fields{
				"topic":   topic,
				"message": err,
			}).Error("publishing event")
		}
	})
}

// Log is a Publisher that only writes the event to the log.
type Log struct {
	Log logrus.FieldLogger
}

func (l Log) Publish(ctx context.Context, topic string, data any) error {
	l.Log.WithFields(logrus.Fields{"topic": topic, "data": data}).Info("event")
	return nil
}
