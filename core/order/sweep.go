package order

import (
	"context"
	"time"

	"github.com/irsalhamdi/course-market/events"
	"github.com/irsalhamdi/course-market/metrics"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Sweeper fails pending orders that outlived their expiry, so abandoned
// checkouts do not stay pending forever.
type Sweeper struct {
	DB       *sqlx.DB
	Log      logrus.FieldLogger
	Events   *events.Dispatcher
	Interval time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx, time.Now().UTC()); err != nil {
			s.Log.WithField("message", err).Error("sweeping expired orders")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	ords, err := FailExpired(ctx, s.DB, now)
	if err != nil {
		return 0, err
	}

	for _, ord := range ords {
		emit(s.Events, Result{Order: ord, Status: Failed, Applied: true})
	}

	if len(ords) > 0 {
		metrics.OrdersExpired.Add(float64(len(ords)))
		s.Log.WithField("count", len(ords)).Info("failed expired orders")
	}
	return len(ords), nil
}
