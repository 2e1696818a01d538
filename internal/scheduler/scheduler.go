// Package scheduler delivers the morning and evening digests to subscribed
// chats on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"dailydigest/internal/domain"
)

const deliverTimeout = 10 * time.Minute

// Deliverer sends the latest digest of an edition to its subscribers.
type Deliverer interface {
	DeliverDigest(ctx context.Context, edition domain.Edition) error
}

type Scheduler struct {
	ctx         context.Context
	cron        *cron.Cron
	deliverer   Deliverer
	morningHour int
	eveningHour int
	log         logrus.FieldLogger
}

// New creates a scheduler firing at the top of morningHour and eveningHour
// in loc. Deliveries stop when ctx is cancelled.
func New(ctx context.Context, d Deliverer, loc *time.Location, morningHour, eveningHour int, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		ctx:         ctx,
		cron:        cron.New(cron.WithLocation(loc)),
		deliverer:   d,
		morningHour: morningHour,
		eveningHour: eveningHour,
		log:         logger.WithField("component", "scheduler"),
	}
}

// dailyAt fires once a day at the start of hour.
func dailyAt(hour int) string {
	return fmt.Sprintf("0 %d * * *", hour)
}

func (s *Scheduler) Start() error {
	jobs := []struct {
		hour    int
		edition domain.Edition
	}{
		{s.morningHour, domain.EditionMorning},
		{s.eveningHour, domain.EditionEvening},
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(dailyAt(job.hour), func() { s.deliver(job.edition) }); err != nil {
			return fmt.Errorf("failed to schedule %s delivery: %w", job.edition, err)
		}
	}

	s.cron.Start()
	s.log.WithFields(logrus.Fields{
		"morning_hour": s.morningHour,
		"evening_hour": s.eveningHour,
		"location":     s.cron.Location().String(),
	}).Info("Digest delivery scheduled")
	return nil
}

// Stop halts the schedule and waits for a running delivery to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) deliver(edition domain.Edition) {
	log := s.log.WithField("edition", edition)
	ctx, cancel := context.WithTimeout(s.ctx, deliverTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		log.WithError(ctx.Err()).Info("Scheduler context is done")
		return
	default:
	}

	start := time.Now()
	if err := s.deliverer.DeliverDigest(ctx, edition); err != nil {
		log.WithError(err).Error("Scheduled delivery failed")
		return
	}
	log.WithField("duration", time.Since(start)).Debug("Scheduled delivery done")
}
