// Package scheduler runs the daily installment jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Dan9191/installment-service/internal/config"
	"github.com/Dan9191/installment-service/internal/metrics"
	"github.com/Dan9191/installment-service/internal/models"
)

const (
	jobTimeout   = 5 * time.Minute
	sendParallel = 4
)

// Jobs is the part of the service the scheduler drives.
type Jobs interface {
	Today() time.Time
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
	DueReminders(ctx context.Context, today time.Time, horizonDays int) ([]models.Reminder, error)
}

// Notifier delivers a reminder.
type Notifier interface {
	SendInstallmentReminder(rem models.Reminder) error
}

// Locker keeps a job to one replica. ok is false when another holds key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Scheduler marks overdue installments and sends reminders on cron specs
type Scheduler struct {
	cron     *cron.Cron
	jobs     Jobs
	notifier Notifier
	days     int
	locker   Locker
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

// New registers the overdue and reminder jobs. It does not start them.
func New(cfg *config.Config, jobs Jobs, notifier Notifier, logger *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		jobs:     jobs,
		notifier: notifier,
		days:     cfg.ReminderDays,
		logger:   logger,
	}

	if _, err := s.cron.AddFunc(cfg.OverdueCron, s.overdueJob); err != nil {
		return nil, fmt.Errorf("invalid overdue schedule %q: %w", cfg.OverdueCron, err)
	}
	if _, err := s.cron.AddFunc(cfg.ReminderCron, s.reminderJob); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderCron, err)
	}
	return s, nil
}

// WithLocker makes each run take a lock first and skip when it is held.
func (s *Scheduler) WithLocker(l Locker) *Scheduler {
	s.locker = l
	return s
}

// WithMetrics records job runs and reminder deliveries on m.
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) overdueJob() {
	s.guarded("overdue", func(ctx context.Context) error {
		s.logger.Info("Running overdue installment check")
		n, err := s.RunOverdue(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Overdue installment check failed")
			return err
		}
		s.logger.Infof("Installments marked overdue: %d", n)
		return nil
	})
}

func (s *Scheduler) reminderJob() {
	s.guarded("reminders", func(ctx context.Context) error {
		s.logger.Info("Sending installment reminders")
		sent, err := s.RunReminders(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Installment reminders failed")
			return err
		}
		s.logger.Infof("Installment reminders sent: %d", sent)
		return nil
	})
}

// guarded runs fn under the job timeout, the replica lock and the job
// metrics. It reports whether fn ran.
func (s *Scheduler) guarded(job string, fn func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, "job:"+job, jobTimeout)
		if err != nil {
			s.logger.WithError(err).WithField("job", job).Error("Could not take job lock")
			return false
		}
		if !ok {
			s.logger.WithField("job", job).Debug("Job running on another replica")
			return false
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				s.logger.WithError(err).WithField("job", job).Warn("Could not release job lock")
			}
		}()
	}

	_ = s.metrics.Track(job).End(fn(ctx))
	return true
}

// RunOverdue marks installments past due as overdue.
func (s *Scheduler) RunOverdue(ctx context.Context) (int64, error) {
	return s.jobs.MarkOverdue(ctx, s.jobs.Today())
}

// RunReminders emails every installment due within the reminder window,
// a few at a time. A failed delivery is logged and does not stop the rest.
func (s *Scheduler) RunReminders(ctx context.Context) (int, error) {
	reminders, err := s.jobs.DueReminders(ctx, s.jobs.Today(), s.days)
	if err != nil {
		return 0, err
	}

	var sent atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sendParallel)
	for _, rem := range reminders {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := s.notifier.SendInstallmentReminder(rem)
			s.metrics.ReminderSent(err)
			if err != nil {
				s.logger.WithError(err).WithField("installment_id", rem.Installment.ID).Warn("Reminder not delivered")
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(sent.Load()), err
}
