package scheduler

import (
	"context"
	"fmt"
	"time"

	"stellar_notification_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StatusReporter is implemented by app.StatusReporter.
type StatusReporter interface {
	Report(ctx context.Context) (*app.StatusReport, error)
}

type StatusScheduler struct {
	cronEngine *cron.Cron
	reporter   StatusReporter
	logger     *logrus.Entry
	cronSpec   string
	jobTimeout time.Duration
}

func NewStatusScheduler(
	reporter StatusReporter,
	logger *logrus.Entry,
	cronSpec string, // e.g., "* * * * *" (every minute)
) *StatusScheduler {
	return &StatusScheduler{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		reporter:   reporter,
		logger:     logger,
		cronSpec:   cronSpec,
		jobTimeout: 30 * time.Second,
	}
}

func (s *StatusScheduler) Start() error {
	s.logger.Info("Starting status scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.reportStatus); err != nil {
		return fmt.Errorf("could not add status report cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Status scheduler started")
	return nil
}

func (s *StatusScheduler) reportStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if _, err := s.reporter.Report(ctx); err != nil {
		s.logger.WithError(err).Error("Error during status report")
	}
}

func (s *StatusScheduler) Stop() {
	s.logger.Info("Stopping status scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Status scheduler gracefully stopped")
}
