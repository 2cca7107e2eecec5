package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Lifecycle is the cycle work driven by the clock.
type Lifecycle interface {
	RunLifecycle(ctx context.Context) error
	ScheduleWeekly(ctx context.Context) (int, error)
}

// Digester sends the digests that are due.
type Digester interface {
	RunDigests(ctx context.Context) (int, error)
}

// Specs holds the cron expressions of the jobs.
type Specs struct {
	Lifecycle string // e.g., "*/15 * * * *"
	Weekly    string // e.g., "0 9 * * 1"
	Digest    string // e.g., "0 * * * *"
}

type QuestionScheduler struct {
	cronEngine *cron.Cron
	lifecycle  Lifecycle
	digests    Digester
	logger     *logrus.Entry
	specs      Specs
	timeout    time.Duration
}

func NewQuestionScheduler(lifecycle Lifecycle, digests Digester, specs Specs, logger *logrus.Entry) *QuestionScheduler {
	return &QuestionScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		lifecycle:  lifecycle,
		digests:    digests,
		logger:     logger.WithField("component", "scheduler"),
		specs:      specs,
		timeout:    5 * time.Minute,
	}
}

// Start registers the jobs and starts the cron engine. An invalid spec is
// returned as an error before anything runs.
func (s *QuestionScheduler) Start() error {
	s.logger.Info("Starting question scheduler...")

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		// Weekly scheduling first so that a cycle created this minute can be activated by the lifecycle job.
		{"weekly", s.specs.Weekly, s.RunWeekly},
		{"lifecycle", s.specs.Lifecycle, s.lifecycle.RunLifecycle},
		{"digest", s.specs.Digest, s.RunDigests},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cronEngine.AddFunc(job.spec, func() { s.execute(job.name, job.run) }); err != nil {
			return fmt.Errorf("could not add %s cron job %q: %w", job.name, job.spec, err)
		}
	}

	s.cronEngine.Start()
	s.logger.Info("Question scheduler started with jobs.")
	return nil
}

// RunOnce runs every job one time in order. Used by the run-jobs command.
func (s *QuestionScheduler) RunOnce(ctx context.Context) error {
	for _, run := range []func(context.Context) error{s.RunWeekly, s.lifecycle.RunLifecycle, s.RunDigests} {
		if err := run(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *QuestionScheduler) RunWeekly(ctx context.Context) error {
	n, err := s.lifecycle.ScheduleWeekly(ctx)
	s.logger.WithField("scheduled", n).Info("Weekly scheduling finished")
	return err
}

func (s *QuestionScheduler) RunDigests(ctx context.Context) error {
	n, err := s.digests.RunDigests(ctx)
	s.logger.WithField("sent", n).Info("Digest run finished")
	return err
}

func (s *QuestionScheduler) execute(name string, run func(ctx context.Context) error) {
	log := s.logger.WithField("job", name)
	log.Debug("Cron job triggered")
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := run(ctx); err != nil {
		log.WithError(err).Error("Cron job failed")
	}
}

func (s *QuestionScheduler) Stop() {
	s.logger.Info("Stopping question scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Question scheduler gracefully stopped.")
}
