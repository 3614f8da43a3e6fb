package scheduler

import (
	"context"
	"time"

	"github.com/railmind/train-alert-bot/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 5 * time.Minute

// AuditJobs are the periodic exports of the alert trail
type AuditJobs interface {
	RunArchive(ctx context.Context) error
	RunDigest(ctx context.Context) error
}

// Service handles scheduling of audit trail jobs
type Service struct {
	config *config.Config
	jobs   AuditJobs
	cron   *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, jobs AuditJobs) *Service {
	return &Service{
		config: cfg,
		jobs:   jobs,
		cron:   cron.New(cron.WithSeconds()),
	}
}

// Start registers the audit jobs on the configured schedule
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.ArchiveSchedule, func() {
		s.run("alert archive", s.jobs.RunArchive)
		s.run("alert digest", s.jobs.RunDigest)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q", s.config.ArchiveSchedule)
	return nil
}

func (s *Service) run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logrus.Infof("Starting scheduled %s", name)
	if err := job(ctx); err != nil {
		logrus.Errorf("Scheduled %s failed: %v", name, err)
	}
}

// Stop stops the scheduler and waits for running jobs
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
