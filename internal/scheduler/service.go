package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// runTimeout bounds one scheduled snapshot capture
const runTimeout = 10 * time.Minute

// SnapshotCapturer is implemented by trends.Fetcher
type SnapshotCapturer interface {
	CaptureSnapshot(ctx context.Context) (*models.TrendIngestResponse, string, error)
}

// Service handles scheduling of trend snapshot captures
type Service struct {
	config   *config.Config
	capturer SnapshotCapturer
	cron     *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, capturer SnapshotCapturer) (*Service, error) {
	loc := time.UTC
	if cfg.TimeZone != "" {
		l, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.TimeZone, err)
		}
		loc = l
	}

	return &Service{
		config:   cfg,
		capturer: capturer,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
	}, nil
}

// Start begins the scheduled snapshot captures. An empty schedule leaves the
// scheduler idle.
func (s *Service) Start() error {
	if s.config.IngestSchedule == "" {
		logrus.Info("Scheduled trend snapshots disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.config.IngestSchedule, func() {
		logrus.Info("Starting scheduled trend snapshot")
		if err := s.RunOnce(context.Background()); err != nil {
			logrus.Errorf("Scheduled trend snapshot failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q", s.config.IngestSchedule)
	return nil
}

// RunOnce captures one snapshot; the /trigger endpoint uses it too.
func (s *Service) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	resp, key, err := s.capturer.CaptureSnapshot(ctx)
	if err != nil {
		return err
	}

	logrus.Infof("Stored trend snapshot %s with %d items", key, len(resp.Items))
	return nil
}

// Entries reports how many jobs are registered.
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
