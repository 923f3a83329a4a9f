package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const stopTimeout = 10 * time.Second

// Scheduler re-ingests a knowledge directory on a cron schedule. Standard
// five field expressions and descriptors such as "@hourly" are accepted.
type Scheduler struct {
	cron     *cron.Cron
	ingester *Ingester
	dir      string
	logger   *slog.Logger
}

// NewScheduler validates spec and registers the ingestion job.
func NewScheduler(spec, dir string, ingester *Ingester, logger *slog.Logger) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{
		cron:     c,
		ingester: ingester,
		dir:      dir,
		logger:   logger,
	}

	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid ingest schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	report, err := s.ingester.IngestDirectory(context.Background(), s.dir)
	if err != nil {
		s.logger.Error("scheduled ingestion failed", "dir", s.dir, "error", err)
		return
	}
	if !report.OK() {
		s.logger.Warn("scheduled ingestion finished with failures", "failed", report.Failed)
	}
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("knowledge ingestion scheduled", "dir", s.dir)
}

// Stop halts the schedule and waits for a running job, up to ctx or ten
// seconds, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()

	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("timed out waiting for scheduled ingestion to finish")
	}
}
