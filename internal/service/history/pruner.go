package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPruneSchedule runs the pruner once a day.
const DefaultPruneSchedule = "@daily"

// Pruner periodically removes history older than the retention window.
type Pruner struct {
	cron      *cron.Cron
	svc       *Service
	retention time.Duration
	logger    *slog.Logger
}

// NewPruner creates a Pruner. It does nothing until Start.
func NewPruner(svc *Service, retention time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pruner{
		cron:      cron.New(),
		svc:       svc,
		retention: retention,
		logger:    logger,
	}
}

// Start registers the prune job on schedule and starts the scheduler.
func (p *Pruner) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	if _, err := p.cron.AddFunc(schedule, p.RunOnce); err != nil {
		return err
	}
	p.cron.Start()
	p.logger.Info("history pruner started", "schedule", schedule, "retention", p.retention.String())
	return nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
	p.logger.Info("history pruner stopped")
}

// RunOnce prunes immediately.
func (p *Pruner) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := p.svc.Prune(ctx, p.retention); err != nil {
		p.logger.Warn("history prune failed", "error", err)
	}
}
