package coordinator

import (
	"context"
	"time"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/workflow"
)

// Workflow counts over a rolling window
type Stats struct {
	Since     time.Time `json:"since"`
	Until     time.Time `json:"until"`
	Open      int       `json:"open"`
	Closed    int       `json:"closed"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
}

// Latest sample, nil before the first refresh
func (c *Coordinator) Stats() *Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	if c.stats == nil {
		return nil
	}
	s := *c.stats
	return &s
}

func (c *Coordinator) sample(ctx context.Context, now time.Time) (*Stats, error) {
	window := workflow.Filter{Since: now.Add(-c.opts.StatsWindow), Until: now}
	s := &Stats{Since: window.Since, Until: window.Until}

	var err error
	if s.Open, err = c.service.CountOpenWorkflows(ctx, window); err != nil {
		return nil, err
	}
	if s.Closed, err = c.service.CountClosedWorkflows(ctx, window); err != nil {
		return nil, err
	}

	completed := window
	completed.Statuses = []workflow.CloseStatus{workflow.StatusCompleted}
	if s.Completed, err = c.service.CountClosedWorkflows(ctx, completed); err != nil {
		return nil, err
	}

	failed := window
	failed.Statuses = []workflow.CloseStatus{workflow.StatusFailed, workflow.StatusTimedOut}
	if s.Failed, err = c.service.CountClosedWorkflows(ctx, failed); err != nil {
		return nil, err
	}
	return s, nil
}

// Refreshes the statistics
func (c *Coordinator) RefreshStats(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Coordinator.RefreshStats")
	defer span.End()

	s, err := c.sample(ctx, time.Now().UTC())
	if err != nil {
		logger.Logger.WarnContext(ctx, "failed to refresh workflow stats", "error", err)
		span.RecordError(err)
		return err
	}

	c.statsMu.Lock()
	previous := c.stats
	c.stats = s
	c.statsMu.Unlock()

	if previous != nil && s.Failed > previous.Failed {
		logger.Logger.WarnContext(ctx, "build failures increased",
			"failed", s.Failed, "previous", previous.Failed, "open", s.Open)
	}
	span.RecordError(nil)
	return nil
}

// Refreshes the statistics on a fixed interval until ctx ends or the coordinator closes
func (c *Coordinator) RunStats(ctx context.Context) {
	ticker := time.NewTicker(c.opts.StatsInterval)
	defer ticker.Stop()

	_ = c.RefreshStats(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closing:
			return
		case <-ticker.C:
			_ = c.RefreshStats(ctx)
		}
	}
}
