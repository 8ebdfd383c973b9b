/*
scheduler.go - Leave-reason retention scheduler

PURPOSE:
  Leave reasons may carry health details. Once a decided request ended
  more than the retention window ago, its reason text is redacted. The
  scheduler runs that purge on a cron schedule.

DESIGN:
  - robfig/cron drives the schedule (UTC)
  - One job: RequestService.PurgeReasons(years)
  - Every run is logged, counted in metrics and audited by the service
  - Years <= 0 disables the scheduler

USAGE:
  rs, err := NewRetentionScheduler(leave, 3, "@every 24h", logger)
  rs.Start()
  // ... later
  rs.Stop()

SEE ALSO:
  - timeoff/retention.go: PurgeReasons
  - config/config.go: RetentionSpec
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lumina/policy-engine/timeoff"
)

// RetentionScheduler redacts expired leave reasons periodically.
type RetentionScheduler struct {
	Leave   *timeoff.RequestService
	Years   int
	Spec    string
	Enabled bool

	log     *slog.Logger
	metrics *engineMetrics
	cron    *cron.Cron
	mu      sync.Mutex
}

// NewRetentionScheduler validates spec and returns a stopped scheduler.
func NewRetentionScheduler(leave *timeoff.RequestService, years int, spec string, log *slog.Logger) (*RetentionScheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	rs := &RetentionScheduler{
		Leave:   leave,
		Years:   years,
		Spec:    spec,
		Enabled: years > 0,
		log:     log,
		metrics: globalEngineMetrics(),
	}
	if rs.Enabled {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("retention schedule %q: %w", spec, err)
		}
	}
	return rs, nil
}

// Start registers the purge job and starts the cron loop.
func (rs *RetentionScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.log.Info("retention scheduler disabled")
		return nil
	}
	if rs.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(rs.Spec, func() {
		_, _ = rs.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}
	c.Start()
	rs.cron = c

	rs.log.Info("retention scheduler started", "schedule", rs.Spec, "years", rs.Years)
	return nil
}

// Stop waits for a running purge to finish.
func (rs *RetentionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron == nil {
		return
	}
	<-rs.cron.Stop().Done()
	rs.cron = nil
	rs.log.Info("retention scheduler stopped")
}

// RunOnce performs one purge immediately.
func (rs *RetentionScheduler) RunOnce(ctx context.Context) (int, error) {
	started := time.Now()
	redacted, err := rs.Leave.PurgeReasons(ctx, rs.Years)
	if err != nil {
		rs.log.Error("retention run failed", "error", err, "redacted", redacted)
		return redacted, err
	}
	rs.metrics.recordRetention(started, redacted)
	rs.log.Info("retention run complete", "redacted", redacted, "took", time.Since(started))
	return redacted, nil
}
