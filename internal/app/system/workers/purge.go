// internal/app/system/workers/purge.go
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/shepherd/internal/app/system/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger permanently removes contacts soft-deleted before cutoff.
type Purger interface {
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ContactPurge runs the purge job on a cron schedule.
type ContactPurge struct {
	purger    Purger
	log       *zap.Logger
	schedule  string
	retention time.Duration
	timeout   time.Duration

	cron    *cron.Cron
	running sync.Mutex
	now     func() time.Time
}

// NewContactPurge creates a purge worker. schedule is a standard five-field
// cron expression (or a descriptor such as "@daily").
func NewContactPurge(p Purger, logger *zap.Logger, schedule string, retention, timeout time.Duration) *ContactPurge {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ContactPurge{
		purger:    p,
		log:       logger,
		schedule:  schedule,
		retention: retention,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Start registers the job and starts the scheduler. A zero retention
// disables the worker.
func (w *ContactPurge) Start() error {
	if w.retention <= 0 {
		w.log.Info("contact purge worker disabled (retention is zero)")
		return nil
	}
	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.schedule, w.RunOnce); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.log.Info("contact purge worker started",
		zap.String("schedule", w.schedule),
		zap.Duration("retention", w.retention))
	return nil
}

// Stop waits for a running job to finish.
func (w *ContactPurge) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
	w.log.Info("contact purge worker stopped")
}

// RunOnce purges once. Overlapping runs are skipped.
func (w *ContactPurge) RunOnce() {
	if !w.running.TryLock() {
		w.log.Warn("previous contact purge still running; skipping")
		return
	}
	defer w.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	cutoff := w.now().UTC().Add(-w.retention)
	n, err := w.purger.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		w.log.Error("contact purge failed", zap.Error(err))
		return
	}
	metrics.AddPurged(n)
	if n > 0 {
		w.log.Info("purged soft-deleted contacts",
			zap.Int64("count", n),
			zap.Time("cutoff", cutoff))
	}
}
