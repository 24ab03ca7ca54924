package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/proxy-batch-checker/internal/checker"
	"github.com/proxy-batch-checker/internal/metrics"
	"github.com/proxy-batch-checker/internal/report"
	"github.com/proxy-batch-checker/internal/snapshot"
	"github.com/proxy-batch-checker/internal/source"
	log "github.com/sirupsen/logrus"
)

// ErrCycleRunning is returned when a source refresh is already in progress.
var ErrCycleRunning = errors.New("refresh already running")

// Runner ties a batch check to the snapshot it feeds.
type Runner struct {
	fetcher  *source.Fetcher
	checker  *checker.Checker
	snapshot *snapshot.Manager
	metrics  *metrics.Collector
	running  atomic.Bool
}

func NewRunner(fetcher *source.Fetcher, chk *checker.Checker, snap *snapshot.Manager, metricsCollector *metrics.Collector) *Runner {
	return &Runner{
		fetcher:  fetcher,
		checker:  chk,
		snapshot: snap,
		metrics:  metricsCollector,
	}
}

// Check runs one batch over lines and publishes its working proxies.
func (r *Runner) Check(ctx context.Context, lines []string, scheme string, progress checker.ProgressFunc) *report.BatchReport {
	start := time.Now()
	batch := r.checker.CheckProxies(ctx, lines, scheme, progress)

	if r.snapshot != nil {
		snap := r.snapshot.Update(scheme, batch, time.Since(start))
		r.metrics.SetWorkingProxies(len(snap.Working))
	}

	return batch
}

// Refresh fetches the configured sources and checks everything they list.
// Only one refresh runs at a time.
func (r *Runner) Refresh(ctx context.Context, scheme string) (*report.BatchReport, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.running.Store(false)

	return r.refresh(ctx, scheme)
}

// RefreshAsync starts Refresh in the background. It fails immediately when
// a refresh is already running.
func (r *Runner) RefreshAsync(ctx context.Context, scheme string) error {
	if err := r.acquire(); err != nil {
		return err
	}

	go func() {
		defer r.running.Store(false)
		if _, err := r.refresh(ctx, scheme); err != nil {
			log.Errorf("Refresh failed: %v", err)
		}
	}()
	return nil
}

func (r *Runner) acquire() error {
	if r.fetcher == nil {
		return fmt.Errorf("no sources configured")
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrCycleRunning
	}
	return nil
}

func (r *Runner) refresh(ctx context.Context, scheme string) (*report.BatchReport, error) {
	start := time.Now()
	log.Info("Starting refresh cycle")

	lines, sourceStats, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sources: %w", err)
	}
	log.Infof("Fetched %d unique lines from %d sources", len(lines), len(sourceStats))

	if len(lines) == 0 {
		log.Warn("No proxies to check, skipping check cycle")
		return report.New(), nil
	}

	batch := r.Check(ctx, lines, scheme, nil)
	log.Infof("Refresh cycle complete in %v: %s", time.Since(start), batch.Summary())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Debugf("Memory: Alloc=%dMB, Sys=%dMB, NumGC=%d, Goroutines=%d",
		m.Alloc/1024/1024, m.Sys/1024/1024, m.NumGC, runtime.NumGoroutine())

	return batch, nil
}

// Loop runs Refresh immediately and then every interval until ctx ends.
func (r *Runner) Loop(ctx context.Context, scheme string, interval time.Duration) {
	r.refreshAndLog(ctx, scheme)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Refresh loop stopped")
			return
		case <-ticker.C:
			r.refreshAndLog(ctx, scheme)
		}
	}
}

func (r *Runner) refreshAndLog(ctx context.Context, scheme string) {
	if _, err := r.Refresh(ctx, scheme); err != nil {
		log.Errorf("Refresh failed: %v", err)
	}
}
