package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/proxy-batch-checker/internal/config"
	"github.com/proxy-batch-checker/internal/descriptor"
	"github.com/proxy-batch-checker/internal/metrics"
	"github.com/proxy-batch-checker/internal/report"
	"github.com/proxy-batch-checker/internal/types"
	log "github.com/sirupsen/logrus"
)

// ErrUnsupportedScheme is returned for probe schemes other than socks5 and http.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// ProgressFunc is called once per completed input, from a single goroutine.
type ProgressFunc func(types.ProbeResult)

type Checker struct {
	config    config.CheckerConfig
	metrics   *metrics.Collector
	transport Transport
}

// NewChecker builds a Checker. A nil transport selects the network-backed
// HTTPTransport using the configured timeout.
func NewChecker(cfg config.CheckerConfig, metricsCollector *metrics.Collector, transport Transport) *Checker {
	if cfg.Workers < 1 {
		cfg.Workers = config.DefaultWorkers
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = config.DefaultTimeoutMs
	}
	if cfg.TestURL == "" {
		cfg.TestURL = config.DefaultTestURL
	}
	if transport == nil {
		transport = NewHTTPTransport(cfg.Timeout())
	}

	return &Checker{
		config:    cfg,
		metrics:   metricsCollector,
		transport: transport,
	}
}

// CheckProxies probes every line through scheme with at most Workers probes
// in flight and blocks until all of them resolve. Every line yields exactly
// one result. Lines that do not parse, or a scheme that cannot be probed,
// produce Malformed results without taking a worker slot. Result order
// inside the report is completion order.
func (c *Checker) CheckProxies(ctx context.Context, lines []string, scheme string, progress ProgressFunc) *report.BatchReport {
	total := len(lines)
	workers := c.config.Workers
	log.Infof("Starting proxy check: %d proxies, scheme=%s, workers=%d", total, scheme, workers)

	startTime := time.Now()

	results := make(chan types.ProbeResult, total)
	sem := make(chan struct{}, workers)

	var completed atomic.Int64
	done := make(chan struct{})
	defer close(done)
	go c.logProgress(done, &completed, total)

	go func() {
		var wg sync.WaitGroup

		for _, line := range lines {
			original := strings.TrimSpace(line)

			d, err := descriptor.Parse(original)
			if err != nil {
				results <- malformedResult(original, err.Error())
				continue
			}
			if !config.IsProbeScheme(scheme) {
				results <- malformedResult(original, fmt.Sprintf("%v: %q", ErrUnsupportedScheme, scheme))
				continue
			}

			sem <- struct{}{} // Acquire semaphore
			wg.Add(1)

			go func(original string, d descriptor.Descriptor) {
				defer wg.Done()
				defer func() { <-sem }() // Release semaphore

				results <- c.probe(ctx, original, d, scheme)
			}(original, d)
		}

		wg.Wait()
		close(results)
	}()

	batch := report.New()
	for result := range results {
		completed.Add(1)
		c.record(result)
		batch.Add(result)

		log.WithFields(log.Fields{
			"proxy":  result.Original,
			"status": result.Status.String(),
		}).Debug(report.FormatLine(result))

		if progress != nil {
			progress(result)
		}
	}

	duration := time.Since(startTime)
	c.metrics.RecordBatchDuration(duration.Seconds())
	log.Infof("Check complete: %s in %v", batch.Summary(), duration)

	return batch
}

// Probe checks a single descriptor. The result's Original is the raw
// colon-delimited form of d.
func (c *Checker) Probe(ctx context.Context, d descriptor.Descriptor, scheme string) types.ProbeResult {
	result := c.probe(ctx, d.String(), d, scheme)
	c.record(result)
	return result
}

// probe performs exactly one GET through d, or none when the scheme is unsupported.
func (c *Checker) probe(ctx context.Context, original string, d descriptor.Descriptor, scheme string) types.ProbeResult {
	if !config.IsProbeScheme(scheme) {
		return malformedResult(original, fmt.Sprintf("%v: %q", ErrUnsupportedScheme, scheme))
	}

	rendered, err := descriptor.Render(d, descriptor.Format(scheme))
	if err != nil {
		return malformedResult(original, err.Error())
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout())
	defer cancel()

	startTime := time.Now()
	resp, err := c.transport.Get(reqCtx, d.URL(scheme), c.config.TestURL)
	elapsed := time.Since(startTime)

	if err != nil {
		return types.ProbeResult{
			Original:      original,
			Status:        types.StatusFail,
			Elapsed:       elapsed,
			RenderedProxy: rendered,
			Message:       err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return types.ProbeResult{
			Original:      original,
			Status:        types.StatusFail,
			Elapsed:       elapsed,
			RenderedProxy: rendered,
			Message:       fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}

	result := types.ProbeResult{
		Original:      original,
		Status:        types.StatusSuccess,
		IP:            parseObservedIP(resp.Body),
		Elapsed:       elapsed,
		RenderedProxy: rendered,
	}
	if result.IP == "" {
		result.Message = "no ip in echo response"
	}
	return result
}

func (c *Checker) record(result types.ProbeResult) {
	c.metrics.RecordProbe(result.Status.String())
	if result.Status == types.StatusSuccess {
		c.metrics.RecordProbeDuration(result.Elapsed.Seconds())
	}
}

func (c *Checker) logProgress(done <-chan struct{}, completed *atomic.Int64, total int) {
	progressTicker := time.NewTicker(5 * time.Second)
	defer progressTicker.Stop()

	for {
		select {
		case <-done:
			return
		case <-progressTicker.C:
			current := completed.Load()
			percent := float64(current) / float64(total) * 100.0
			log.Infof("Progress: %d/%d (%.1f%%)", current, total, percent)
		}
	}
}

func malformedResult(original, message string) types.ProbeResult {
	return types.ProbeResult{
		Original: original,
		Status:   types.StatusMalformed,
		Message:  message,
	}
}
