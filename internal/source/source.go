package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/proxy-batch-checker/internal/config"
	"github.com/proxy-batch-checker/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// maxListBytes limits a remote list body.
const maxListBytes = 10 * 1024 * 1024

// ParseLines reads a newline-delimited proxy list. Lines are trimmed; blank
// lines and '#' comments are skipped. Order is preserved.
func ParseLines(r io.Reader) ([]string, error) {
	lines := make([]string, 0)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("scan: %w", err)
	}

	return lines, nil
}

// LoadFile reads a proxy list from path.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return ParseLines(f)
}

type Stats struct {
	URL        string `json:"url"`
	LinesFound int    `json:"lines_found"`
	Error      string `json:"error,omitempty"`
}

// Fetcher downloads proxy lists from remote sources.
type Fetcher struct {
	config  config.SourcesConfig
	metrics *metrics.Collector
	client  *http.Client
}

func NewFetcher(cfg config.SourcesConfig, metricsCollector *metrics.Collector) *Fetcher {
	return &Fetcher{
		config:  cfg,
		metrics: metricsCollector,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch downloads every enabled source concurrently and returns the
// de-duplicated union of their lines in first-seen order. A failing source
// is recorded in its stats and does not fail the fetch.
func (f *Fetcher) Fetch(ctx context.Context) ([]string, map[string]Stats, error) {
	enabled := make([]config.Source, 0)
	for _, src := range f.config.Lists {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	if len(enabled) == 0 {
		return nil, nil, fmt.Errorf("no enabled sources")
	}

	log.Infof("Fetching from %d sources", len(enabled))

	// One slot per source keeps the merge order stable.
	perSource := make([][]string, len(enabled))
	stats := make([]Stats, len(enabled))

	var wg sync.WaitGroup
	for i, src := range enabled {
		wg.Add(1)
		go func(i int, src config.Source) {
			defer wg.Done()

			startTime := time.Now()
			lines, err := f.fetchSource(ctx, src)
			duration := time.Since(startTime)

			stats[i] = Stats{URL: src.URL, LinesFound: len(lines)}
			if err != nil {
				stats[i].Error = err.Error()
				log.Warnf("Source %s failed: %v (took %v)", src.URL, err, duration)
			} else {
				log.Infof("Source %s returned %d lines (took %v)", src.URL, len(lines), duration)
			}

			f.metrics.RecordSourceLines(src.URL, len(lines))
			perSource[i] = lines
		}(i, src)
	}
	wg.Wait()

	all := make([]string, 0)
	for _, lines := range perSource {
		all = append(all, lines...)
	}

	sourceStats := make(map[string]Stats, len(stats))
	for _, stat := range stats {
		sourceStats[stat.URL] = stat
	}

	unique := Deduplicate(all)
	log.Infof("Deduplicated: %d -> %d unique lines", len(all), len(unique))

	return unique, sourceStats, nil
}

func (f *Fetcher) fetchSource(ctx context.Context, src config.Source) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return ParseLines(io.LimitReader(resp.Body, maxListBytes))
}

// Deduplicate drops repeated lines, keeping the first occurrence.
func Deduplicate(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	unique := make([]string, 0, len(lines))

	for _, line := range lines {
		if _, exists := seen[line]; !exists {
			seen[line] = struct{}{}
			unique = append(unique, line)
		}
	}

	return unique
}
