package report

import (
	"fmt"
	"strings"

	"github.com/proxy-batch-checker/internal/types"
)

// BatchReport partitions probe results into three buckets. Within a bucket
// results keep the order they were added, which for a concurrent batch is
// completion order. A BatchReport is fed from a single goroutine and is not
// safe for concurrent Add.
type BatchReport struct {
	Successes []types.ProbeResult `json:"successes"`
	Failures  []types.ProbeResult `json:"failures"`
	Malformed []types.ProbeResult `json:"malformed"`
}

// Counts are exact bucket sizes.
type Counts struct {
	Success   int `json:"success"`
	Fail      int `json:"fail"`
	Malformed int `json:"malformed"`
	Total     int `json:"total"`
}

func New() *BatchReport {
	return &BatchReport{
		Successes: []types.ProbeResult{},
		Failures:  []types.ProbeResult{},
		Malformed: []types.ProbeResult{},
	}
}

// Add appends r to the bucket matching its status.
func (b *BatchReport) Add(r types.ProbeResult) {
	switch r.Status {
	case types.StatusSuccess:
		b.Successes = append(b.Successes, r)
	case types.StatusFail:
		b.Failures = append(b.Failures, r)
	default:
		b.Malformed = append(b.Malformed, r)
	}
}

func (b *BatchReport) Counts() Counts {
	c := Counts{
		Success:   len(b.Successes),
		Fail:      len(b.Failures),
		Malformed: len(b.Malformed),
	}
	c.Total = c.Success + c.Fail + c.Malformed
	return c
}

// WorkingProxies returns the rendered proxy of every success, in bucket order.
func (b *BatchReport) WorkingProxies() []string {
	working := make([]string, 0, len(b.Successes))
	for _, r := range b.Successes {
		working = append(working, r.RenderedProxy)
	}
	return working
}

// Lookup finds the result for an original input line.
func (b *BatchReport) Lookup(original string) (types.ProbeResult, bool) {
	for _, bucket := range [][]types.ProbeResult{b.Successes, b.Failures, b.Malformed} {
		for _, r := range bucket {
			if r.Original == original {
				return r, true
			}
		}
	}
	return types.ProbeResult{}, false
}

// Summary is a one-line human readable count.
func (b *BatchReport) Summary() string {
	c := b.Counts()
	return fmt.Sprintf("%d checked: %d working, %d failed, %d malformed", c.Total, c.Success, c.Fail, c.Malformed)
}

// FormatLine renders a progress line for one result.
func FormatLine(r types.ProbeResult) string {
	var sb strings.Builder
	sb.WriteString(r.Status.Glyph())
	sb.WriteString(" ")
	sb.WriteString(r.Original)

	switch r.Status {
	case types.StatusSuccess:
		ip := r.IP
		if ip == "" {
			ip = "unknown ip"
		}
		fmt.Fprintf(&sb, " | %s | %dms", ip, r.LatencyMs())
	default:
		if r.Message != "" {
			sb.WriteString(" | ")
			sb.WriteString(r.Message)
		}
	}
	return sb.String()
}
