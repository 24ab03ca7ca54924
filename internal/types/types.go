package types

import (
	"fmt"
	"time"
)

// Status buckets a probe outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusFail
	StatusMalformed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFail:
		return "fail"
	case StatusMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Glyph is the progress-line prefix for the status.
func (s Status) Glyph() string {
	switch s {
	case StatusSuccess:
		return "[+]"
	case StatusFail:
		return "[-]"
	default:
		return "[!]"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ProbeResult is the outcome of one input line.
type ProbeResult struct {
	Original      string        `json:"original"`
	Status        Status        `json:"status"`
	IP            string        `json:"ip,omitempty"`
	Elapsed       time.Duration `json:"-"`
	RenderedProxy string        `json:"proxy,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// LatencyMs returns Elapsed in milliseconds.
func (r ProbeResult) LatencyMs() int64 {
	return r.Elapsed.Milliseconds()
}

// Stats summarises the last batch
type Stats struct {
	Scheme         string    `json:"scheme"`
	Total          int       `json:"total"`
	Success        int       `json:"success"`
	Fail           int       `json:"fail"`
	Malformed      int       `json:"malformed"`
	SuccessPercent float64   `json:"success_percent"`
	DurationMs     int64     `json:"duration_ms"`
	LastCheckTime  time.Time `json:"last_check_time"`
}

// Snapshot is the persisted known-good list plus the stats that produced it.
type Snapshot struct {
	Working []string  `json:"working"`
	Stats   Stats     `json:"stats"`
	Updated time.Time `json:"updated"`
}
