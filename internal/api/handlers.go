package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proxy-batch-checker/internal/config"
	"github.com/proxy-batch-checker/internal/descriptor"
	"github.com/proxy-batch-checker/internal/pipeline"
	"github.com/proxy-batch-checker/internal/report"
	"github.com/proxy-batch-checker/internal/types"
	log "github.com/sirupsen/logrus"
)

const errScheme = "scheme must be 'socks5' or 'http'"

type convertRequest struct {
	Format  string   `json:"format"`
	Proxies []string `json:"proxies"`
}

type checkRequest struct {
	Scheme  string   `json:"scheme"`
	Proxies []string `json:"proxies"`
}

// resultView is the JSON shape of one probe result.
type resultView struct {
	Original  string `json:"original"`
	Status    string `json:"status"`
	IP        string `json:"ip,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Proxy     string `json:"proxy,omitempty"`
	Message   string `json:"message,omitempty"`
}

func viewsOf(results []types.ProbeResult) []resultView {
	views := make([]resultView, 0, len(results))
	for _, r := range results {
		views = append(views, resultView{
			Original:  r.Original,
			Status:    r.Status.String(),
			IP:        r.IP,
			LatencyMs: r.LatencyMs(),
			Proxy:     r.RenderedProxy,
			Message:   r.Message,
		})
	}
	return views
}

func batchResponse(scheme string, batch *report.BatchReport) gin.H {
	return gin.H{
		"scheme":    scheme,
		"counts":    batch.Counts(),
		"working":   batch.WorkingProxies(),
		"successes": viewsOf(batch.Successes),
		"failures":  viewsOf(batch.Failures),
		"malformed": viewsOf(batch.Malformed),
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleConvert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	format, err := descriptor.ParseFormat(req.Format)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	converted, err := descriptor.ConvertAll(req.Proxies, format)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"format":  format,
		"count":   len(converted),
		"proxies": converted,
	})
}

func (s *Server) handleCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	scheme := req.Scheme
	if scheme == "" {
		scheme = s.config.Checker.Scheme
	}
	if !config.IsProbeScheme(scheme) {
		badRequest(c, errScheme)
		return
	}

	var lines []string
	for _, p := range req.Proxies {
		if strings.TrimSpace(p) != "" {
			lines = append(lines, p)
		}
	}
	switch limit := s.config.Checker.MaxBatchSize; {
	case len(lines) == 0:
		badRequest(c, "no proxies given")
		return
	case len(lines) > limit:
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("at most %d proxies per request", limit)})
		return
	}

	// Probes already started finish even if the client goes away.
	batch := s.runner.Check(context.WithoutCancel(c.Request.Context()), lines, scheme, nil)
	c.JSON(http.StatusOK, batchResponse(scheme, batch))
}

// handleWorking hands out published proxies: one per call in round-robin
// order by default, limit=N for a sample, all=1 for the whole list.
func (s *Server) handleWorking(c *gin.Context) {
	total := len(s.snapshot.Get().Working)
	if total == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No working proxies available"})
		return
	}

	var proxies []string
	switch {
	case c.Query("all") == "1":
		proxies = s.snapshot.GetAll()
	case c.Query("limit") != "":
		n, err := strconv.Atoi(c.Query("limit"))
		if err != nil || n < 1 {
			badRequest(c, "Invalid limit parameter")
			return
		}
		proxies = s.snapshot.GetProxies(n)
	default:
		if p, ok := s.snapshot.GetProxy(); ok {
			proxies = []string{p}
		}
	}

	if c.Query("format") == "json" || strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.JSON(http.StatusOK, gin.H{"total": total, "proxies": proxies})
		return
	}

	var body strings.Builder
	for _, p := range proxies {
		body.WriteString(p)
		body.WriteByte('\n')
	}
	c.String(http.StatusOK, body.String())
}

func (s *Server) handleStat(c *gin.Context) {
	snap := s.snapshot.Get()
	st := snap.Stats

	c.JSON(http.StatusOK, gin.H{
		"scheme":          st.Scheme,
		"total":           st.Total,
		"success":         st.Success,
		"fail":            st.Fail,
		"malformed":       st.Malformed,
		"success_percent": fmt.Sprintf("%.2f%%", st.SuccessPercent),
		"duration_ms":     st.DurationMs,
		"last_check":      st.LastCheckTime.Format(time.RFC3339),
		"updated":         snap.Updated.Format(time.RFC3339),
		"working":         len(snap.Working),
	})
}

// handleReload starts a background source refresh and returns at once.
func (s *Server) handleReload(c *gin.Context) {
	scheme := c.DefaultQuery("scheme", s.config.Checker.Scheme)
	if !config.IsProbeScheme(scheme) {
		badRequest(c, errScheme)
		return
	}

	err := s.runner.RefreshAsync(context.Background(), scheme)
	switch {
	case errors.Is(err, pipeline.ErrCycleRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.WithField("scheme", scheme).Info("Reload started via API")
		c.JSON(http.StatusAccepted, gin.H{"message": "Reload triggered"})
	}
}
