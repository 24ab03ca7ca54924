package api

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// requestLogger logs one entry per request, at warn level for 5xx.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("API request failed")
			return
		}
		entry.Info("API request")
	}
}

func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := routeOf(c)
		c.Next()

		s.metrics.RecordAPIRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
		s.metrics.RecordAPIDuration(c.Request.Method, route, time.Since(start).Seconds())
	}
}

// requireAPIKey accepts the key from the X-Api-Key header or the key query
// parameter. An unset key variable leaves the routes open.
func (s *Server) requireAPIKey() gin.HandlerFunc {
	expected := []byte(os.Getenv(s.config.API.APIKeyEnv))
	if len(expected) == 0 {
		log.Warnf("API key auth enabled but %s is empty, routes stay open", s.config.API.APIKeyEnv)
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		given := c.GetHeader("X-Api-Key")
		if given == "" {
			given = c.Query("key")
		}

		if subtle.ConstantTimeCompare([]byte(given), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			return
		}
		c.Next()
	}
}

func (s *Server) limitPerIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiters.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
