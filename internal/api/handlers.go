package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleUsageHistory(c *gin.Context) {
	daysStr := c.DefaultQuery("days", "30")
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days parameter"})
		return
	}
	if days < 1 {
		days = 1
	}
	if days > 365 {
		days = 365
	}

	agg, err := s.store.AggregateHistory(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (s *Server) handleModelStatus(c *gin.Context) {
	status, err := s.gateway.ModelStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleHealthz(c *gin.Context) {
	snapshots, err := s.store.SnapshotCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"snapshots":      snapshots,
	})
}

func (s *Server) handleUpdateRetention(c *gin.Context) {
	if s.cleaner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "retention cleaner not running"})
		return
	}

	var body struct {
		RetentionDays *int `json:"retention_days"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.RetentionDays == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "retention_days is required"})
		return
	}
	days := *body.RetentionDays
	if days < 0 || days > 3650 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "retention_days must be between 0 and 3650"})
		return
	}

	previous := s.cleaner.UpdateRetentionDays(days)
	c.JSON(http.StatusOK, gin.H{
		"retention_days": days,
		"previous_days":  previous,
	})
}
