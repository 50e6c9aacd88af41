package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zeusync/fairway/internal/core/launch"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/session"
	"github.com/zeusync/fairway/internal/core/state"
)

// DigestHeader carries the state digest on GET /state.
const DigestHeader = "X-State-Digest"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"session":        s.ctrl.ID(),
		"clients":        s.ClientCount(),
		"uptime":         time.Since(s.started).String(),
		"bus":            s.ctrl.Events().GetMetrics(),
		"topics":         s.ctrl.Events().GetTopics(),
		"slowDeliveries": s.ctrl.SlowDeliveries(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	snap := s.ctrl.Snapshot()
	c.Header(DigestHeader, strconv.FormatUint(state.Digest(snap), 16))
	c.JSON(http.StatusOK, snap)
}

// handleSwing queues a swing. An empty body uses the configured swing.
func (s *Server) handleSwing(c *gin.Context) {
	var overrides *launch.Overrides
	if c.Request.ContentLength != 0 {
		var req launch.Overrides
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid swing overrides"})
			return
		} else if err == nil {
			overrides = &req
		}
	}
	s.respondQueued(c, "swing", s.ctrl.RequestSwing(overrides))
}

func (s *Server) handleReset(c *gin.Context) {
	zeroScore, err := strconv.ParseBool(c.DefaultQuery("zero_score", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "zero_score must be a boolean"})
		return
	}
	s.respondQueued(c, "reset", s.ctrl.RequestReset(zeroScore))
}

func (s *Server) handleDevMode(c *gin.Context) {
	s.respondQueued(c, "devmode", s.ctrl.ToggleDevMode())
}

func (s *Server) respondQueued(c *gin.Context, command string, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "command": command})
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session closed"})
	default:
		s.logger.Error("command failed", log.String("command", command), log.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "command failed"})
	}
}
