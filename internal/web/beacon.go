package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/analytics"
	"github.com/lukasito25/portfolio/internal/validate"
)

// Beacons are sent with navigator.sendBeacon, which posts text/plain, so
// bodies are decoded by hand rather than through ShouldBindJSON.

type pageViewBeacon struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
}

type engagementBeacon struct {
	ID          string `json:"id"`
	ScrollDepth int    `json:"scroll_depth"`
	DurationMs  int64  `json:"duration_ms"`
}

type eventBeacon struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Target    string `json:"target"`
}

func readBeacon(c *gin.Context, v any) bool {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBeaconSize))
	if err != nil || json.Unmarshal(body, v) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid beacon"})
		return false
	}
	return true
}

func (s *Server) handleBeaconPageView(c *gin.Context) {
	var b pageViewBeacon
	if !readBeacon(c, &b) {
		return
	}
	id, err := s.analytics.TrackPageView(c.Request.Context(), analytics.PageView{
		ID:        b.ID,
		VisitorID: s.visitorID(c),
		SessionID: b.SessionID,
		Path:      b.Path,
		Referrer:  b.Referrer,
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		s.beaconError(c, err)
		return
	}
	if id != "" {
		s.metrics.PageViews.Inc()
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBeaconEngagement(c *gin.Context) {
	var b engagementBeacon
	if !readBeacon(c, &b) {
		return
	}
	err := s.analytics.TrackEngagement(c.Request.Context(), b.ID, b.ScrollDepth, b.DurationMs)
	if errors.Is(err, analytics.ErrUnknownPageView) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		s.beaconError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBeaconEvent(c *gin.Context) {
	var b eventBeacon
	if !readBeacon(c, &b) {
		return
	}
	err := s.analytics.TrackInteraction(c.Request.Context(), analytics.Event{
		VisitorID: s.visitorID(c),
		SessionID: b.SessionID,
		Path:      b.Path,
		Kind:      b.Kind,
		Target:    b.Target,
	})
	if err != nil {
		s.beaconError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) beaconError(c *gin.Context, err error) {
	if errors.Is(err, validate.ErrInvalid) {
		s.respondError(c, err)
		return
	}
	s.log.Error("beacon failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
}
