package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/auth"
	"github.com/lukasito25/portfolio/internal/chat"
	"github.com/lukasito25/portfolio/internal/content"
	"github.com/lukasito25/portfolio/internal/validate"
)

// respondError writes the JSON error envelope for err.
func (s *Server) respondError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func errorBody(err error) (int, gin.H) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, gin.H{"success": false, "error": "invalid input", "fields": verr.Fields}
	case errors.Is(err, content.ErrInvalid):
		return http.StatusBadRequest, gin.H{"success": false, "error": err.Error()}
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, gin.H{"success": false, "error": "not found"}
	case errors.Is(err, content.ErrSlugTaken):
		return http.StatusConflict, gin.H{"success": false, "error": err.Error()}
	case errors.Is(err, chat.ErrUnavailable):
		return http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"}
	}
}

// fieldErrors returns the per-field messages of a validation error, for
// re-rendering forms.
func fieldErrors(err error) map[string]string {
	var verr *validate.Error
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

// htmlError renders the not-found page or the generic error page.
func (s *Server) htmlError(c *gin.Context, err error) {
	if errors.Is(err, content.ErrNotFound) {
		s.handleNotFound(c)
		return
	}
	s.log.Error("page failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	_ = c.Error(err)
	s.html(c, http.StatusInternalServerError, "error", "Something went wrong", nil)
}

func (s *Server) handleNotFound(c *gin.Context) {
	if isAPIPath(c.Request.URL.Path) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
		return
	}
	s.html(c, http.StatusNotFound, "notfound", "Not found", nil)
}
