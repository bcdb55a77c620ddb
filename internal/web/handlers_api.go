package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lukasito25/portfolio/internal/chat"
	"github.com/lukasito25/portfolio/internal/contact"
	"github.com/lukasito25/portfolio/internal/content"
	"github.com/lukasito25/portfolio/internal/validate"
)

// listOptions reads tag, limit and offset query parameters.
func listOptions(c *gin.Context) content.ListOptions {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return content.ListOptions{
		Tag:          c.Query("tag"),
		FeaturedOnly: c.Query("featured") == "true",
		Limit:        min(max(limit, 0), 100),
		Offset:       max(offset, 0),
	}
}

func (s *Server) handleAPIProjects(c *gin.Context) {
	projects, err := s.content.ListProjects(c.Request.Context(), listOptions(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": projects})
}

func (s *Server) handleAPIProject(c *gin.Context) {
	p, err := s.content.GetProject(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

func (s *Server) handleAPIProjectStats(c *gin.Context) {
	p, err := s.content.GetProject(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if s.repoStats == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "repository stats are disabled"})
		return
	}
	stats, err := s.repoStats.Stats(c.Request.Context(), p.RepoURL)
	if err != nil {
		if errors.Is(err, content.ErrNoRepo) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "repository stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

func (s *Server) handleAPIPosts(c *gin.Context) {
	posts, err := s.content.ListPosts(c.Request.Context(), listOptions(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": posts})
}

func (s *Server) handleAPIPost(c *gin.Context) {
	p, err := s.content.GetPost(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

func (s *Server) handleAPITags(c *gin.Context) {
	tags, err := s.content.Tags(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tags})
}

func (s *Server) handleAPIContact(c *gin.Context) {
	var sub contact.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		s.metrics.ContactSubmissions.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	msg, err := s.contact.Submit(c.Request.Context(), sub, contact.Meta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	if err != nil {
		if errors.Is(err, validate.ErrInvalid) {
			s.metrics.ContactSubmissions.WithLabelValues("invalid").Inc()
		} else {
			s.metrics.ContactSubmissions.WithLabelValues("error").Inc()
		}
		s.respondError(c, err)
		return
	}
	s.metrics.ContactSubmissions.WithLabelValues(submitResult(msg)).Inc()
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Thanks for reaching out. I will get back to you soon.",
	})
}

func (s *Server) handleAPIChatStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "available": s.chat.Available()})
}

func (s *Server) handleAPIChat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.ChatRequests.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	reply, err := s.chat.Reply(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrInvalid):
			s.metrics.ChatRequests.WithLabelValues("invalid").Inc()
			s.respondError(c, err)
		case errors.Is(err, chat.ErrUnavailable):
			s.metrics.ChatRequests.WithLabelValues("unavailable").Inc()
			s.respondError(c, err)
		default:
			s.metrics.ChatRequests.WithLabelValues("error").Inc()
			_ = c.Error(err)
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "the assistant could not answer right now"})
		}
		return
	}
	s.metrics.ChatRequests.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"message": reply}})
}
