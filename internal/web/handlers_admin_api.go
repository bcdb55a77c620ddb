package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lukasito25/portfolio/internal/content"
)

func (s *Server) handleAdminAPIProjects(c *gin.Context) {
	opts := listOptions(c)
	opts.IncludeDrafts = true
	projects, err := s.content.ListProjects(c.Request.Context(), opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": projects})
}

func (s *Server) handleAdminAPIProject(c *gin.Context) {
	p, err := s.content.GetProjectByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

func (s *Server) handleAdminAPIProjectCreate(c *gin.Context) {
	var in content.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	p, err := s.content.CreateProject(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.contentChanged()
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": p})
}

func (s *Server) handleAdminAPIProjectUpdate(c *gin.Context) {
	var in content.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	p, err := s.content.UpdateProject(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.contentChanged()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

func (s *Server) handleAdminAPIProjectDelete(c *gin.Context) {
	if err := s.content.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	s.contentChanged()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleAdminAPIPosts(c *gin.Context) {
	opts := listOptions(c)
	opts.IncludeDrafts = true
	posts, err := s.content.ListPosts(c.Request.Context(), opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": posts})
}

func (s *Server) handleAdminAPIPost(c *gin.Context) {
	p, err := s.content.GetPostByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

func (s *Server) handleAdminAPIPostCreate(c *gin.Context) {
	var in content.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	p, err := s.content.CreatePost(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.contentChanged()
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": p})
}

func (s *Server) handleAdminAPIPostUpdate(c *gin.Context) {
	var in content.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	p, err := s.content.UpdatePost(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.contentChanged()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

func (s *Server) handleAdminAPIPostDelete(c *gin.Context) {
	if err := s.content.DeletePost(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	s.contentChanged()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleAdminAPIMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(adminPageSize)))
	offset, _ := strconv.Atoi(c.Query("offset"))
	msgs, err := s.contact.List(c.Request.Context(), c.Query("unread") == "1", min(max(limit, 1), 200), max(offset, 0))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": msgs})
}

func (s *Server) handleAdminAPISummary(c *gin.Context) {
	summary, err := s.analytics.Summary(c.Request.Context(), s.analytics.Since(reportDays(c)))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

func (s *Server) handleAdminAPILeads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(adminPageSize)))
	leads, err := s.analytics.Leads(c.Request.Context(), s.analytics.Since(reportDays(c)), min(max(limit, 1), 500))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": leads})
}
