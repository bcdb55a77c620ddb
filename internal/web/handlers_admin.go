package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/auth"
	"github.com/lukasito25/portfolio/internal/content"
)

var errUnreadableForm = errors.New("form could not be read")

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func (s *Server) handleLoginForm(c *gin.Context) {
	hasUsers, err := s.auth.HasUsers(c.Request.Context())
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "admin/login", "Sign in", gin.H{
		"Next":     auth.SafeNext(c.Query("next")),
		"NoAdmins": !hasUsers,
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)
	next := auth.SafeNext(form.Next)
	data := gin.H{"Next": next, "Email": form.Email}

	if ok, _ := s.loginLimiter.Reserve(c.ClientIP()); !ok {
		s.metrics.LoginAttempts.WithLabelValues("limited").Inc()
		data["Error"] = "Too many sign-in attempts. Wait a minute and try again."
		s.html(c, http.StatusTooManyRequests, "admin/login", "Sign in", data)
		return
	}

	sess, user, err := s.auth.Login(c.Request.Context(), form.Email, form.Password, auth.Meta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
			data["Error"] = "Invalid email or password."
			s.html(c, http.StatusUnauthorized, "admin/login", "Sign in", data)
			return
		}
		s.metrics.LoginAttempts.WithLabelValues("error").Inc()
		s.htmlError(c, err)
		return
	}

	s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.log.Info("admin signed in", zap.String("user", user.Email), zap.String("ip", c.ClientIP()))
	s.cookie.SetCookie(c, sess)
	c.Redirect(http.StatusSeeOther, next)
}

func (s *Server) handleLogout(c *gin.Context) {
	token, _ := c.Cookie(s.cookie.Name)
	if err := s.auth.Logout(c.Request.Context(), token); err != nil {
		s.log.Error("logout failed", zap.Error(err))
	}
	s.cookie.ClearCookie(c)
	c.Redirect(http.StatusSeeOther, "/admin/login")
}

func (s *Server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := s.content.Stats(ctx)
	if err != nil {
		s.htmlError(c, err)
		return
	}
	unread, err := s.contact.UnreadCount(ctx)
	if err != nil {
		s.htmlError(c, err)
		return
	}
	since := s.analytics.Since(defaultDays)
	summary, err := s.analytics.Summary(ctx, since)
	if err != nil {
		s.htmlError(c, err)
		return
	}
	leads, err := s.analytics.Leads(ctx, since, dashboardLeads)
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "admin/dashboard", "Dashboard", gin.H{
		"Stats":   stats,
		"Unread":  unread,
		"Summary": summary,
		"Leads":   leads,
		"Days":    defaultDays,
	})
}

// Projects

func (s *Server) handleAdminProjects(c *gin.Context) {
	projects, err := s.content.ListProjects(c.Request.Context(), content.ListOptions{IncludeDrafts: true})
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "admin/projects", "Projects", gin.H{"Projects": projects, "Saved": c.Query("saved")})
}

func (s *Server) handleAdminProjectNew(c *gin.Context) {
	s.html(c, http.StatusOK, "admin/project_form", "New project", gin.H{
		"Input":  content.ProjectInput{},
		"Action": "/admin/projects",
	})
}

func (s *Server) handleAdminProjectCreate(c *gin.Context) {
	var in content.ProjectInput
	if err := c.ShouldBind(&in); err != nil {
		s.projectFormError(c, "/admin/projects", in, errUnreadableForm)
		return
	}
	if _, err := s.content.CreateProject(c.Request.Context(), in); err != nil {
		s.projectFormError(c, "/admin/projects", in, err)
		return
	}
	s.contentChanged()
	c.Redirect(http.StatusSeeOther, "/admin/projects?saved=created")
}

func (s *Server) handleAdminProjectEdit(c *gin.Context) {
	p, err := s.content.GetProjectByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "admin/project_form", "Edit project", gin.H{
		"Input":   content.ProjectInputFrom(p),
		"Project": p,
		"Action":  "/admin/projects/" + p.ID,
	})
}

func (s *Server) handleAdminProjectUpdate(c *gin.Context) {
	id := c.Param("id")
	action := "/admin/projects/" + id
	var in content.ProjectInput
	if err := c.ShouldBind(&in); err != nil {
		s.projectFormError(c, action, in, errUnreadableForm)
		return
	}
	if _, err := s.content.UpdateProject(c.Request.Context(), id, in); err != nil {
		s.projectFormError(c, action, in, err)
		return
	}
	s.contentChanged()
	c.Redirect(http.StatusSeeOther, "/admin/projects?saved=updated")
}

func (s *Server) handleAdminProjectDelete(c *gin.Context) {
	if err := s.content.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		s.htmlError(c, err)
		return
	}
	s.contentChanged()
	c.Redirect(http.StatusSeeOther, "/admin/projects?saved=deleted")
}

func (s *Server) projectFormError(c *gin.Context, action string, in content.ProjectInput, err error) {
	status, data := formErrorData(err)
	if status == 0 {
		s.htmlError(c, err)
		return
	}
	data["Input"] = in
	data["Action"] = action
	s.html(c, status, "admin/project_form", "Project", data)
}

// Posts

func (s *Server) handleAdminPosts(c *gin.Context) {
	posts, err := s.content.ListPosts(c.Request.Context(), content.ListOptions{IncludeDrafts: true})
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "admin/posts", "Posts", gin.H{"Posts": posts, "Saved": c.Query("saved")})
}

func (s *Server) handleAdminPostNew(c *gin.Context) {
	s.html(c, http.StatusOK, "admin/post_form", "New post", gin.H{
		"Input":  content.PostInput{},
		"Action": "/admin/posts",
	})
}

func (s *Server) handleAdminPostCreate(c *gin.Context) {
	var in content.PostInput
	if err := c.ShouldBind(&in); err != nil {
		s.postFormError(c, "/admin/posts", in, errUnreadableForm)
		return
	}
	if _, err := s.content.CreatePost(c.Request.Context(), in); err != nil {
		s.postFormError(c, "/admin/posts", in, err)
		return
	}
	s.contentChanged()
	c.Redirect(http.StatusSeeOther, "/admin/posts?saved=created")
}

func (s *Server) handleAdminPostEdit(c *gin.Context) {
	p, err := s.content.GetPostByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "admin/post_form", "Edit post", gin.H{
		"Input":  content.PostInputFrom(p),
		"Post":   p,
		"Action": "/admin/posts/" + p.ID,
	})
}

func (s *Server) handleAdminPostUpdate(c *gin.Context) {
	id := c.Param("id")
	action := "/admin/posts/" + id
	var in content.PostInput
	if err := c.ShouldBind(&in); err != nil {
		s.postFormError(c, action, in, errUnreadableForm)
		return
	}
	if _, err := s.content.UpdatePost(c.Request.Context(), id, in); err != nil {
		s.postFormError(c, action, in, err)
		return
	}
	s.contentChanged()
	c.Redirect(http.StatusSeeOther, "/admin/posts?saved=updated")
}

func (s *Server) handleAdminPostDelete(c *gin.Context) {
	if err := s.content.DeletePost(c.Request.Context(), c.Param("id")); err != nil {
		s.htmlError(c, err)
		return
	}
	s.contentChanged()
	c.Redirect(http.StatusSeeOther, "/admin/posts?saved=deleted")
}

func (s *Server) postFormError(c *gin.Context, action string, in content.PostInput, err error) {
	status, data := formErrorData(err)
	if status == 0 {
		s.htmlError(c, err)
		return
	}
	data["Input"] = in
	data["Action"] = action
	s.html(c, status, "admin/post_form", "Post", data)
}

// formErrorData maps a bind or write error to the status and messages of a
// re-rendered form. A zero status means the error is not the user's.
func formErrorData(err error) (int, gin.H) {
	switch {
	case fieldErrors(err) != nil:
		return http.StatusBadRequest, gin.H{"Fields": fieldErrors(err)}
	case errors.Is(err, content.ErrSlugTaken):
		return http.StatusConflict, gin.H{"Fields": map[string]string{"slug": "is already in use"}}
	case errors.Is(err, content.ErrInvalid):
		return http.StatusBadRequest, gin.H{"Error": err.Error()}
	case errors.Is(err, errUnreadableForm):
		return http.StatusBadRequest, gin.H{"Error": "Please check the numeric fields and try again."}
	default:
		return 0, nil
	}
}

// contentChanged drops the chat prompt so the assistant sees edits.
func (s *Server) contentChanged() {
	s.chat.Refresh()
}

// Messages

func (s *Server) handleAdminMessages(c *gin.Context) {
	unreadOnly := c.Query("unread") == "1"
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	page = max(page, 1)
	msgs, err := s.contact.List(c.Request.Context(), unreadOnly, adminPageSize+1, (page-1)*adminPageSize)
	if err != nil {
		s.htmlError(c, err)
		return
	}
	hasNext := len(msgs) > adminPageSize
	if hasNext {
		msgs = msgs[:adminPageSize]
	}
	s.html(c, http.StatusOK, "admin/messages", "Messages", gin.H{
		"Messages":   msgs,
		"UnreadOnly": unreadOnly,
		"Page":       page,
		"HasNext":    hasNext,
	})
}

func (s *Server) handleAdminMessageRead(c *gin.Context) {
	if err := s.contact.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		s.htmlError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/admin/messages")
}

func (s *Server) handleAdminMessageDelete(c *gin.Context) {
	if err := s.contact.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.htmlError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/admin/messages")
}

// Analytics

func (s *Server) handleAdminAnalytics(c *gin.Context) {
	days := reportDays(c)
	since := s.analytics.Since(days)
	summary, err := s.analytics.Summary(c.Request.Context(), since)
	if err != nil {
		s.htmlError(c, err)
		return
	}
	leads, err := s.analytics.Leads(c.Request.Context(), since, adminPageSize)
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "admin/analytics", "Analytics", gin.H{
		"Summary": summary,
		"Leads":   leads,
		"Days":    days,
	})
}

// reportDays reads the ?days window, clamped to 1..365.
func reportDays(c *gin.Context) int {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days <= 0 {
		return defaultDays
	}
	return min(days, maxReportDays)
}
