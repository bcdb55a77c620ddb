package web

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/contact"
	"github.com/lukasito25/portfolio/internal/content"
)

// techCount is one technology and how many published projects use it.
type techCount struct {
	Name     string
	Projects int
}

func (s *Server) handleHome(c *gin.Context) {
	ctx := c.Request.Context()
	featured, err := s.content.ListProjects(ctx, content.ListOptions{FeaturedOnly: true, Limit: 6})
	if err != nil {
		s.htmlError(c, err)
		return
	}
	posts, err := s.content.ListPosts(ctx, content.ListOptions{Limit: 3})
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "home", "", gin.H{"Projects": featured, "Posts": posts})
}

func (s *Server) handleAbout(c *gin.Context) {
	s.html(c, http.StatusOK, "about", "About", nil)
}

func (s *Server) handleSkills(c *gin.Context) {
	projects, err := s.content.ListProjects(c.Request.Context(), content.ListOptions{})
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "skills", "Skills", gin.H{"Tech": techUsage(projects)})
}

func (s *Server) handleWork(c *gin.Context) {
	tag := c.Query("tech")
	projects, err := s.content.ListProjects(c.Request.Context(), content.ListOptions{Tag: tag})
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "work", "Work", gin.H{"Projects": projects, "Tag": tag})
}

func (s *Server) handleProject(c *gin.Context) {
	p, err := s.content.GetProject(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "project", p.Title, gin.H{
		"Project": p,
		"Repo":    s.projectRepoStats(c.Request.Context(), p),
	})
}

// projectRepoStats fetches repository stats for the project page. Failures
// only hide the stats block.
func (s *Server) projectRepoStats(ctx context.Context, p *content.Project) *content.RepoStats {
	if s.repoStats == nil || p.RepoURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, repoStatsWait)
	defer cancel()
	stats, err := s.repoStats.Stats(ctx, p.RepoURL)
	if err != nil {
		if !errors.Is(err, content.ErrNoRepo) {
			s.log.Warn("repo stats unavailable", zap.String("repo", p.RepoURL), zap.Error(err))
		}
		return nil
	}
	return stats
}

func (s *Server) handleBlog(c *gin.Context) {
	tag := c.Query("tag")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	page = max(page, 1)

	posts, err := s.content.ListPosts(c.Request.Context(), content.ListOptions{
		Tag:    tag,
		Limit:  blogPageSize + 1,
		Offset: (page - 1) * blogPageSize,
	})
	if err != nil {
		s.htmlError(c, err)
		return
	}
	hasNext := len(posts) > blogPageSize
	if hasNext {
		posts = posts[:blogPageSize]
	}
	tags, err := s.content.Tags(c.Request.Context())
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "blog", "Blog", gin.H{
		"Posts":   posts,
		"Tags":    tags,
		"Tag":     tag,
		"Page":    page,
		"HasNext": hasNext,
	})
}

func (s *Server) handlePost(c *gin.Context) {
	p, err := s.content.GetPost(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		s.htmlError(c, err)
		return
	}
	s.html(c, http.StatusOK, "post", p.Title, gin.H{"Post": p})
}

func (s *Server) handleContactForm(c *gin.Context) {
	s.html(c, http.StatusOK, "contact", "Contact", gin.H{
		"Sent":  c.Query("sent") == "1",
		"Input": contact.Submission{},
	})
}

func (s *Server) handleContactSubmit(c *gin.Context) {
	var sub contact.Submission
	if err := c.ShouldBind(&sub); err != nil {
		s.html(c, http.StatusBadRequest, "contact", "Contact", gin.H{"Input": sub, "Error": "Please check the form and try again."})
		return
	}

	if ok, _ := s.contactLimit.Reserve(c.ClientIP()); !ok {
		s.metrics.ContactSubmissions.WithLabelValues("limited").Inc()
		s.html(c, http.StatusTooManyRequests, "contact", "Contact", gin.H{
			"Input": sub,
			"Error": "You have sent several messages already. Please try again later.",
		})
		return
	}

	msg, err := s.contact.Submit(c.Request.Context(), sub, contact.Meta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	if err != nil {
		if fields := fieldErrors(err); fields != nil {
			s.metrics.ContactSubmissions.WithLabelValues("invalid").Inc()
			s.html(c, http.StatusBadRequest, "contact", "Contact", gin.H{"Input": sub, "Fields": fields})
			return
		}
		s.metrics.ContactSubmissions.WithLabelValues("error").Inc()
		s.htmlError(c, err)
		return
	}
	s.metrics.ContactSubmissions.WithLabelValues(submitResult(msg)).Inc()
	c.Redirect(http.StatusSeeOther, "/contact?sent=1")
}

// submitResult labels a successful Submit: a nil message is a honeypot hit.
func submitResult(msg *contact.Message) string {
	if msg == nil {
		return "spam"
	}
	return "ok"
}

// techUsage counts technologies across projects, most used first.
func techUsage(projects []*content.Project) []techCount {
	counts := make(map[string]int)
	for _, p := range projects {
		for _, t := range p.Tech {
			counts[t]++
		}
	}
	out := make([]techCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, techCount{Name: name, Projects: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Projects != out[j].Projects {
			return out[i].Projects > out[j].Projects
		}
		return out[i].Name < out[j].Name
	})
	return out
}
