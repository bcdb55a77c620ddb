package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/lukasito25/portfolio/internal/auth"
)

//go:embed templates
var templatesFS embed.FS

//go:embed static
var staticFiles embed.FS

// views holds one template set per page, each a clone of its layout with
// the page's blocks parsed on top.
type views struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
	"join": strings.Join,
	"year": func() int { return time.Now().Year() },
	"pct": func(f float64) string {
		return fmt.Sprintf("%.0f%%", f)
	},
	"dur": func(d time.Duration) string {
		return d.Round(time.Second).String()
	},
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
}

func loadViews() (*views, error) {
	v := &views{pages: make(map[string]*template.Template)}
	if err := v.load("templates/layout.html", "templates/pages/*.html", ""); err != nil {
		return nil, err
	}
	if err := v.load("templates/admin/layout.html", "templates/admin/pages/*.html", "admin/"); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *views) load(layout, pattern, prefix string) error {
	base, err := template.New(path.Base(layout)).Funcs(funcs).ParseFS(templatesFS, layout)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", layout, err)
	}
	files, err := fs.Glob(templatesFS, pattern)
	if err != nil {
		return err
	}
	for _, f := range files {
		t, err := template.Must(base.Clone()).ParseFS(templatesFS, f)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", f, err)
		}
		name := prefix + strings.TrimSuffix(path.Base(f), ".html")
		v.pages[name] = t
	}
	return nil
}

func staticFS() http.FileSystem {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// html renders a page inside its layout. data is merged over the common
// view fields.
func (s *Server) html(c *gin.Context, status int, page, title string, data gin.H) {
	t, ok := s.views.pages[page]
	if !ok {
		s.log.Error("unknown template: " + page)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	view := gin.H{
		"Site":      s.cfg.Site,
		"Title":     title,
		"Path":      c.Request.URL.Path,
		"Analytics": s.analytics.Enabled(),
		"Chat":      s.chat.Available(),
	}
	if u := auth.CurrentUser(c); u != nil {
		view["User"] = u
		view["CSRF"] = s.auth.CSRFFor(c)
	}
	for k, val := range data {
		view[k] = val
	}
	c.Render(status, render.HTML{Template: t, Name: "layout", Data: view})
}
