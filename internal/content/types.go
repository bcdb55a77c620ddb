package content

import (
	"html/template"
	"strings"
	"time"

	"github.com/lukasito25/portfolio/internal/storage"
)

// Project is a portfolio work item
type Project struct {
	ID        string        `json:"id"`
	Slug      string        `json:"slug"`
	Title     string        `json:"title"`
	Summary   string        `json:"summary"`
	Body      string        `json:"body"`
	HTML      template.HTML `json:"html,omitempty"`
	Tech      []string      `json:"tech"`
	RepoURL   string        `json:"repo_url,omitempty"`
	LiveURL   string        `json:"live_url,omitempty"`
	CoverURL  string        `json:"cover_url,omitempty"`
	Featured  bool          `json:"featured"`
	Published bool          `json:"published"`
	SortOrder int           `json:"sort_order"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Post is a blog article
type Post struct {
	ID          string        `json:"id"`
	Slug        string        `json:"slug"`
	Title       string        `json:"title"`
	Excerpt     string        `json:"excerpt"`
	Body        string        `json:"body"`
	HTML        template.HTML `json:"html,omitempty"`
	Tags        []string      `json:"tags"`
	Published   bool          `json:"published"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	ReadingTime int           `json:"reading_minutes"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProjectInput is the writable part of a project, shared by the admin
// forms and the JSON APIs.
type ProjectInput struct {
	Slug      string   `json:"slug" form:"slug" yaml:"slug" validate:"omitempty,max=80,slug"`
	Title     string   `json:"title" form:"title" yaml:"title" validate:"required,max=200"`
	Summary   string   `json:"summary" form:"summary" yaml:"summary" validate:"max=500"`
	Body      string   `json:"body" form:"body" yaml:"body" validate:"max=1048576"`
	Tech      []string `json:"tech" form:"tech" yaml:"tech" validate:"max=30,dive,max=40"`
	RepoURL   string   `json:"repo_url" form:"repo_url" yaml:"repo_url" validate:"omitempty,http_url,max=500"`
	LiveURL   string   `json:"live_url" form:"live_url" yaml:"live_url" validate:"omitempty,http_url,max=500"`
	CoverURL  string   `json:"cover_url" form:"cover_url" yaml:"cover_url" validate:"omitempty,http_url,max=500"`
	Featured  bool     `json:"featured" form:"featured" yaml:"featured"`
	Published bool     `json:"published" form:"published" yaml:"published"`
	SortOrder int      `json:"sort_order" form:"sort_order" yaml:"sort_order" validate:"min=0,max=10000"`
}

// PostInput is the writable part of a post.
type PostInput struct {
	Slug      string   `json:"slug" form:"slug" yaml:"slug" validate:"omitempty,max=80,slug"`
	Title     string   `json:"title" form:"title" yaml:"title" validate:"required,max=200"`
	Excerpt   string   `json:"excerpt" form:"excerpt" yaml:"excerpt" validate:"max=500"`
	Body      string   `json:"body" form:"body" yaml:"body" validate:"max=1048576"`
	Tags      []string `json:"tags" form:"tags" yaml:"tags" validate:"max=20,dive,max=40"`
	Published bool     `json:"published" form:"published" yaml:"published"`
}

// ListOptions narrows listings. Public callers leave IncludeDrafts false.
type ListOptions struct {
	IncludeDrafts bool
	FeaturedOnly  bool
	Tag           string
	Limit         int
	Offset        int
}

// Stats summarises content counts for the admin dashboard.
type Stats struct {
	Projects          int `json:"projects"`
	PublishedProjects int `json:"published_projects"`
	Posts             int `json:"posts"`
	PublishedPosts    int `json:"published_posts"`
}

// ProjectInputFrom copies a project's writable fields, for edit forms.
func ProjectInputFrom(p *Project) ProjectInput {
	return ProjectInput{
		Slug: p.Slug, Title: p.Title, Summary: p.Summary, Body: p.Body, Tech: p.Tech,
		RepoURL: p.RepoURL, LiveURL: p.LiveURL, CoverURL: p.CoverURL,
		Featured: p.Featured, Published: p.Published, SortOrder: p.SortOrder,
	}
}

// PostInputFrom copies a post's writable fields, for edit forms.
func PostInputFrom(p *Post) PostInput {
	return PostInput{Slug: p.Slug, Title: p.Title, Excerpt: p.Excerpt, Body: p.Body, Tags: p.Tags, Published: p.Published}
}

func projectFromRecord(r *storage.ProjectRecord) *Project {
	return &Project{
		ID: r.ID, Slug: r.Slug, Title: r.Title, Summary: r.Summary, Body: r.Body, Tech: r.Tech,
		RepoURL: r.RepoURL, LiveURL: r.LiveURL, CoverURL: r.CoverURL, Featured: r.Featured,
		Published: r.Published, SortOrder: r.SortOrder, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func postFromRecord(r *storage.PostRecord) *Post {
	return &Post{
		ID: r.ID, Slug: r.Slug, Title: r.Title, Excerpt: r.Excerpt, Body: r.Body, Tags: r.Tags,
		Published: r.Published, PublishedAt: r.PublishedAt, ReadingTime: ReadingTime(r.Body),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// normalizeTags splits comma-separated entries (HTML forms send one text
// field), trims, drops empties and case-insensitive duplicates.
func normalizeTags(in []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, raw := range in {
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t == "" || seen[strings.ToLower(t)] {
				continue
			}
			seen[strings.ToLower(t)] = true
			out = append(out, t)
		}
	}
	return out
}
