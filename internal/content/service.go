// Package content manages portfolio projects and blog posts: validation,
// slugs, markdown rendering and cached public listings.
package content

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/dedup"
	"github.com/lukasito25/portfolio/internal/storage"
	"github.com/lukasito25/portfolio/internal/validate"
)

// Store is the persistence the service needs.
// Implementations: storage.Store (SQLite)
type Store interface {
	SaveProject(ctx context.Context, p *storage.ProjectRecord) error
	GetProject(ctx context.Context, id string) (*storage.ProjectRecord, error)
	GetProjectBySlug(ctx context.Context, slug string) (*storage.ProjectRecord, error)
	ListProjects(ctx context.Context, f storage.ListFilter) ([]*storage.ProjectRecord, error)
	DeleteProject(ctx context.Context, id string) error
	CountProjects(ctx context.Context, publishedOnly bool) (int, error)

	SavePost(ctx context.Context, p *storage.PostRecord) error
	GetPost(ctx context.Context, id string) (*storage.PostRecord, error)
	GetPostBySlug(ctx context.Context, slug string) (*storage.PostRecord, error)
	ListPosts(ctx context.Context, f storage.ListFilter) ([]*storage.PostRecord, error)
	DeletePost(ctx context.Context, id string) error
	CountPosts(ctx context.Context, publishedOnly bool) (int, error)
	PostTags(ctx context.Context) ([]string, error)
}

// ErrNotFound is returned for unknown or (for public reads) unpublished items.
var ErrNotFound = storage.ErrNotFound

// ErrInvalid is matched by validation failures.
var ErrInvalid = validate.ErrInvalid

// ErrSlugTaken is returned when another item already uses the slug.
var ErrSlugTaken = errors.New("slug already in use")

// Service implements project and post operations.
type Service struct {
	store    Store
	renderer *Renderer
	log      *zap.Logger
	now      func() time.Time

	projects *dedup.Group[[]*Project]
	posts    *dedup.Group[[]*Post]
}

// NewService creates a content service. cacheTTL bounds how long public
// listings are served from memory; writes through the service invalidate
// them immediately.
func NewService(store Store, log *zap.Logger, cacheTTL time.Duration) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		renderer: NewRenderer(),
		log:      log,
		now:      time.Now,
		projects: dedup.New[[]*Project](cacheTTL),
		posts:    dedup.New[[]*Post](cacheTTL),
	}
}

// Renderer returns the markdown renderer used for bodies.
func (s *Service) Renderer() *Renderer {
	return s.renderer
}

// ListProjects lists projects. Public listings are deduplicated and cached.
func (s *Service) ListProjects(ctx context.Context, opts ListOptions) ([]*Project, error) {
	load := func(ctx context.Context) ([]*Project, error) {
		recs, err := s.store.ListProjects(ctx, filterFrom(opts))
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		out := make([]*Project, len(recs))
		for i, r := range recs {
			out[i] = projectFromRecord(r)
		}
		return out, nil
	}
	if opts.IncludeDrafts {
		return load(ctx)
	}
	out, _, err := s.projects.Do(ctx, listKey(opts), load)
	return out, err
}

// GetProject returns a project by slug with its rendered body. Drafts are
// hidden unless includeDrafts is set.
func (s *Service) GetProject(ctx context.Context, slug string, includeDrafts bool) (*Project, error) {
	rec, err := s.store.GetProjectBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !rec.Published && !includeDrafts {
		return nil, ErrNotFound
	}
	p := projectFromRecord(rec)
	p.HTML = s.renderer.Render(p.Body)
	return p, nil
}

// GetProjectByID returns a project by ID, drafts included.
func (s *Service) GetProjectByID(ctx context.Context, id string) (*Project, error) {
	rec, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return projectFromRecord(rec), nil
}

// CreateProject validates and stores a new project.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	in, err := s.prepareProject(in)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rec := projectRecord(storage.GenerateID(), in, now, now)
	if err := s.store.SaveProject(ctx, rec); err != nil {
		return nil, mapWriteErr(err)
	}
	s.invalidate()
	s.log.Info("project created", zap.String("id", rec.ID), zap.String("slug", rec.Slug))
	return projectFromRecord(rec), nil
}

// UpdateProject replaces a project's writable fields.
func (s *Service) UpdateProject(ctx context.Context, id string, in ProjectInput) (*Project, error) {
	existing, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err = s.prepareProject(in)
	if err != nil {
		return nil, err
	}
	rec := projectRecord(id, in, existing.CreatedAt, s.now().UTC())
	if err := s.store.SaveProject(ctx, rec); err != nil {
		return nil, mapWriteErr(err)
	}
	s.invalidate()
	s.log.Info("project updated", zap.String("id", id))
	return projectFromRecord(rec), nil
}

// DeleteProject removes a project.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	s.log.Info("project deleted", zap.String("id", id))
	return nil
}

// ListPosts lists posts newest first. Public listings are cached.
func (s *Service) ListPosts(ctx context.Context, opts ListOptions) ([]*Post, error) {
	load := func(ctx context.Context) ([]*Post, error) {
		recs, err := s.store.ListPosts(ctx, filterFrom(opts))
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		out := make([]*Post, len(recs))
		for i, r := range recs {
			out[i] = postFromRecord(r)
		}
		return out, nil
	}
	if opts.IncludeDrafts {
		return load(ctx)
	}
	out, _, err := s.posts.Do(ctx, listKey(opts), load)
	return out, err
}

// GetPost returns a post by slug with its rendered body.
func (s *Service) GetPost(ctx context.Context, slug string, includeDrafts bool) (*Post, error) {
	rec, err := s.store.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !rec.Published && !includeDrafts {
		return nil, ErrNotFound
	}
	p := postFromRecord(rec)
	p.HTML = s.renderer.Render(p.Body)
	return p, nil
}

// GetPostByID returns a post by ID, drafts included.
func (s *Service) GetPostByID(ctx context.Context, id string) (*Post, error) {
	rec, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	return postFromRecord(rec), nil
}

// CreatePost validates and stores a new post. Publishing stamps
// published_at.
func (s *Service) CreatePost(ctx context.Context, in PostInput) (*Post, error) {
	in, err := s.preparePost(in)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rec := postRecord(storage.GenerateID(), in, nil, now, now)
	if err := s.store.SavePost(ctx, rec); err != nil {
		return nil, mapWriteErr(err)
	}
	s.invalidate()
	s.log.Info("post created", zap.String("id", rec.ID), zap.String("slug", rec.Slug))
	return postFromRecord(rec), nil
}

// UpdatePost replaces a post's writable fields. The first publish sets
// published_at; later unpublish/republish keeps the original date.
func (s *Service) UpdatePost(ctx context.Context, id string, in PostInput) (*Post, error) {
	existing, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err = s.preparePost(in)
	if err != nil {
		return nil, err
	}
	rec := postRecord(id, in, existing.PublishedAt, existing.CreatedAt, s.now().UTC())
	if err := s.store.SavePost(ctx, rec); err != nil {
		return nil, mapWriteErr(err)
	}
	s.invalidate()
	s.log.Info("post updated", zap.String("id", id))
	return postFromRecord(rec), nil
}

// DeletePost removes a post.
func (s *Service) DeletePost(ctx context.Context, id string) error {
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	s.log.Info("post deleted", zap.String("id", id))
	return nil
}

// Tags returns every tag used by a published post.
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	return s.store.PostTags(ctx)
}

// Stats counts projects and posts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Projects, err = s.store.CountProjects(ctx, false); err != nil {
		return st, err
	}
	if st.PublishedProjects, err = s.store.CountProjects(ctx, true); err != nil {
		return st, err
	}
	if st.Posts, err = s.store.CountPosts(ctx, false); err != nil {
		return st, err
	}
	if st.PublishedPosts, err = s.store.CountPosts(ctx, true); err != nil {
		return st, err
	}
	return st, nil
}

// Invalidate drops cached public listings. Writes through the service call
// it already; seeding and the edge binary share the database and call it
// after writing directly.
func (s *Service) Invalidate() {
	s.invalidate()
}

func (s *Service) invalidate() {
	s.projects.Purge()
	s.posts.Purge()
}

func (s *Service) prepareProject(in ProjectInput) (ProjectInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Summary = strings.TrimSpace(in.Summary)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = Slugify(in.Title)
	}
	in.Tech = normalizeTags(in.Tech)
	if err := validate.Struct(in); err != nil {
		return in, err
	}
	if in.Slug == "" {
		return in, validate.Field("slug", "could not be derived from the title")
	}
	return in, nil
}

func (s *Service) preparePost(in PostInput) (PostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = Slugify(in.Title)
	}
	in.Tags = normalizeTags(in.Tags)
	if err := validate.Struct(in); err != nil {
		return in, err
	}
	if in.Slug == "" {
		return in, validate.Field("slug", "could not be derived from the title")
	}
	return in, nil
}

func projectRecord(id string, in ProjectInput, created, updated time.Time) *storage.ProjectRecord {
	return &storage.ProjectRecord{
		ID: id, Slug: in.Slug, Title: in.Title, Summary: in.Summary, Body: in.Body, Tech: in.Tech,
		RepoURL: in.RepoURL, LiveURL: in.LiveURL, CoverURL: in.CoverURL, Featured: in.Featured,
		Published: in.Published, SortOrder: in.SortOrder, CreatedAt: created, UpdatedAt: updated,
	}
}

func postRecord(id string, in PostInput, publishedAt *time.Time, created, updated time.Time) *storage.PostRecord {
	if in.Published && publishedAt == nil {
		t := updated
		publishedAt = &t
	}
	return &storage.PostRecord{
		ID: id, Slug: in.Slug, Title: in.Title, Excerpt: in.Excerpt, Body: in.Body, Tags: in.Tags,
		Published: in.Published, PublishedAt: publishedAt, CreatedAt: created, UpdatedAt: updated,
	}
}

func filterFrom(opts ListOptions) storage.ListFilter {
	return storage.ListFilter{
		PublishedOnly: !opts.IncludeDrafts,
		FeaturedOnly:  opts.FeaturedOnly,
		Tag:           opts.Tag,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	}
}

func listKey(opts ListOptions) string {
	return dedup.Key(strconv.FormatBool(opts.FeaturedOnly), strings.ToLower(opts.Tag),
		strconv.Itoa(opts.Limit), strconv.Itoa(opts.Offset))
}

func mapWriteErr(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrSlugTaken, err)
	}
	return err
}
