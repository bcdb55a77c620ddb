package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProjectRecord represents a portfolio project row
type ProjectRecord struct {
	ID        string
	Slug      string
	Title     string
	Summary   string
	Body      string
	Tech      []string
	RepoURL   string
	LiveURL   string
	CoverURL  string
	Featured  bool
	Published bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostRecord represents a blog post row
type PostRecord struct {
	ID          string
	Slug        string
	Title       string
	Excerpt     string
	Body        string
	Tags        []string
	Published   bool
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListFilter narrows project and post listings.
type ListFilter struct {
	PublishedOnly bool
	FeaturedOnly  bool // projects only
	Tag           string
	Limit         int
	Offset        int
}

const projectColumns = `id, slug, title, summary, body, tech, repo_url, live_url, cover_url,
	featured, published, sort_order, created_at, updated_at`

const postColumns = `id, slug, title, excerpt, body, tags, published, published_at, created_at, updated_at`

// SaveProject inserts the project or replaces the row with the same id.
func (s *Store) SaveProject(ctx context.Context, p *ProjectRecord) error {
	tech, err := json.Marshal(nonNil(p.Tech))
	if err != nil {
		return fmt.Errorf("failed to encode tech: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug, title = excluded.title, summary = excluded.summary,
			body = excluded.body, tech = excluded.tech, repo_url = excluded.repo_url,
			live_url = excluded.live_url, cover_url = excluded.cover_url,
			featured = excluded.featured, published = excluded.published,
			sort_order = excluded.sort_order, updated_at = excluded.updated_at
	`, p.ID, p.Slug, p.Title, p.Summary, p.Body, string(tech), p.RepoURL, p.LiveURL, p.CoverURL,
		boolInt(p.Featured), boolInt(p.Published), p.SortOrder, toMillis(p.CreatedAt), toMillis(p.UpdatedAt))
	return wrapWriteErr(err)
}

// GetProject retrieves a project by ID
func (s *Store) GetProject(ctx context.Context, id string) (*ProjectRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// GetProjectBySlug retrieves a project by slug
func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*ProjectRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = ?`, slug)
	return scanProject(row)
}

// ListProjects returns projects ordered by sort order, then newest first.
func (s *Store) ListProjects(ctx context.Context, f ListFilter) ([]*ProjectRecord, error) {
	var where []string
	var args []any
	if f.PublishedOnly {
		where = append(where, "published = 1")
	}
	if f.FeaturedOnly {
		where = append(where, "featured = 1")
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(projects.tech) WHERE lower(json_each.value) = lower(?))")
		args = append(args, f.Tag)
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + whereClause(where) +
		` ORDER BY sort_order ASC, created_at DESC` + limitClause(f, &args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*ProjectRecord
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project by ID
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "projects", id)
}

// CountProjects returns the number of projects, optionally published only.
func (s *Store) CountProjects(ctx context.Context, publishedOnly bool) (int, error) {
	return s.count(ctx, "projects", publishedOnly)
}

// SavePost inserts the post or replaces the row with the same id.
func (s *Store) SavePost(ctx context.Context, p *PostRecord) error {
	tags, err := json.Marshal(nonNil(p.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug, title = excluded.title, excerpt = excluded.excerpt,
			body = excluded.body, tags = excluded.tags, published = excluded.published,
			published_at = excluded.published_at, updated_at = excluded.updated_at
	`, p.ID, p.Slug, p.Title, p.Excerpt, p.Body, string(tags), boolInt(p.Published),
		nullMillis(p.PublishedAt), toMillis(p.CreatedAt), toMillis(p.UpdatedAt))
	return wrapWriteErr(err)
}

// GetPost retrieves a post by ID
func (s *Store) GetPost(ctx context.Context, id string) (*PostRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return scanPost(row)
}

// GetPostBySlug retrieves a post by slug
func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*PostRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	return scanPost(row)
}

// ListPosts returns posts newest first (by publish date, then creation).
func (s *Store) ListPosts(ctx context.Context, f ListFilter) ([]*PostRecord, error) {
	var where []string
	var args []any
	if f.PublishedOnly {
		where = append(where, "published = 1")
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(posts.tags) WHERE lower(json_each.value) = lower(?))")
		args = append(args, f.Tag)
	}

	query := `SELECT ` + postColumns + ` FROM posts` + whereClause(where) +
		` ORDER BY COALESCE(published_at, created_at) DESC` + limitClause(f, &args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*PostRecord
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// DeletePost removes a post by ID
func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "posts", id)
}

// CountPosts returns the number of posts, optionally published only.
func (s *Store) CountPosts(ctx context.Context, publishedOnly bool) (int, error) {
	return s.count(ctx, "posts", publishedOnly)
}

// PostTags returns every distinct tag on published posts, sorted.
func (s *Store) PostTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT lower(json_each.value) AS tag
		FROM posts, json_each(posts.tags)
		WHERE posts.published = 1
		ORDER BY tag
	`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*ProjectRecord, error) {
	var p ProjectRecord
	var tech string
	var featured, published int
	var created, updated int64

	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Summary, &p.Body, &tech, &p.RepoURL, &p.LiveURL,
		&p.CoverURL, &featured, &published, &p.SortOrder, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(tech), &p.Tech); err != nil {
		return nil, fmt.Errorf("decode tech for project %s: %w", p.ID, err)
	}
	p.Featured = featured == 1
	p.Published = published == 1
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func scanPost(row scanner) (*PostRecord, error) {
	var p PostRecord
	var tags string
	var published int
	var publishedAt sql.NullInt64
	var created, updated int64

	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Body, &tags, &published, &publishedAt, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for post %s: %w", p.ID, err)
	}
	p.Published = published == 1
	p.PublishedAt = fromNullMillis(publishedAt)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

// table is always a package constant, never caller input.
func (s *Store) deleteByID(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) count(ctx context.Context, table string, publishedOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM ` + table
	if publishedOnly {
		query += ` WHERE published = 1`
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func limitClause(f ListFilter, args *[]any) string {
	if f.Limit <= 0 {
		return ""
	}
	*args = append(*args, f.Limit, max(f.Offset, 0))
	return " LIMIT ? OFFSET ?"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
