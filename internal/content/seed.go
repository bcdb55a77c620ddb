package content

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML document accepted by `portfolio seed`.
type Seed struct {
	Projects []ProjectInput `yaml:"projects"`
	Posts    []PostInput    `yaml:"posts"`
}

// SeedResult counts what ApplySeed changed.
type SeedResult struct {
	ProjectsCreated int
	ProjectsUpdated int
	PostsCreated    int
	PostsUpdated    int
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed upserts every item by slug (derived from the title when the
// entry has none). The first failing entry aborts the run.
func (s *Service) ApplySeed(ctx context.Context, seed *Seed) (SeedResult, error) {
	var res SeedResult
	for i, in := range seed.Projects {
		slug := in.Slug
		if slug == "" {
			slug = Slugify(in.Title)
		}
		existing, err := s.store.GetProjectBySlug(ctx, slug)
		switch {
		case err == nil:
			if _, err := s.UpdateProject(ctx, existing.ID, in); err != nil {
				return res, fmt.Errorf("project %d (%s): %w", i, slug, err)
			}
			res.ProjectsUpdated++
		case errors.Is(err, ErrNotFound):
			if _, err := s.CreateProject(ctx, in); err != nil {
				return res, fmt.Errorf("project %d (%s): %w", i, slug, err)
			}
			res.ProjectsCreated++
		default:
			return res, err
		}
	}
	for i, in := range seed.Posts {
		slug := in.Slug
		if slug == "" {
			slug = Slugify(in.Title)
		}
		existing, err := s.store.GetPostBySlug(ctx, slug)
		switch {
		case err == nil:
			if _, err := s.UpdatePost(ctx, existing.ID, in); err != nil {
				return res, fmt.Errorf("post %d (%s): %w", i, slug, err)
			}
			res.PostsUpdated++
		case errors.Is(err, ErrNotFound):
			if _, err := s.CreatePost(ctx, in); err != nil {
				return res, fmt.Errorf("post %d (%s): %w", i, slug, err)
			}
			res.PostsCreated++
		default:
			return res, err
		}
	}
	return res, nil
}
