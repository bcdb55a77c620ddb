package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lukasito25/portfolio/internal/dedup"
)

// RepoStats are the public GitHub numbers shown on a project page.
type RepoStats struct {
	FullName   string    `json:"full_name"`
	Stars      int       `json:"stargazers_count"`
	Forks      int       `json:"forks_count"`
	OpenIssues int       `json:"open_issues_count"`
	Language   string    `json:"language"`
	PushedAt   time.Time `json:"pushed_at"`
}

// ErrNoRepo is returned when a project has no GitHub repository URL.
var ErrNoRepo = errors.New("project has no github repository")

// RepoStatsClient fetches repository stats. Concurrent lookups of the same
// repository share one request and answers are cached.
type RepoStatsClient struct {
	fetcher *dedup.Fetcher
	apiBase string
}

// NewRepoStatsClient creates a client caching answers for ttl.
func NewRepoStatsClient(client *http.Client, ttl time.Duration) *RepoStatsClient {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &RepoStatsClient{
		fetcher: dedup.NewFetcher(client, ttl),
		apiBase: "https://api.github.com",
	}
}

// Stats returns the stats for the repository behind repoURL.
func (c *RepoStatsClient) Stats(ctx context.Context, repoURL string) (*RepoStats, error) {
	owner, name, ok := GitHubRepo(repoURL)
	if !ok {
		return nil, ErrNoRepo
	}
	resp, _, err := c.fetcher.Get(ctx, c.apiBase+"/repos/"+owner+"/"+name)
	if err != nil {
		var se *dedup.StatusError
		if errors.As(err, &se) && se.Response.StatusCode == http.StatusNotFound {
			return nil, ErrNoRepo
		}
		return nil, fmt.Errorf("failed to fetch repo stats: %w", err)
	}
	var stats RepoStats
	if err := json.Unmarshal(resp.Body, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse repo stats: %w", err)
	}
	return &stats, nil
}

// GitHubRepo extracts owner and repository name from a github.com URL.
func GitHubRepo(repoURL string) (owner, name string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil || !strings.EqualFold(strings.TrimPrefix(u.Host, "www."), "github.com") {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
