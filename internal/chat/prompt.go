package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/lukasito25/portfolio/internal/content"
)

const (
	promptProjects = 12
	promptPosts    = 8
)

// Profile is the owner information the assistant speaks for.
type Profile struct {
	Owner    string
	Title    string
	Tagline  string
	Email    string
	Location string
	About    []string
	Skills   []SkillGroup
}

// SkillGroup is a named list of skills.
type SkillGroup struct {
	Name  string
	Items []string
}

func (s *Service) buildPrompt(ctx context.Context) (string, error) {
	projects, err := s.catalog.ListProjects(ctx, content.ListOptions{Limit: promptProjects})
	if err != nil {
		return "", err
	}
	posts, err := s.catalog.ListPosts(ctx, content.ListOptions{Limit: promptPosts})
	if err != nil {
		return "", err
	}
	return SystemPrompt(s.profile, projects, posts), nil
}

// SystemPrompt renders the instructions and context for the assistant.
func SystemPrompt(p Profile, projects []*content.Project, posts []*content.Post) string {
	var b strings.Builder
	owner := p.Owner
	if owner == "" {
		owner = "the site owner"
	}

	fmt.Fprintf(&b, "You are the assistant on %s's portfolio website. ", owner)
	b.WriteString("Answer visitors' questions about their work, skills and writing in a friendly, concise way ")
	b.WriteString("(at most a few short paragraphs). Only use the facts below; if something is not covered, ")
	b.WriteString("say you don't know and suggest the contact form. Never invent projects, employers or numbers.\n")

	b.WriteString("\n## Profile\n")
	if p.Tagline != "" {
		fmt.Fprintf(&b, "%s: %s\n", owner, p.Tagline)
	}
	if p.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", p.Location)
	}
	if p.Email != "" {
		fmt.Fprintf(&b, "Contact email: %s\n", p.Email)
	}
	for _, para := range p.About {
		b.WriteString(para)
		b.WriteString("\n")
	}

	if len(p.Skills) > 0 {
		b.WriteString("\n## Skills\n")
		for _, g := range p.Skills {
			fmt.Fprintf(&b, "- %s: %s\n", g.Name, strings.Join(g.Items, ", "))
		}
	}

	if len(projects) > 0 {
		b.WriteString("\n## Projects\n")
		for _, pr := range projects {
			fmt.Fprintf(&b, "- %s (/work/%s)", pr.Title, pr.Slug)
			if len(pr.Tech) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(pr.Tech, ", "))
			}
			if pr.Summary != "" {
				fmt.Fprintf(&b, ": %s", pr.Summary)
			}
			b.WriteString("\n")
		}
	}

	if len(posts) > 0 {
		b.WriteString("\n## Recent blog posts\n")
		for _, po := range posts {
			fmt.Fprintf(&b, "- %s (/blog/%s)", po.Title, po.Slug)
			if po.Excerpt != "" {
				fmt.Fprintf(&b, ": %s", po.Excerpt)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
