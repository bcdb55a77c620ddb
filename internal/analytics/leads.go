package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Grade buckets a lead score.
type Grade string

const (
	GradeHot  Grade = "hot"
	GradeWarm Grade = "warm"
	GradeCold Grade = "cold"
)

const (
	hotThreshold  = 70
	warmThreshold = 35
	maxScore      = 100
)

// Activity is what one visitor did inside a reporting window.
type Activity struct {
	VisitorID      string
	PageViews      int
	ProjectPages   int // distinct /work/<slug> pages
	DeepBlogReads  int // blog views scrolled to 75% or more
	AvgScrollDepth float64
	DistinctDays   int
	FirstSeen      time.Time
	LastSeen       time.Time
	Events         map[string]int
}

// Lead is a scored visitor.
type Lead struct {
	VisitorID string    `json:"visitor_id"`
	Score     int       `json:"score"`
	Grade     Grade     `json:"grade"`
	Reasons   []string  `json:"reasons"`
	PageViews int       `json:"page_views"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ScoreLead applies the lead rules to a visitor's activity.
func ScoreLead(a Activity) Lead {
	lead := Lead{
		VisitorID: a.VisitorID,
		PageViews: a.PageViews,
		FirstSeen: a.FirstSeen,
		LastSeen:  a.LastSeen,
		Reasons:   []string{},
	}
	add := func(points int, reason string) {
		if points <= 0 {
			return
		}
		lead.Score += points
		lead.Reasons = append(lead.Reasons, fmt.Sprintf("+%d %s", points, reason))
	}

	add(min(a.PageViews, 10), "page views")
	add(min(5*a.ProjectPages, 25), "project pages")
	if a.DeepBlogReads > 0 {
		add(10, "read a blog post")
	}
	add(min(5*a.Events[KindCTA], 15), "call-to-action clicks")
	if a.Events[KindChatOpen] > 0 {
		add(10, "opened the chat")
	}
	add(min(5*a.Events[KindChatMessage], 20), "chat messages")
	if a.Events[KindContactOpen] > 0 {
		add(15, "opened the contact form")
	}
	if a.Events[KindContactSubmit] > 0 {
		add(40, "sent a message")
	}
	if a.DistinctDays >= 2 {
		add(10, "returning visitor")
	}
	if a.AvgScrollDepth >= 60 {
		add(5, "engaged reader")
	}

	lead.Score = min(lead.Score, maxScore)
	lead.Grade = GradeFor(lead.Score)
	return lead
}

// GradeFor maps a score to its grade.
func GradeFor(score int) Grade {
	switch {
	case score >= hotThreshold:
		return GradeHot
	case score >= warmThreshold:
		return GradeWarm
	default:
		return GradeCold
	}
}

// Leads scores every visitor seen since the given time and returns those
// with a positive score, best first. limit <= 0 returns all.
func (t *Tracker) Leads(ctx context.Context, since time.Time, limit int) ([]Lead, error) {
	acts, err := t.store.VisitorActivities(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load visitor activity: %w", err)
	}

	leads := make([]Lead, 0, len(acts))
	for _, a := range acts {
		lead := ScoreLead(Activity{
			VisitorID:      a.VisitorID,
			PageViews:      a.PageViews,
			ProjectPages:   a.ProjectPages,
			DeepBlogReads:  a.DeepBlogReads,
			AvgScrollDepth: a.AvgScrollDepth,
			DistinctDays:   a.DistinctDays,
			FirstSeen:      a.FirstSeen,
			LastSeen:       a.LastSeen,
			Events:         a.Events,
		})
		if lead.Score > 0 {
			leads = append(leads, lead)
		}
	}

	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Score != leads[j].Score {
			return leads[i].Score > leads[j].Score
		}
		return leads[i].LastSeen.After(leads[j].LastSeen)
	})
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}
