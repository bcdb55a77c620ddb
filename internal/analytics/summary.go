package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/lukasito25/portfolio/internal/storage"
)

const topN = 10

// Count is a labelled counter row.
type Count struct {
	Key      string `json:"key"`
	Count    int    `json:"count"`
	Visitors int    `json:"visitors"`
}

// DayCount is the number of views on a UTC day (YYYY-MM-DD).
type DayCount struct {
	Day   string `json:"day"`
	Views int    `json:"views"`
}

// Summary is the traffic report for a time window.
type Summary struct {
	Since          time.Time     `json:"since"`
	Views          int           `json:"views"`
	UniqueVisitors int           `json:"unique_visitors"`
	UniqueSessions int           `json:"unique_sessions"`
	AvgScrollDepth float64       `json:"avg_scroll_depth"`
	AvgTimeOnPage  time.Duration `json:"avg_time_on_page_ns"`
	TopPages       []Count       `json:"top_pages"`
	TopReferrers   []Count       `json:"top_referrers"`
	ViewsPerDay    []DayCount    `json:"views_per_day"`
	Interactions   []Count       `json:"interactions"`
}

// Since returns the start of a window covering the last n days.
func (t *Tracker) Since(days int) time.Time {
	if days <= 0 {
		days = 30
	}
	return t.now().UTC().AddDate(0, 0, -days)
}

// Summary builds the traffic report since the given time.
func (t *Tracker) Summary(ctx context.Context, since time.Time) (*Summary, error) {
	totals, err := t.store.Totals(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load totals: %w", err)
	}
	pages, err := t.store.TopPages(ctx, since, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to load top pages: %w", err)
	}
	refs, err := t.store.TopReferrers(ctx, since, t.opts.SiteHost, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to load referrers: %w", err)
	}
	days, err := t.store.ViewsPerDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily views: %w", err)
	}
	events, err := t.store.EventCounts(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	s := &Summary{
		Since:          since,
		Views:          totals.Views,
		UniqueVisitors: totals.UniqueVisitors,
		UniqueSessions: totals.UniqueSessions,
		AvgScrollDepth: totals.AvgScrollDepth,
		AvgTimeOnPage:  time.Duration(totals.AvgDurationMs * float64(time.Millisecond)),
		TopPages:       counts(pages),
		TopReferrers:   counts(refs),
		Interactions:   counts(events),
		ViewsPerDay:    make([]DayCount, len(days)),
	}
	for i, d := range days {
		s.ViewsPerDay[i] = DayCount{Day: d.Day, Views: d.Count}
	}
	return s, nil
}

func counts(in []storage.PathCount) []Count {
	out := make([]Count, len(in))
	for i, pc := range in {
		out[i] = Count{Key: pc.Key, Count: pc.Count, Visitors: pc.Visitors}
	}
	return out
}
