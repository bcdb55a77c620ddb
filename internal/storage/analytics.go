package storage

import (
	"context"
	"fmt"
	"time"
)

// PageViewRecord represents one tracked page load
type PageViewRecord struct {
	ID          string
	VisitorID   string
	SessionID   string
	Path        string
	Referrer    string // referring host only
	UserAgent   string
	ScrollDepth int
	DurationMs  int64
	ViewedAt    time.Time
}

// EventRecord represents one tracked interaction
type EventRecord struct {
	ID         string
	VisitorID  string
	SessionID  string
	Path       string
	Kind       string
	Target     string
	OccurredAt time.Time
}

// TrafficTotals holds headline numbers for a time window.
type TrafficTotals struct {
	Views          int
	UniqueVisitors int
	UniqueSessions int
	AvgScrollDepth float64
	AvgDurationMs  float64
}

// PathCount is a path (or referrer, or kind) with its count.
type PathCount struct {
	Key      string
	Count    int
	Visitors int
}

// DayCount is a calendar day (UTC, YYYY-MM-DD) with its view count.
type DayCount struct {
	Day   string
	Count int
}

// VisitorActivity aggregates what one visitor did inside a time window.
type VisitorActivity struct {
	VisitorID      string
	PageViews      int
	ProjectPages   int
	DeepBlogReads  int
	AvgScrollDepth float64
	DistinctDays   int
	FirstSeen      time.Time
	LastSeen       time.Time
	Events         map[string]int
}

// InsertPageView stores a page view.
func (s *Store) InsertPageView(ctx context.Context, v *PageViewRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_views (id, visitor_id, session_id, path, referrer, user_agent, scroll_depth, duration_ms, viewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.VisitorID, v.SessionID, v.Path, v.Referrer, v.UserAgent, v.ScrollDepth, v.DurationMs, toMillis(v.ViewedAt))
	return wrapWriteErr(err)
}

// UpdateEngagement raises the recorded scroll depth and duration of a page
// view; values never decrease.
func (s *Store) UpdateEngagement(ctx context.Context, id string, scrollDepth int, durationMs int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE page_views
		SET scroll_depth = MAX(scroll_depth, ?), duration_ms = MAX(duration_ms, ?)
		WHERE id = ?
	`, scrollDepth, durationMs, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPageView retrieves a page view by ID
func (s *Store) GetPageView(ctx context.Context, id string) (*PageViewRecord, error) {
	var v PageViewRecord
	var viewed int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, visitor_id, session_id, path, referrer, user_agent, scroll_depth, duration_ms, viewed_at
		FROM page_views WHERE id = ?
	`, id).Scan(&v.ID, &v.VisitorID, &v.SessionID, &v.Path, &v.Referrer, &v.UserAgent, &v.ScrollDepth, &v.DurationMs, &viewed)
	if err != nil {
		return nil, mapNoRows(err)
	}
	v.ViewedAt = fromMillis(viewed)
	return &v, nil
}

// InsertEvent stores an interaction event.
func (s *Store) InsertEvent(ctx context.Context, e *EventRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_events (id, visitor_id, session_id, path, kind, target, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.VisitorID, e.SessionID, e.Path, e.Kind, e.Target, toMillis(e.OccurredAt))
	return wrapWriteErr(err)
}

// Totals returns headline traffic numbers since the given time.
func (s *Store) Totals(ctx context.Context, since time.Time) (TrafficTotals, error) {
	var t TrafficTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT visitor_id),
		       COUNT(DISTINCT NULLIF(session_id, '')),
		       COALESCE(AVG(NULLIF(scroll_depth, 0)), 0),
		       COALESCE(AVG(NULLIF(duration_ms, 0)), 0)
		FROM page_views WHERE viewed_at >= ?
	`, toMillis(since)).Scan(&t.Views, &t.UniqueVisitors, &t.UniqueSessions, &t.AvgScrollDepth, &t.AvgDurationMs)
	return t, err
}

// TopPages returns the most viewed paths since the given time.
func (s *Store) TopPages(ctx context.Context, since time.Time, limit int) ([]PathCount, error) {
	return s.pathCounts(ctx, `
		SELECT path, COUNT(*) AS n, COUNT(DISTINCT visitor_id)
		FROM page_views WHERE viewed_at >= ?
		GROUP BY path ORDER BY n DESC, path ASC LIMIT ?
	`, toMillis(since), limit)
}

// TopReferrers returns the most common referring hosts since the given
// time, ignoring empty referrers and the excluded host.
func (s *Store) TopReferrers(ctx context.Context, since time.Time, excludeHost string, limit int) ([]PathCount, error) {
	return s.pathCounts(ctx, `
		SELECT referrer, COUNT(*) AS n, COUNT(DISTINCT visitor_id)
		FROM page_views WHERE viewed_at >= ? AND referrer != '' AND referrer != ?
		GROUP BY referrer ORDER BY n DESC, referrer ASC LIMIT ?
	`, toMillis(since), excludeHost, limit)
}

// EventCounts returns interaction counts grouped by kind.
func (s *Store) EventCounts(ctx context.Context, since time.Time) ([]PathCount, error) {
	return s.pathCounts(ctx, `
		SELECT kind, COUNT(*) AS n, COUNT(DISTINCT visitor_id)
		FROM analytics_events WHERE occurred_at >= ?
		GROUP BY kind ORDER BY n DESC, kind ASC LIMIT ?
	`, toMillis(since), -1)
}

// ViewsPerDay returns daily view counts (UTC days) since the given time.
func (s *Store) ViewsPerDay(ctx context.Context, since time.Time) ([]DayCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(viewed_at / 1000, 'unixepoch') AS day, COUNT(*)
		FROM page_views WHERE viewed_at >= ?
		GROUP BY day ORDER BY day ASC
	`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("views per day: %w", err)
	}
	defer rows.Close()

	var days []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// VisitorActivities aggregates page views and events per visitor since the
// given time. Project pages live under /work/ and blog posts under /blog/.
func (s *Store) VisitorActivities(ctx context.Context, since time.Time) ([]*VisitorActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT visitor_id,
		       COUNT(*),
		       COUNT(DISTINCT CASE WHEN path LIKE '/work/%' THEN path END),
		       SUM(CASE WHEN path LIKE '/blog/%' AND scroll_depth >= 75 THEN 1 ELSE 0 END),
		       COALESCE(AVG(NULLIF(scroll_depth, 0)), 0),
		       COUNT(DISTINCT date(viewed_at / 1000, 'unixepoch')),
		       MIN(viewed_at),
		       MAX(viewed_at)
		FROM page_views WHERE viewed_at >= ?
		GROUP BY visitor_id
	`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("visitor page activity: %w", err)
	}

	byVisitor := make(map[string]*VisitorActivity)
	var order []*VisitorActivity
	for rows.Next() {
		a := &VisitorActivity{Events: make(map[string]int)}
		var first, last int64
		if err := rows.Scan(&a.VisitorID, &a.PageViews, &a.ProjectPages, &a.DeepBlogReads,
			&a.AvgScrollDepth, &a.DistinctDays, &first, &last); err != nil {
			rows.Close()
			return nil, err
		}
		a.FirstSeen = fromMillis(first)
		a.LastSeen = fromMillis(last)
		byVisitor[a.VisitorID] = a
		order = append(order, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	evRows, err := s.db.QueryContext(ctx, `
		SELECT visitor_id, kind, COUNT(*), MAX(occurred_at)
		FROM analytics_events WHERE occurred_at >= ?
		GROUP BY visitor_id, kind
	`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("visitor event activity: %w", err)
	}
	defer evRows.Close()

	for evRows.Next() {
		var visitor, kind string
		var n int
		var last int64
		if err := evRows.Scan(&visitor, &kind, &n, &last); err != nil {
			return nil, err
		}
		a, ok := byVisitor[visitor]
		if !ok {
			a = &VisitorActivity{VisitorID: visitor, Events: make(map[string]int), FirstSeen: fromMillis(last)}
			byVisitor[visitor] = a
			order = append(order, a)
		}
		a.Events[kind] += n
		if t := fromMillis(last); t.After(a.LastSeen) {
			a.LastSeen = t
		}
	}
	return order, evRows.Err()
}

// PurgeAnalytics deletes page views and events recorded before the cutoff.
func (s *Store) PurgeAnalytics(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for _, q := range []string{
		`DELETE FROM page_views WHERE viewed_at < ?`,
		`DELETE FROM analytics_events WHERE occurred_at < ?`,
	} {
		res, err := tx.ExecContext(ctx, q, toMillis(before))
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, tx.Commit()
}

func (s *Store) pathCounts(ctx context.Context, query string, args ...any) ([]PathCount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PathCount
	for rows.Next() {
		var pc PathCount
		if err := rows.Scan(&pc.Key, &pc.Count, &pc.Visitors); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}
