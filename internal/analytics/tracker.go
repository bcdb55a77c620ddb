// Package analytics records page views, engagement and interactions sent by
// the site's beacon script, and turns them into traffic summaries and
// scored leads.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/storage"
	"github.com/lukasito25/portfolio/internal/validate"
)

const (
	maxPathLen   = 512
	maxIDLen     = 64
	maxTargetLen = 256
	maxUALen     = 512
	maxDuration  = 24 * time.Hour
)

// Interaction kinds accepted by TrackInteraction.
const (
	KindClick         = "click"
	KindCTA           = "cta"
	KindOutbound      = "outbound"
	KindDownload      = "download"
	KindChatOpen      = "chat_open"
	KindChatMessage   = "chat_message"
	KindContactOpen   = "contact_open"
	KindContactSubmit = "contact_submit"
	KindProjectView   = "project_view"
)

var kinds = map[string]bool{
	KindClick: true, KindCTA: true, KindOutbound: true, KindDownload: true,
	KindChatOpen: true, KindChatMessage: true, KindContactOpen: true,
	KindContactSubmit: true, KindProjectView: true,
}

var botPattern = regexp.MustCompile(`(?i)bot|crawler|spider|preview|headless`)

// ErrUnknownPageView is returned when engagement refers to a missing view.
var ErrUnknownPageView = errors.New("unknown page view")

// Store is the persistence the tracker needs.
type Store interface {
	InsertPageView(ctx context.Context, v *storage.PageViewRecord) error
	UpdateEngagement(ctx context.Context, id string, scrollDepth int, durationMs int64) error
	InsertEvent(ctx context.Context, e *storage.EventRecord) error

	Totals(ctx context.Context, since time.Time) (storage.TrafficTotals, error)
	TopPages(ctx context.Context, since time.Time, limit int) ([]storage.PathCount, error)
	TopReferrers(ctx context.Context, since time.Time, excludeHost string, limit int) ([]storage.PathCount, error)
	EventCounts(ctx context.Context, since time.Time) ([]storage.PathCount, error)
	ViewsPerDay(ctx context.Context, since time.Time) ([]storage.DayCount, error)
	VisitorActivities(ctx context.Context, since time.Time) ([]*storage.VisitorActivity, error)
	PurgeAnalytics(ctx context.Context, before time.Time) (int64, error)
}

// Options configure tracking.
type Options struct {
	Enabled    bool
	IgnoreBots bool
	// SiteHost is the site's own host, excluded from referrer reports.
	SiteHost string
}

// PageView is a page load reported by the beacon. ID may be chosen by the
// client (a UUID) so later engagement beacons can refer to it without
// reading a response.
type PageView struct {
	ID        string
	VisitorID string
	SessionID string
	Path      string
	Referrer  string
	UserAgent string
}

// Event is an interaction reported by the beacon.
type Event struct {
	VisitorID string
	SessionID string
	Path      string
	Kind      string
	Target    string
}

// Tracker records analytics.
type Tracker struct {
	store Store
	opts  Options
	log   *zap.Logger
	now   func() time.Time
}

// NewTracker creates a tracker.
func NewTracker(store Store, opts Options, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	opts.SiteHost = referrerHost(opts.SiteHost)
	return &Tracker{store: store, opts: opts, log: log, now: time.Now}
}

// Enabled reports whether tracking is on.
func (t *Tracker) Enabled() bool {
	return t.opts.Enabled
}

// Ignored reports whether a request should not be tracked at all:
// tracking disabled, an admin path, or (when configured) a bot.
func (t *Tracker) Ignored(path, userAgent string) bool {
	if !t.opts.Enabled || IsAdminPath(path) {
		return true
	}
	return t.opts.IgnoreBots && IsBot(userAgent)
}

// TrackPageView stores a page view and returns its ID. An ignored view
// returns an empty ID and no error.
func (t *Tracker) TrackPageView(ctx context.Context, pv PageView) (string, error) {
	path := NormalizePath(pv.Path)
	if t.Ignored(path, pv.UserAgent) {
		return "", nil
	}
	if err := checkIDs(pv.VisitorID, pv.SessionID); err != nil {
		return "", err
	}

	id := storage.GenerateID()
	if u, err := uuid.Parse(pv.ID); err == nil {
		id = u.String()
	}
	rec := &storage.PageViewRecord{
		ID:        id,
		VisitorID: pv.VisitorID,
		SessionID: pv.SessionID,
		Path:      path,
		Referrer:  referrerHost(pv.Referrer),
		UserAgent: truncate(pv.UserAgent, maxUALen),
		ViewedAt:  t.now().UTC(),
	}
	if err := t.store.InsertPageView(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// beacon retried by the browser
			return rec.ID, nil
		}
		return "", fmt.Errorf("failed to record page view: %w", err)
	}
	return rec.ID, nil
}

// TrackEngagement raises the recorded scroll depth (0..100) and time on
// page of a view. Values below what is stored are ignored.
func (t *Tracker) TrackEngagement(ctx context.Context, pageViewID string, scrollDepth int, durationMs int64) error {
	if !t.opts.Enabled {
		return nil
	}
	if pageViewID == "" || len(pageViewID) > maxIDLen {
		return validate.Field("page_view_id", "is required")
	}
	scrollDepth = min(max(scrollDepth, 0), 100)
	durationMs = min(max(durationMs, 0), maxDuration.Milliseconds())

	err := t.store.UpdateEngagement(ctx, pageViewID, scrollDepth, durationMs)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUnknownPageView
	}
	return err
}

// TrackInteraction stores an interaction event.
func (t *Tracker) TrackInteraction(ctx context.Context, ev Event) error {
	path := NormalizePath(ev.Path)
	if !t.opts.Enabled || IsAdminPath(path) {
		return nil
	}
	if !kinds[ev.Kind] {
		return validate.Field("kind", "is not a known interaction kind")
	}
	if err := checkIDs(ev.VisitorID, ev.SessionID); err != nil {
		return err
	}

	rec := &storage.EventRecord{
		ID:         storage.GenerateID(),
		VisitorID:  ev.VisitorID,
		SessionID:  ev.SessionID,
		Path:       path,
		Kind:       ev.Kind,
		Target:     truncate(strings.TrimSpace(ev.Target), maxTargetLen),
		OccurredAt: t.now().UTC(),
	}
	if err := t.store.InsertEvent(ctx, rec); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Purge deletes analytics older than retentionDays. Zero or negative keeps
// everything.
func (t *Tracker) Purge(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := t.now().UTC().AddDate(0, 0, -retentionDays)
	n, err := t.store.PurgeAnalytics(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge analytics: %w", err)
	}
	if n > 0 {
		t.log.Info("analytics purged", zap.Int64("rows", n), zap.Time("before", cutoff))
	}
	return n, nil
}

func checkIDs(visitorID, sessionID string) error {
	verr := &validate.Error{}
	if visitorID == "" || len(visitorID) > maxIDLen {
		verr.Add("visitor_id", "is required")
	}
	if len(sessionID) > maxIDLen {
		verr.Add("session_id", fmt.Sprintf("must be at most %d characters", maxIDLen))
	}
	return verr.OrNil()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
