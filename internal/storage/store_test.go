package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a temp-dir SQLite database for testing
func createTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(DriverCgo, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func makeTestProject(id, slug string, published bool) *ProjectRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &ProjectRecord{
		ID:        id,
		Slug:      slug,
		Title:     "Project " + id,
		Summary:   "Summary for " + id,
		Body:      "# " + id,
		Tech:      []string{"Go", "SQLite"},
		Published: published,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func makeTestPost(id, slug string, published bool, at time.Time) *PostRecord {
	p := &PostRecord{
		ID:        id,
		Slug:      slug,
		Title:     "Post " + id,
		Body:      "body",
		Tags:      []string{"go"},
		Published: published,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if published {
		p.PublishedAt = &at
	}
	return p
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		path    string
		wantErr bool
	}{
		{name: "Given cgo driver When opening file Then succeeds", driver: DriverCgo, path: filepath.Join(t.TempDir(), "a", "b.db")},
		{name: "Given cgo driver When opening memory Then succeeds", driver: DriverCgo, path: ":memory:"},
		{name: "Given unknown driver When opening Then fails", driver: "postgres", path: ":memory:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.driver, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if store != nil {
				if err := store.Migrate(); err != nil {
					t.Errorf("Migrate() should be idempotent: %v", err)
				}
				store.Close()
			}
		})
	}
}

func TestProjectRoundTrip(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	p := makeTestProject("p1", "first", true)
	p.Featured = true
	p.SortOrder = 3
	if err := store.SaveProject(ctx, p); err != nil {
		t.Fatalf("SaveProject() error = %v", err)
	}

	got, err := store.GetProjectBySlug(ctx, "first")
	if err != nil {
		t.Fatalf("GetProjectBySlug() error = %v", err)
	}
	if got.Title != p.Title || !got.Featured || got.SortOrder != 3 || len(got.Tech) != 2 {
		t.Errorf("GetProjectBySlug() = %+v, want %+v", got, p)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, p.CreatedAt)
	}

	// Update in place keeps created_at
	p.Title = "Renamed"
	if err := store.SaveProject(ctx, p); err != nil {
		t.Fatalf("SaveProject() update error = %v", err)
	}
	got, _ = store.GetProject(ctx, "p1")
	if got.Title != "Renamed" {
		t.Errorf("Title = %q, want Renamed", got.Title)
	}

	if err := store.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if _, err := store.GetProject(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteProject(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteProject() twice error = %v, want ErrNotFound", err)
	}
}

func TestSaveProjectSlugConflict(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.SaveProject(ctx, makeTestProject("p1", "same", true)); err != nil {
		t.Fatalf("SaveProject() error = %v", err)
	}
	err := store.SaveProject(ctx, makeTestProject("p2", "same", true))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("SaveProject() duplicate slug error = %v, want ErrConflict", err)
	}
}

func TestListProjects(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	featured := makeTestProject("1", "one", true)
	featured.Featured = true
	tagged := makeTestProject("2", "two", true)
	tagged.Tech = []string{"Rust"}
	for _, p := range []*ProjectRecord{featured, tagged, makeTestProject("3", "three", false)} {
		if err := store.SaveProject(ctx, p); err != nil {
			t.Fatalf("SaveProject(%s) error = %v", p.ID, err)
		}
	}

	tests := []struct {
		name      string
		filter    ListFilter
		wantCount int
	}{
		{name: "Given mixed projects When listing all Then returns all", filter: ListFilter{}, wantCount: 3},
		{name: "Given mixed projects When published only Then hides drafts", filter: ListFilter{PublishedOnly: true}, wantCount: 2},
		{name: "Given mixed projects When featured only Then returns featured", filter: ListFilter{FeaturedOnly: true}, wantCount: 1},
		{name: "Given mixed projects When tag filter Then matches case-insensitively", filter: ListFilter{Tag: "rust"}, wantCount: 1},
		{name: "Given mixed projects When limit Then caps result", filter: ListFilter{Limit: 2}, wantCount: 2},
		{name: "Given mixed projects When offset past end Then empty", filter: ListFilter{Limit: 10, Offset: 10}, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListProjects(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListProjects() error = %v", err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("ListProjects() returned %d, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestListPostsOrderAndTags(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	older := makeTestPost("a", "older", true, base)
	newer := makeTestPost("b", "newer", true, base.Add(48*time.Hour))
	newer.Tags = []string{"Go", "Web"}
	draft := makeTestPost("c", "draft", false, base.Add(72*time.Hour))
	draft.Tags = []string{"secret"}
	for _, p := range []*PostRecord{older, newer, draft} {
		if err := store.SavePost(ctx, p); err != nil {
			t.Fatalf("SavePost(%s) error = %v", p.ID, err)
		}
	}

	got, err := store.ListPosts(ctx, ListFilter{PublishedOnly: true})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if len(got) != 2 || got[0].Slug != "newer" || got[1].Slug != "older" {
		t.Fatalf("ListPosts() order = %v", slugs(got))
	}
	if got[0].PublishedAt == nil || !got[0].PublishedAt.Equal(base.Add(48*time.Hour)) {
		t.Errorf("PublishedAt = %v", got[0].PublishedAt)
	}

	tags, err := store.PostTags(ctx)
	if err != nil {
		t.Fatalf("PostTags() error = %v", err)
	}
	want := []string{"go", "web"}
	if len(tags) != len(want) || tags[0] != want[0] || tags[1] != want[1] {
		t.Errorf("PostTags() = %v, want %v", tags, want)
	}

	n, _ := store.CountPosts(ctx, true)
	if n != 2 {
		t.Errorf("CountPosts(published) = %d, want 2", n)
	}
}

func slugs(posts []*PostRecord) []string {
	var out []string
	for _, p := range posts {
		out = append(out, p.Slug)
	}
	return out
}

func TestSessions(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := &UserRecord{ID: "u1", Email: "me@example.com", PasswordHash: "x", CreatedAt: now}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := store.CreateUser(ctx, &UserRecord{ID: "u2", Email: "me@example.com", PasswordHash: "y", CreatedAt: now}); !errors.Is(err, ErrConflict) {
		t.Errorf("CreateUser() duplicate error = %v, want ErrConflict", err)
	}
	if _, err := store.GetUserByEmail(ctx, "ME@example.com"); err != nil {
		t.Errorf("GetUserByEmail() should fold case: %v", err)
	}

	live := &SessionRecord{TokenHash: "live", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	dead := &SessionRecord{TokenHash: "dead", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(-time.Hour)}
	for _, s := range []*SessionRecord{live, dead} {
		if err := store.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}

	n, err := store.DeleteExpiredSessions(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredSessions() = %d, %v; want 1", n, err)
	}
	if _, err := store.GetSession(ctx, "live"); err != nil {
		t.Errorf("GetSession(live) error = %v", err)
	}

	if err := store.UpdatePassword(ctx, "u1", "new"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	if _, err := store.GetSession(ctx, "live"); !errors.Is(err, ErrNotFound) {
		t.Errorf("sessions should be dropped on password change, got %v", err)
	}
}

func TestMessages(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, id := range []string{"m1", "m2"} {
		m := &MessageRecord{ID: id, Name: "n", Email: "e@x.io", Message: "hello there", CreatedAt: now.Add(time.Duration(i) * time.Minute)}
		if err := store.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}
	if err := store.MarkMessageRead(ctx, "m1"); err != nil {
		t.Fatalf("MarkMessageRead() error = %v", err)
	}
	if err := store.MarkMessageRead(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkMessageRead(missing) error = %v, want ErrNotFound", err)
	}

	unread, err := store.ListMessages(ctx, true, 10, 0)
	if err != nil || len(unread) != 1 || unread[0].ID != "m2" {
		t.Fatalf("ListMessages(unread) = %v, %v", unread, err)
	}
	all, _ := store.ListMessages(ctx, false, 0, 0)
	if len(all) != 2 || all[0].ID != "m2" {
		t.Errorf("ListMessages(all) should be newest first, got %d items", len(all))
	}
	if n, _ := store.CountUnreadMessages(ctx); n != 1 {
		t.Errorf("CountUnreadMessages() = %d, want 1", n)
	}
}

func TestAnalyticsAggregation(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	views := []*PageViewRecord{
		{ID: "v1", VisitorID: "alice", SessionID: "s1", Path: "/", Referrer: "google.com", ViewedAt: day1},
		{ID: "v2", VisitorID: "alice", SessionID: "s1", Path: "/work/api", ViewedAt: day1},
		{ID: "v3", VisitorID: "alice", SessionID: "s2", Path: "/blog/go", ViewedAt: day2},
		{ID: "v4", VisitorID: "bob", SessionID: "s3", Path: "/", Referrer: "me.dev", ViewedAt: day2},
	}
	for _, v := range views {
		if err := store.InsertPageView(ctx, v); err != nil {
			t.Fatalf("InsertPageView() error = %v", err)
		}
	}
	if err := store.UpdateEngagement(ctx, "v3", 80, 30000); err != nil {
		t.Fatalf("UpdateEngagement() error = %v", err)
	}
	// lower values never overwrite higher ones
	if err := store.UpdateEngagement(ctx, "v3", 10, 10); err != nil {
		t.Fatalf("UpdateEngagement() error = %v", err)
	}
	if err := store.InsertEvent(ctx, &EventRecord{ID: "e1", VisitorID: "alice", Kind: "cta", OccurredAt: day2}); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}

	v3, _ := store.GetPageView(ctx, "v3")
	if v3.ScrollDepth != 80 || v3.DurationMs != 30000 {
		t.Errorf("engagement = %d/%d, want 80/30000", v3.ScrollDepth, v3.DurationMs)
	}

	totals, err := store.Totals(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Totals() error = %v", err)
	}
	if totals.Views != 4 || totals.UniqueVisitors != 2 || totals.UniqueSessions != 3 || totals.AvgScrollDepth != 80 {
		t.Errorf("Totals() = %+v", totals)
	}

	pages, _ := store.TopPages(ctx, time.Time{}, 10)
	if len(pages) == 0 || pages[0].Key != "/" || pages[0].Count != 2 || pages[0].Visitors != 2 {
		t.Errorf("TopPages() = %+v", pages)
	}

	refs, _ := store.TopReferrers(ctx, time.Time{}, "me.dev", 10)
	if len(refs) != 1 || refs[0].Key != "google.com" {
		t.Errorf("TopReferrers() = %+v", refs)
	}

	days, _ := store.ViewsPerDay(ctx, time.Time{})
	if len(days) != 2 || days[0].Day != "2026-03-01" || days[0].Count != 2 {
		t.Errorf("ViewsPerDay() = %+v", days)
	}

	acts, err := store.VisitorActivities(ctx, time.Time{})
	if err != nil {
		t.Fatalf("VisitorActivities() error = %v", err)
	}
	var alice *VisitorActivity
	for _, a := range acts {
		if a.VisitorID == "alice" {
			alice = a
		}
	}
	if alice == nil {
		t.Fatal("alice missing from activities")
	}
	if alice.PageViews != 3 || alice.ProjectPages != 1 || alice.DeepBlogReads != 1 || alice.DistinctDays != 2 || alice.Events["cta"] != 1 {
		t.Errorf("alice activity = %+v", alice)
	}

	n, err := store.PurgeAnalytics(ctx, day2)
	if err != nil || n != 2 {
		t.Errorf("PurgeAnalytics() = %d, %v; want 2", n, err)
	}
}
