package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/analytics"
	"github.com/lukasito25/portfolio/internal/auth"
	"github.com/lukasito25/portfolio/internal/chat"
	"github.com/lukasito25/portfolio/internal/config"
	"github.com/lukasito25/portfolio/internal/contact"
	"github.com/lukasito25/portfolio/internal/content"
	"github.com/lukasito25/portfolio/internal/metrics"
	"github.com/lukasito25/portfolio/internal/storage"
)

const (
	testAdminEmail    = "owner@example.com"
	testAdminPassword = "correct horse battery"
	testUserAgent     = "Mozilla/5.0 (X11; Linux x86_64) Firefox/130.0"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockMailer implements contact.Mailer for testing
type MockMailer struct {
	mu   sync.Mutex
	sent []contact.Email
	err  error
}

func (m *MockMailer) Send(_ context.Context, e contact.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

// MockCompleter implements chat.Completer for testing
type MockCompleter struct {
	CompleteFunc func(ctx context.Context, system string, msgs []chat.Message) (string, error)
}

func (m *MockCompleter) Complete(ctx context.Context, system string, msgs []chat.Message) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, msgs)
	}
	return "I build web services in Go.", nil
}

type testEnv struct {
	srv     *Server
	store   *storage.Store
	content *content.Service
	mailer  *MockMailer
}

type envOption func(cfg *config.Config, completer *chat.Completer)

func withoutChat() envOption {
	return func(_ *config.Config, completer *chat.Completer) { *completer = nil }
}

func withLoginRate(n int) envOption {
	return func(cfg *config.Config, _ *chat.Completer) { cfg.Auth.LoginRatePerMinute = n }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	store, err := storage.Open(storage.DriverCgo, filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Site.Owner = "Ada Lovelace"
	cfg.Site.Title = "Ada Lovelace"
	cfg.Contact.RatePerHour = 100
	cfg.Chat.RatePerMinute = 100
	var completer chat.Completer = &MockCompleter{}
	for _, opt := range opts {
		opt(cfg, &completer)
	}

	log := zap.NewNop()
	contentSvc := content.NewService(store, log, time.Minute)
	authSvc, err := auth.NewService(store, cfg.Auth.SessionTTL, log)
	require.NoError(t, err)
	_, err = authSvc.CreateUser(context.Background(), testAdminEmail, testAdminPassword)
	require.NoError(t, err)

	mailer := &MockMailer{}
	srv, err := NewServer(Deps{
		Config:    cfg,
		Log:       log,
		Metrics:   metrics.New(),
		DB:        store,
		Content:   contentSvc,
		Auth:      authSvc,
		Analytics: analytics.NewTracker(store, analytics.Options{Enabled: true, IgnoreBots: true}, log),
		Contact:   contact.NewService(store, mailer, contact.Options{NotifyTo: "owner@example.com"}, log),
		Chat:      chat.NewService(completer, contentSvc, chat.Profile{Owner: cfg.Site.Owner}, chat.Options{}, log),
	})
	require.NoError(t, err)

	return &testEnv{srv: srv, store: store, content: contentSvc, mailer: mailer}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := e.content.CreateProject(ctx, content.ProjectInput{
		Title: "Ledger", Summary: "Double-entry bookkeeping", Body: "Built with **Go**.",
		Tech: []string{"Go", "SQLite"}, Featured: true, Published: true,
	})
	require.NoError(t, err)
	_, err = e.content.CreateProject(ctx, content.ProjectInput{Title: "Secret Draft"})
	require.NoError(t, err)
	_, err = e.content.CreatePost(ctx, content.PostInput{
		Title: "Hello World", Excerpt: "First post", Body: "Welcome <script>alert(1)</script>",
		Tags: []string{"intro"}, Published: true,
	})
	require.NoError(t, err)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestPublicPages(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		contains   []string
		excludes   []string
	}{
		{name: "Given home Then featured work shown", path: "/", wantStatus: http.StatusOK, contains: []string{"Ada Lovelace", "Ledger", "Hello World"}, excludes: []string{"Secret Draft"}},
		{name: "Given about Then about text shown", path: "/about", wantStatus: http.StatusOK, contains: []string{"I design, build and operate"}},
		{name: "Given skills Then groups and tech shown", path: "/skills", wantStatus: http.StatusOK, contains: []string{"Languages", "/work?tech=SQLite"}},
		{name: "Given work Then published projects only", path: "/work", wantStatus: http.StatusOK, contains: []string{"Ledger"}, excludes: []string{"Secret Draft"}},
		{name: "Given work filtered Then matching projects", path: "/work?tech=sqlite", wantStatus: http.StatusOK, contains: []string{"Ledger"}},
		{name: "Given project Then markdown rendered", path: "/work/ledger", wantStatus: http.StatusOK, contains: []string{"<strong>Go</strong>"}},
		{name: "Given draft project Then not found", path: "/work/secret-draft", wantStatus: http.StatusNotFound, contains: []string{"Page not found"}},
		{name: "Given blog Then post listed", path: "/blog", wantStatus: http.StatusOK, contains: []string{"Hello World", "intro"}},
		{name: "Given post Then script stripped", path: "/blog/hello-world", wantStatus: http.StatusOK, contains: []string{"Welcome"}, excludes: []string{"<script>alert"}},
		{name: "Given contact Then form shown", path: "/contact", wantStatus: http.StatusOK, contains: []string{`name="website"`}},
		{name: "Given unknown page Then not found page", path: "/nope", wantStatus: http.StatusNotFound, contains: []string{"Page not found"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			for _, s := range tt.contains {
				assert.Contains(t, w.Body.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, w.Body.String(), s)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	w = env.do(httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestStaticAndHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/static/analytics.js", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/analytics/pageview")

	w = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAPIContent(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"], 1)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/posts/hello-world", nil))
	require.Equal(t, http.StatusOK, w.Code)
	post := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "Hello World", post["title"])
	assert.NotEmpty(t, post["html"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/projects/secret-draft", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/tags", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"intro"}, decode(t, w)["data"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestAPIProjectStatsWithoutRepo(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.srv.repoStats = content.NewRepoStatsClient(http.DefaultClient, time.Minute)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/projects/ledger/stats", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode(t, w)["error"], "no github repository")
}

func TestAPIContact(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantStored int
		wantField  string
	}{
		{
			name:       "Given valid submission Then stored and notified",
			body:       `{"name":"Grace","email":"grace@example.com","message":"Let us build something together."}`,
			wantStatus: http.StatusCreated,
			wantStored: 1,
		},
		{
			name:       "Given bad email Then field error",
			body:       `{"name":"Grace","email":"nope","message":"Let us build something together."}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "email",
		},
		{
			name:       "Given honeypot Then accepted but dropped",
			body:       `{"name":"Bot","email":"bot@example.com","message":"Buy cheap things now!!","website":"http://spam"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "Given malformed JSON Then bad request",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := env.do(req)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantField != "" {
				fields := decode(t, w)["fields"].(map[string]any)
				assert.Contains(t, fields, tt.wantField)
			}
			msgs, err := env.store.ListMessages(context.Background(), false, 10, 0)
			require.NoError(t, err)
			assert.Len(t, msgs, tt.wantStored)
			assert.Len(t, env.mailer.sent, tt.wantStored)
		})
	}
}

func TestContactFormPost(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"name": {"Grace"}, "email": {"grace@example.com"}, "message": {"Let us build something together."}}
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/contact?sent=1", w.Header().Get("Location"))

	form.Set("email", "not-an-email")
	req = httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "field-error")
	assert.Contains(t, w.Body.String(), "not-an-email")
}

func TestAPIChat(t *testing.T) {
	t.Run("Given a question Then the assistant answers", func(t *testing.T) {
		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":"What do you build?"}]}`))
		req.Header.Set("Content-Type", "application/json")
		w := env.do(req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		msg := decode(t, w)["data"].(map[string]any)["message"].(map[string]any)
		assert.Equal(t, "assistant", msg["role"])
		assert.Equal(t, "I build web services in Go.", msg["content"])
	})

	t.Run("Given an empty conversation Then bad request", func(t *testing.T) {
		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[]}`))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
	})

	t.Run("Given no provider Then unavailable", func(t *testing.T) {
		env := newTestEnv(t, withoutChat())
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/chat", nil))
		assert.Equal(t, false, decode(t, w)["available"])

		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusServiceUnavailable, env.do(req).Code)

		page := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotContains(t, page.Body.String(), "chat.js")
	})

	t.Run("Given upstream failure Then bad gateway", func(t *testing.T) {
		env := newTestEnv(t)
		env.srv.chat = chat.NewService(&MockCompleter{CompleteFunc: func(context.Context, string, []chat.Message) (string, error) {
			return "", errors.New("upstream down")
		}}, env.content, chat.Profile{}, chat.Options{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusBadGateway, env.do(req).Code)
	})
}

func beacon(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	req.Header.Set("User-Agent", testUserAgent)
	return req
}

func TestBeacons(t *testing.T) {
	env := newTestEnv(t)
	const viewID = "6f1c1d4e-8d0a-4c53-9a43-2f1b0c7d9e11"

	w := env.do(beacon("/api/analytics/pageview", `{"id":"`+viewID+`","session_id":"s1","path":"/work/ledger","referrer":"https://www.google.com/search"}`))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	var visitor *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == visitorCookie {
			visitor = c
		}
	}
	require.NotNil(t, visitor)
	assert.True(t, visitor.HttpOnly)

	// retried beacon is idempotent
	w = env.do(beacon("/api/analytics/pageview", `{"id":"`+viewID+`","session_id":"s1","path":"/work/ledger"}`))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(beacon("/api/analytics/engagement", `{"id":"`+viewID+`","scroll_depth":80,"duration_ms":45000}`))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(beacon("/api/analytics/engagement", `{"id":"00000000-0000-4000-8000-000000000000","scroll_depth":10}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := beacon("/api/analytics/event", `{"session_id":"s1","path":"/work/ledger","kind":"outbound","target":"https://github.com/ada"}`)
	req.AddCookie(visitor)
	w = env.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Result().Cookies(), "existing visitor cookie is reused")

	w = env.do(beacon("/api/analytics/event", `{"path":"/","kind":"teleport"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "kind")

	w = env.do(beacon("/api/analytics/pageview", `not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	summary, err := env.srv.analytics.Summary(context.Background(), env.srv.analytics.Since(1))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Views)
	assert.Equal(t, 80.0, summary.AvgScrollDepth)
	require.Len(t, summary.TopReferrers, 1)
	assert.Equal(t, "google.com", summary.TopReferrers[0].Key)
}

func TestBeaconIgnoresBotsAndAdmin(t *testing.T) {
	env := newTestEnv(t)

	req := beacon("/api/analytics/pageview", `{"path":"/"}`)
	req.Header.Set("User-Agent", "Googlebot/2.1")
	assert.Equal(t, http.StatusNoContent, env.do(req).Code)
	assert.Equal(t, http.StatusNoContent, env.do(beacon("/api/analytics/pageview", `{"path":"/admin/projects"}`)).Code)

	summary, err := env.srv.analytics.Summary(context.Background(), env.srv.analytics.Since(1))
	require.NoError(t, err)
	assert.Zero(t, summary.Views)
}

func TestJanitor(t *testing.T) {
	env := newTestEnv(t)
	env.srv.Janitor(context.Background())
}
