package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasito25/portfolio/internal/auth"
	"github.com/lukasito25/portfolio/internal/contact"
	"github.com/lukasito25/portfolio/internal/content"
)

// adminSession signs in through the login form and returns the session
// cookie and its CSRF token.
func (e *testEnv) adminSession(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	w := e.do(formRequest("/admin/login", url.Values{
		"email":    {testAdminEmail},
		"password": {testAdminPassword},
		"next":     {"/admin/projects"},
	}))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/admin/projects", w.Header().Get("Location"))

	for _, c := range w.Result().Cookies() {
		if c.Name == e.srv.cookie.Name {
			return c, e.srv.auth.CSRFToken(c.Value)
		}
	}
	t.Fatal("no session cookie set")
	return nil, ""
}

func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestAdminRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name         string
		method       string
		path         string
		wantStatus   int
		wantLocation string
	}{
		{name: "Given dashboard Then redirect to login", method: http.MethodGet, path: "/admin", wantStatus: http.StatusSeeOther, wantLocation: "/admin/login?next=%2Fadmin"},
		{name: "Given edit page Then redirect keeps target", method: http.MethodGet, path: "/admin/projects/new", wantStatus: http.StatusSeeOther, wantLocation: "/admin/login?next=%2Fadmin%2Fprojects%2Fnew"},
		{name: "Given admin API Then unauthorized", method: http.MethodGet, path: "/api/admin/projects", wantStatus: http.StatusUnauthorized},
		{name: "Given admin API write Then unauthorized", method: http.MethodPost, path: "/api/admin/posts", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))
			}
		})
	}
}

func TestLogin(t *testing.T) {
	t.Run("Given wrong password Then form re-rendered", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(formRequest("/admin/login", url.Values{"email": {testAdminEmail}, "password": {"wrong password!"}}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid email or password.")
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("Given external next Then redirect stays in admin", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(formRequest("/admin/login", url.Values{
			"email": {testAdminEmail}, "password": {testAdminPassword}, "next": {"https://evil.example"},
		}))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/admin", w.Header().Get("Location"))
	})

	t.Run("Given too many attempts Then limited", func(t *testing.T) {
		env := newTestEnv(t, withLoginRate(1))
		bad := url.Values{"email": {testAdminEmail}, "password": {"wrong password!"}}
		assert.Equal(t, http.StatusUnauthorized, env.do(formRequest("/admin/login", bad)).Code)
		w := env.do(formRequest("/admin/login", bad))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "Too many sign-in attempts")
	})

	t.Run("Given logout Then session revoked", func(t *testing.T) {
		env := newTestEnv(t)
		cookie, csrf := env.adminSession(t)

		req := formRequest("/admin/logout", url.Values{auth.CSRFField: {csrf}})
		req.AddCookie(cookie)
		w := env.do(req)
		assert.Equal(t, http.StatusSeeOther, w.Code)

		req = httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(cookie)
		assert.Equal(t, http.StatusSeeOther, env.do(req).Code)
	})
}

func TestAdminProjectForms(t *testing.T) {
	env := newTestEnv(t)
	cookie, csrf := env.adminSession(t)
	ctx := context.Background()

	post := func(path string, form url.Values) *httptest.ResponseRecorder {
		req := formRequest(path, form)
		req.AddCookie(cookie)
		return env.do(req)
	}

	// missing CSRF token
	w := post("/admin/projects", url.Values{"title": {"Ledger"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = post("/admin/projects", url.Values{
		auth.CSRFField: {csrf},
		"title":        {"Ledger"},
		"tech":         {"Go, SQLite"},
		"sort_order":   {""},
		"published":    {"true"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/admin/projects?saved=created", w.Header().Get("Location"))

	p, err := env.content.GetProject(ctx, "ledger", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "SQLite"}, p.Tech)
	assert.True(t, p.Published)
	assert.False(t, p.Featured)

	// duplicate slug re-renders the form
	w = post("/admin/projects", url.Values{auth.CSRFField: {csrf}, "title": {"Ledger"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Slug is already in use")

	// validation error re-renders the form with the input
	w = post("/admin/projects/"+p.ID, url.Values{auth.CSRFField: {csrf}, "title": {""}, "summary": {"kept summary"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "kept summary")

	w = post("/admin/projects/"+p.ID, url.Values{auth.CSRFField: {csrf}, "title": {"Ledger"}, "featured": {"true"}, "published": {"true"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	p, err = env.content.GetProjectByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, p.Featured)

	req := httptest.NewRequest(http.MethodGet, "/admin/projects/"+p.ID+"/edit", nil)
	req.AddCookie(cookie)
	w = env.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="Go, SQLite"`)
	assert.Contains(t, w.Body.String(), csrf)

	w = post("/admin/projects/"+p.ID+"/delete", url.Values{auth.CSRFField: {csrf}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	_, err = env.content.GetProjectByID(ctx, p.ID)
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestAdminPages(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	cookie, _ := env.adminSession(t)

	_, err := env.srv.contact.Submit(context.Background(), contact.Submission{
		Name: "Grace", Email: "grace@example.com", Message: "Can we talk about a project?",
	}, contact.Meta{IP: "10.0.0.1"})
	require.NoError(t, err)

	tests := []struct {
		path     string
		contains string
	}{
		{path: "/admin", contains: "1</strong> unread messages"},
		{path: "/admin/projects", contains: "Secret Draft"},
		{path: "/admin/posts", contains: "Hello World"},
		{path: "/admin/posts/new", contains: `name="tags"`},
		{path: "/admin/messages", contains: "Can we talk about a project?"},
		{path: "/admin/analytics?days=7", contains: "No visitors in this window."},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.AddCookie(cookie)
			w := env.do(req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestAdminAPI(t *testing.T) {
	env := newTestEnv(t)
	cookie, csrf := env.adminSession(t)

	send := func(method, path, body string, withCSRF bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if withCSRF {
			req.Header.Set(auth.CSRFHeader, csrf)
		}
		req.AddCookie(cookie)
		return env.do(req)
	}

	w := send(http.MethodPost, "/api/admin/posts", `{"title":"Draft thoughts"}`, false)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = send(http.MethodPost, "/api/admin/posts", `{"title":"Draft thoughts","body":"Some words"}`, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)["data"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, "draft-thoughts", created["slug"])
	assert.Nil(t, created["published_at"])

	w = send(http.MethodPost, "/api/admin/posts", `{"title":"Draft thoughts"}`, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = send(http.MethodPost, "/api/admin/posts", `{"title":""}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "title")

	w = send(http.MethodPut, "/api/admin/posts/"+id, `{"title":"Draft thoughts","published":true}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode(t, w)["data"].(map[string]any)["published_at"])

	w = send(http.MethodGet, "/api/admin/posts", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = send(http.MethodDelete, "/api/admin/posts/"+id, "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(http.MethodGet, "/api/admin/posts/"+id, "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(http.MethodGet, "/api/admin/analytics/summary?days=7", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["data"].(map[string]any)["views"])

	w = send(http.MethodGet, "/api/admin/analytics/leads", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["data"])
}
