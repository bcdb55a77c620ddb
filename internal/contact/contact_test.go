package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lukasito25/portfolio/internal/storage"
	"github.com/lukasito25/portfolio/internal/validate"
)

// MockMailer implements Mailer for testing
type MockMailer struct {
	SendFunc func(ctx context.Context, e Email) error
	sent     []Email
}

func (m *MockMailer) Send(ctx context.Context, e Email) error {
	m.sent = append(m.sent, e)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, e)
	}
	return nil
}

func createTestService(t *testing.T, mailer Mailer) *Service {
	t.Helper()

	store, err := storage.Open(storage.DriverCgo, filepath.Join(t.TempDir(), "contact.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, mailer, Options{NotifyTo: "owner@example.com", From: "site@example.com", SiteName: "Portfolio"}, zap.NewNop())
}

func validSubmission() Submission {
	return Submission{
		Name:    "Grace",
		Email:   "grace@example.com",
		Subject: "Project",
		Message: "I would like to talk about a project.",
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Submission)
		wantField string
	}{
		{name: "Given no name Then name required", mutate: func(s *Submission) { s.Name = "  " }, wantField: "name"},
		{name: "Given long name Then name too long", mutate: func(s *Submission) { s.Name = strings.Repeat("a", 101) }, wantField: "name"},
		{name: "Given bad email Then email invalid", mutate: func(s *Submission) { s.Email = "grace@" }, wantField: "email"},
		{name: "Given long subject Then subject too long", mutate: func(s *Submission) { s.Subject = strings.Repeat("s", 151) }, wantField: "subject"},
		{name: "Given short message Then message too short", mutate: func(s *Submission) { s.Message = "hi" }, wantField: "message"},
		{name: "Given huge message Then message too long", mutate: func(s *Submission) { s.Message = strings.Repeat("m", 5001) }, wantField: "message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &MockMailer{}
			svc := createTestService(t, mailer)
			sub := validSubmission()
			tt.mutate(&sub)

			_, err := svc.Submit(context.Background(), sub, Meta{})
			require.ErrorIs(t, err, ErrInvalid)
			var verr *validate.Error
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.wantField)
			assert.Empty(t, mailer.sent)
		})
	}
}

func TestSubmitStoresAndNotifies(t *testing.T) {
	mailer := &MockMailer{}
	svc := createTestService(t, mailer)
	ctx := context.Background()

	msg, err := svc.Submit(ctx, validSubmission(), Meta{IP: "203.0.113.9", UserAgent: "test"})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.True(t, msg.Notified)

	require.Len(t, mailer.sent, 1)
	sent := mailer.sent[0]
	assert.Equal(t, "owner@example.com", sent.To)
	assert.Equal(t, "grace@example.com", sent.ReplyTo)
	assert.Equal(t, "[Portfolio] Project", sent.Subject)
	assert.Contains(t, sent.Text, "I would like to talk")

	list, err := svc.List(ctx, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Notified)
	assert.Equal(t, "203.0.113.9", list[0].IP)

	n, err := svc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, svc.MarkRead(ctx, msg.ID))
	n, err = svc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, svc.Delete(ctx, msg.ID))
	assert.ErrorIs(t, svc.Delete(ctx, msg.ID), storage.ErrNotFound)
}

func TestSubmitMailFailureKeepsMessage(t *testing.T) {
	mailer := &MockMailer{SendFunc: func(context.Context, Email) error { return errors.New("smtp down") }}
	svc := createTestService(t, mailer)
	ctx := context.Background()

	msg, err := svc.Submit(ctx, validSubmission(), Meta{})
	require.NoError(t, err)
	assert.False(t, msg.Notified)

	list, err := svc.List(ctx, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Notified)
}

func TestSubmitHoneypot(t *testing.T) {
	mailer := &MockMailer{}
	svc := createTestService(t, mailer)
	ctx := context.Background()

	sub := validSubmission()
	sub.Website = "http://spam.example"
	msg, err := svc.Submit(ctx, sub, Meta{})
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, mailer.sent)

	list, err := svc.List(ctx, false, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core))

	require.NoError(t, m.Send(context.Background(), Email{To: "owner@example.com", Subject: "Hi", Text: "body"}))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "contact notification", entry.Message)
	assert.Equal(t, "Hi", entry.ContextMap()["subject"])
}

func TestHTTPMailer(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantErr   bool
		wantCalls int32
	}{
		{name: "Given success Then one call", statuses: []int{200}, wantCalls: 1},
		{name: "Given a 503 then success Then retried", statuses: []int{503, 200}, wantCalls: 2},
		{name: "Given 429 three times Then gives up", statuses: []int{429, 429, 429}, wantErr: true, wantCalls: 3},
		{name: "Given a 422 Then no retry", statuses: []int{422}, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))

				var req httpMailRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, []string{"owner@example.com"}, req.To)

				status := tt.statuses[min(int(n), len(tt.statuses))-1]
				w.WriteHeader(status)
				if status >= 400 {
					w.Write([]byte(`{"name":"error","message":"nope"}`))
				} else {
					w.Write([]byte(`{"id":"email_1"}`))
				}
			}))
			defer srv.Close()

			m := NewHTTPMailer(srv.URL, "re_test")
			m.initialDelay = time.Millisecond

			err := m.Send(context.Background(), Email{From: "site@example.com", To: "owner@example.com", Subject: "s", Text: "t"})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "nope")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}
