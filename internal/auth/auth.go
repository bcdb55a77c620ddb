// Package auth implements admin accounts and cookie sessions.
//
// Session tokens are 32 random bytes, hex encoded, handed to the browser
// once. The database only stores their SHA-256.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lukasito25/portfolio/internal/storage"
	"github.com/lukasito25/portfolio/internal/validate"
)

// MinPasswordLength is the shortest accepted admin password.
const MinPasswordLength = 10

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSessionExpired is returned for expired or unknown session tokens.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserExists is returned when creating a duplicate account.
	ErrUserExists = errors.New("admin user already exists")
)

// Store is the persistence the service needs.
type Store interface {
	CreateUser(ctx context.Context, u *storage.UserRecord) error
	GetUserByEmail(ctx context.Context, email string) (*storage.UserRecord, error)
	GetUser(ctx context.Context, id string) (*storage.UserRecord, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
	TouchLogin(ctx context.Context, userID string, at time.Time) error
	CountUsers(ctx context.Context) (int, error)

	CreateSession(ctx context.Context, sess *storage.SessionRecord) error
	GetSession(ctx context.Context, tokenHash string) (*storage.SessionRecord, error)
	ExtendSession(ctx context.Context, tokenHash string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// User is an authenticated admin.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Session is a live login. Token is only known right after Login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	// Renewed is set by Authenticate when the expiry moved forward and the
	// cookie should be re-issued.
	Renewed bool
}

// Meta describes the client a session was created from.
type Meta struct {
	IP        string
	UserAgent string
}

// Service manages admin users and sessions.
type Service struct {
	store   Store
	ttl     time.Duration
	log     *zap.Logger
	now     func() time.Time
	cost    int
	csrfKey []byte
	dummy   []byte
}

// NewService creates an auth service with the given session lifetime.
// The CSRF key is generated per process, so restarting the server
// invalidates open admin forms but not sessions.
func NewService(store Store, ttl time.Duration, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate csrf key: %w", err)
	}
	s := &Service{
		store:   store,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
		cost:    bcrypt.DefaultCost,
		csrfKey: key,
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	s.dummy = dummy
	return s, nil
}

// TTL returns the session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// CreateUser adds an admin account.
func (s *Service) CreateUser(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	rec := &storage.UserRecord{
		ID:           storage.GenerateID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.Info("admin user created", zap.String("email", email))
	return userFromRecord(rec), nil
}

// SetPassword replaces a user's password and signs out all their sessions.
func (s *Service) SetPassword(ctx context.Context, email, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	rec, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, rec.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.log.Info("admin password changed", zap.String("email", rec.Email))
	return nil
}

// HasUsers reports whether any admin account exists.
func (s *Service) HasUsers(ctx context.Context) (bool, error) {
	n, err := s.store.CountUsers(ctx)
	return n > 0, err
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string, meta Meta) (*Session, *User, error) {
	rec, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, err
		}
		// Spend the same bcrypt time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	sess := &storage.SessionRecord{
		TokenHash: hashToken(token),
		UserID:    rec.ID,
		IP:        meta.IP,
		UserAgent: truncate(meta.UserAgent, 512),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.store.TouchLogin(ctx, rec.ID, now); err != nil {
		s.log.Warn("failed to record login time", zap.Error(err))
	}
	rec.LastLoginAt = &now
	return &Session{Token: token, ExpiresAt: sess.ExpiresAt}, userFromRecord(rec), nil
}

// Authenticate resolves a session token to its user. Sessions with less
// than half their lifetime left are extended.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, *Session, error) {
	if token == "" {
		return nil, nil, ErrSessionExpired
	}
	th := hashToken(token)
	sess, err := s.store.GetSession(ctx, th)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, err
	}
	now := s.now().UTC()
	if !now.Before(sess.ExpiresAt) {
		if err := s.store.DeleteSession(ctx, th); err != nil {
			s.log.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, nil, ErrSessionExpired
	}

	rec, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, err
	}

	out := &Session{Token: token, ExpiresAt: sess.ExpiresAt}
	if sess.ExpiresAt.Sub(now) < s.ttl/2 {
		out.ExpiresAt = now.Add(s.ttl)
		if err := s.store.ExtendSession(ctx, th, out.ExpiresAt); err != nil {
			s.log.Warn("failed to extend session", zap.Error(err))
			out.ExpiresAt = sess.ExpiresAt
		} else {
			out.Renewed = true
		}
	}
	return userFromRecord(rec), out, nil
}

// Logout ends a session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, hashToken(token))
}

// PurgeExpired deletes expired sessions.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now().UTC())
}

// CSRFToken returns the form token bound to a session token.
func (s *Service) CSRFToken(sessionToken string) string {
	mac := hmac.New(sha256.New, s.csrfKey)
	mac.Write([]byte(hashToken(sessionToken)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCSRF checks a submitted form token against the session.
func (s *Service) VerifyCSRF(sessionToken, submitted string) bool {
	if sessionToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRFToken(sessionToken)), []byte(submitted)) == 1
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validate.Field("email", "must be a valid email address")
	}
	return email, nil
}

func checkPassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return validate.Field("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		return validate.Field("password", "must be at most 72 bytes")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func userFromRecord(r *storage.UserRecord) *User {
	return &User{ID: r.ID, Email: r.Email, CreatedAt: r.CreatedAt, LastLoginAt: r.LastLoginAt}
}
