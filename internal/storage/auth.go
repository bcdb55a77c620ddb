package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UserRecord represents an admin account
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// SessionRecord represents an admin login session. Only the SHA-256 of the
// cookie token is stored.
type SessionRecord struct {
	TokenHash string
	UserID    string
	IP        string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CreateUser inserts a new admin user. A duplicate email returns ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u *UserRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_users (id, email, password_hash, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, toMillis(u.CreatedAt), nullMillis(u.LastLoginAt))
	return wrapWriteErr(err)
}

// GetUserByEmail looks up an admin user by (case-folded) email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, last_login_at
		FROM admin_users WHERE email = lower(?)
	`, email)
	return scanUser(row)
}

// GetUser looks up an admin user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, last_login_at
		FROM admin_users WHERE id = ?
	`, id)
	return scanUser(row)
}

// UpdatePassword replaces a user's password hash and drops their sessions.
func (s *Store) UpdatePassword(ctx context.Context, userID, hash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE admin_users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// TouchLogin records a successful login time.
func (s *Store) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE admin_users SET last_login_at = ? WHERE id = ?`, toMillis(at), userID)
	return err
}

// CountUsers returns the number of admin accounts.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&n)
	return n, err
}

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, sess *SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, ip, user_agent, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.TokenHash, sess.UserID, sess.IP, sess.UserAgent, toMillis(sess.CreatedAt), toMillis(sess.ExpiresAt))
	return wrapWriteErr(err)
}

// GetSession retrieves a session by token hash
func (s *Store) GetSession(ctx context.Context, tokenHash string) (*SessionRecord, error) {
	var sess SessionRecord
	var created, expires int64
	err := s.db.QueryRowContext(ctx, `
		SELECT token_hash, user_id, ip, user_agent, created_at, expires_at
		FROM sessions WHERE token_hash = ?
	`, tokenHash).Scan(&sess.TokenHash, &sess.UserID, &sess.IP, &sess.UserAgent, &created, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sess.CreatedAt = fromMillis(created)
	sess.ExpiresAt = fromMillis(expires)
	return &sess, nil
}

// ExtendSession moves a session's expiry.
func (s *Store) ExtendSession(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET expires_at = ? WHERE token_hash = ?`, toMillis(expiresAt), tokenHash)
	return err
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	return err
}

// DeleteExpiredSessions removes sessions that expired before now and
// returns how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanUser(row scanner) (*UserRecord, error) {
	var u UserRecord
	var created int64
	var lastLogin sql.NullInt64
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &created, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	u.LastLoginAt = fromNullMillis(lastLogin)
	return &u, nil
}
