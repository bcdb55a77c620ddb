package storage

import (
	"context"
	"time"
)

// MessageRecord represents a contact form submission
type MessageRecord struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Message   string
	IP        string
	UserAgent string
	Notified  bool
	Read      bool
	CreatedAt time.Time
}

// SaveMessage stores a contact submission.
func (s *Store) SaveMessage(ctx context.Context, m *MessageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, message, ip, user_agent, notified, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Name, m.Email, m.Subject, m.Message, m.IP, m.UserAgent, boolInt(m.Notified), boolInt(m.Read), toMillis(m.CreatedAt))
	return wrapWriteErr(err)
}

// SetMessageNotified records whether the owner notification went out.
func (s *Store) SetMessageNotified(ctx context.Context, id string, notified bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE contact_messages SET notified = ? WHERE id = ?`, boolInt(notified), id)
	return err
}

// ListMessages returns submissions newest first.
func (s *Store) ListMessages(ctx context.Context, unreadOnly bool, limit, offset int) ([]*MessageRecord, error) {
	query := `
		SELECT id, name, email, subject, message, ip, user_agent, notified, read, created_at
		FROM contact_messages`
	if unreadOnly {
		query += ` WHERE read = 0`
	}
	query += ` ORDER BY created_at DESC`

	var args []any
	query += limitClause(ListFilter{Limit: limit, Offset: offset}, &args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*MessageRecord
	for rows.Next() {
		var m MessageRecord
		var notified, read int
		var created int64
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.IP, &m.UserAgent, &notified, &read, &created); err != nil {
			return nil, err
		}
		m.Notified = notified == 1
		m.Read = read == 1
		m.CreatedAt = fromMillis(created)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// MarkMessageRead flags a submission as read.
func (s *Store) MarkMessageRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE contact_messages SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes a submission by ID
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "contact_messages", id)
}

// CountUnreadMessages returns how many submissions have not been read.
func (s *Store) CountUnreadMessages(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_messages WHERE read = 0`).Scan(&n)
	return n, err
}
