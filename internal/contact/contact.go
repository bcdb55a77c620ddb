// Package contact handles contact form submissions: validation, storage
// and owner notification.
package contact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/storage"
	"github.com/lukasito25/portfolio/internal/validate"
)

// ErrInvalid is matched by validation failures.
var ErrInvalid = validate.ErrInvalid

// Store is the persistence the service needs.
type Store interface {
	SaveMessage(ctx context.Context, m *storage.MessageRecord) error
	SetMessageNotified(ctx context.Context, id string, notified bool) error
	ListMessages(ctx context.Context, unreadOnly bool, limit, offset int) ([]*storage.MessageRecord, error)
	MarkMessageRead(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, id string) error
	CountUnreadMessages(ctx context.Context) (int, error)
}

// Submission is what the contact form posts. Website is a honeypot that
// humans never see.
type Submission struct {
	Name    string `json:"name" form:"name" validate:"required,max=100"`
	Email   string `json:"email" form:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" form:"subject" validate:"max=150"`
	Message string `json:"message" form:"message" validate:"required,min=10,max=5000"`
	Website string `json:"website" form:"website"`
}

// Meta describes the submitting client.
type Meta struct {
	IP        string
	UserAgent string
}

// Message is a stored submission.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	IP        string    `json:"ip,omitempty"`
	Notified  bool      `json:"notified"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Options configure notifications.
type Options struct {
	// NotifyTo receives owner notifications.
	NotifyTo string
	// From is the sender address of notifications.
	From string
	// SiteName prefixes notification subjects.
	SiteName string
}

// Service stores submissions and notifies the owner.
type Service struct {
	store  Store
	mailer Mailer
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a contact service.
func NewService(store Store, mailer Mailer, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, mailer: mailer, opts: opts, log: log, now: time.Now}
}

// Submit validates and stores a submission, then notifies the owner.
// A filled honeypot returns (nil, nil): the sender sees success, nothing
// is stored. Notification failures are logged and leave the message
// saved with Notified false.
func (s *Service) Submit(ctx context.Context, sub Submission, meta Meta) (*Message, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.Subject = strings.TrimSpace(sub.Subject)
	sub.Message = strings.TrimSpace(sub.Message)

	if strings.TrimSpace(sub.Website) != "" {
		s.log.Info("contact honeypot triggered", zap.String("ip", meta.IP))
		return nil, nil
	}
	if err := validate.Struct(sub); err != nil {
		return nil, err
	}

	rec := &storage.MessageRecord{
		ID:        storage.GenerateID(),
		Name:      sub.Name,
		Email:     sub.Email,
		Subject:   sub.Subject,
		Message:   sub.Message,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	s.log.Info("contact message received", zap.String("id", rec.ID))

	if err := s.mailer.Send(ctx, s.notification(rec)); err != nil {
		s.log.Error("failed to send contact notification", zap.String("id", rec.ID), zap.Error(err))
	} else {
		rec.Notified = true
		if err := s.store.SetMessageNotified(ctx, rec.ID, true); err != nil {
			s.log.Warn("failed to flag message notified", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	return messageFromRecord(rec), nil
}

// List returns submissions newest first.
func (s *Service) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]*Message, error) {
	recs, err := s.store.ListMessages(ctx, unreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]*Message, len(recs))
	for i, r := range recs {
		out[i] = messageFromRecord(r)
	}
	return out, nil
}

// MarkRead flags a submission as read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.store.MarkMessageRead(ctx, id)
}

// Delete removes a submission.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteMessage(ctx, id)
}

// UnreadCount returns how many submissions are unread.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	return s.store.CountUnreadMessages(ctx)
}

func (s *Service) notification(m *storage.MessageRecord) Email {
	subject := m.Subject
	if subject == "" {
		subject = "New message from " + m.Name
	}
	if s.opts.SiteName != "" {
		subject = "[" + s.opts.SiteName + "] " + subject
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\n", m.Name, m.Email)
	fmt.Fprintf(&b, "Received: %s\n\n", m.CreatedAt.Format(time.RFC1123))
	b.WriteString(m.Message)
	b.WriteString("\n")

	return Email{
		From:    s.opts.From,
		To:      s.opts.NotifyTo,
		ReplyTo: m.Email,
		Subject: subject,
		Text:    b.String(),
	}
}

func messageFromRecord(r *storage.MessageRecord) *Message {
	return &Message{
		ID: r.ID, Name: r.Name, Email: r.Email, Subject: r.Subject, Message: r.Message,
		IP: r.IP, Notified: r.Notified, Read: r.Read, CreatedAt: r.CreatedAt,
	}
}
