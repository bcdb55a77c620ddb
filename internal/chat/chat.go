// Package chat answers visitor questions about the site owner through an
// external completion API, grounded on the site's profile and content.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/content"
	"github.com/lukasito25/portfolio/internal/dedup"
	"github.com/lukasito25/portfolio/internal/validate"
)

// Roles a message can carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrInvalid is matched by malformed conversations.
	ErrInvalid = validate.ErrInvalid
	// ErrUnavailable is returned when no completion provider is configured.
	ErrUnavailable = errors.New("chat is not available")
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a conversation to answer. The last message is the visitor's
// question.
type Request struct {
	Messages []Message `json:"messages"`
}

// Completer produces the assistant's next message.
// Implementations: OpenAIClient, GeminiClient
type Completer interface {
	Complete(ctx context.Context, system string, msgs []Message) (string, error)
}

// Catalog supplies the published content the assistant may talk about.
// Implementations: content.Service
type Catalog interface {
	ListProjects(ctx context.Context, opts content.ListOptions) ([]*content.Project, error)
	ListPosts(ctx context.Context, opts content.ListOptions) ([]*content.Post, error)
}

// Options tune validation and caching.
type Options struct {
	MaxMessageChars int
	MaxHistory      int
	CacheTTL        time.Duration
}

// Service answers chat requests.
type Service struct {
	completer Completer
	catalog   Catalog
	profile   Profile
	opts      Options
	log       *zap.Logger

	prompts *dedup.Group[string]
	answers *dedup.Group[string]
}

// NewService creates a chat service. A nil completer makes every Reply
// return ErrUnavailable.
func NewService(completer Completer, catalog Catalog, profile Profile, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxMessageChars <= 0 {
		opts.MaxMessageChars = 1000
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 12
	}
	return &Service{
		completer: completer,
		catalog:   catalog,
		profile:   profile,
		opts:      opts,
		log:       log,
		prompts:   dedup.New[string](opts.CacheTTL),
		answers:   dedup.New[string](opts.CacheTTL),
	}
}

// Available reports whether a completion provider is configured.
func (s *Service) Available() bool {
	return s.completer != nil
}

// Reply validates the conversation, trims it to the configured history
// and returns the assistant's answer. Identical conversations share one
// upstream call and a cached answer.
func (s *Service) Reply(ctx context.Context, req Request) (Message, error) {
	if s.completer == nil {
		return Message{}, ErrUnavailable
	}
	msgs, err := s.prepare(req.Messages)
	if err != nil {
		return Message{}, err
	}

	system, _, err := s.prompts.Do(ctx, "system", s.buildPrompt)
	if err != nil {
		return Message{}, fmt.Errorf("failed to build prompt: %w", err)
	}

	parts := make([]string, 0, 2*len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Role, m.Content)
	}
	answer, shared, err := s.answers.Do(ctx, dedup.Key(parts...), func(ctx context.Context) (string, error) {
		out, err := s.completer.Complete(ctx, system, msgs)
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", errors.New("empty completion")
		}
		return out, nil
	})
	if err != nil {
		return Message{}, fmt.Errorf("completion failed: %w", err)
	}
	s.log.Debug("chat reply", zap.Int("turns", len(msgs)), zap.Bool("shared", shared))
	return Message{Role: RoleAssistant, Content: answer}, nil
}

// Refresh drops the cached prompt context and answers, e.g. after content
// changes.
func (s *Service) Refresh() {
	s.prompts.Purge()
	s.answers.Purge()
}

func (s *Service) prepare(in []Message) ([]Message, error) {
	if len(in) == 0 {
		return nil, validate.Field("messages", "is required")
	}
	msgs := make([]Message, len(in))
	for i, m := range in {
		m.Role = strings.ToLower(strings.TrimSpace(m.Role))
		m.Content = strings.TrimSpace(m.Content)
		field := "messages[" + strconv.Itoa(i) + "]"
		switch {
		case m.Role != RoleUser && m.Role != RoleAssistant:
			return nil, validate.Field(field, "role must be user or assistant")
		case m.Content == "":
			return nil, validate.Field(field, "content is required")
		case utf8.RuneCountInString(m.Content) > s.opts.MaxMessageChars:
			return nil, validate.Field(field, fmt.Sprintf("content must be at most %d characters", s.opts.MaxMessageChars))
		case i > 0 && msgs[i-1].Role == m.Role:
			return nil, validate.Field(field, "roles must alternate")
		}
		msgs[i] = m
	}
	if msgs[len(msgs)-1].Role != RoleUser {
		return nil, validate.Field("messages", "last message must be from the user")
	}

	if len(msgs) > s.opts.MaxHistory {
		msgs = msgs[len(msgs)-s.opts.MaxHistory:]
	}
	// Providers expect the conversation to open with the user.
	if msgs[0].Role == RoleAssistant {
		msgs = msgs[1:]
	}
	return msgs, nil
}
