package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/chat"
	"github.com/lukasito25/portfolio/internal/config"
	"github.com/lukasito25/portfolio/internal/contact"
	"github.com/lukasito25/portfolio/internal/content"
	"github.com/lukasito25/portfolio/internal/metrics"
	"github.com/lukasito25/portfolio/internal/web"
)

const (
	repoStatsTimeout = 5 * time.Second
	repoStatsTTL     = 30 * time.Minute
)

func serveCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Run the portfolio web server until interrupted.

Examples:
  portfolio serve
  portfolio serve --addr :9000
  PORTFOLIO_SERVER_ENVIRONMENT=production portfolio serve -c /etc/portfolio.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := openApp(cfg, "portfolio")
	if err != nil {
		return err
	}
	defer a.Close()

	completer, err := newCompleter(ctx, cfg.Chat)
	if err != nil {
		return fmt.Errorf("failed to create chat client: %w", err)
	}
	if completer == nil {
		a.log.Info("chat assistant disabled")
	}

	srv, err := web.NewServer(web.Deps{
		Config:    cfg,
		Log:       a.log,
		Metrics:   metrics.New(),
		DB:        a.store,
		Content:   a.content,
		RepoStats: content.NewRepoStatsClient(&http.Client{Timeout: repoStatsTimeout}, repoStatsTTL),
		Auth:      a.auth,
		Analytics: a.tracker,
		Contact: contact.NewService(a.store, newMailer(cfg.Contact, a.log), contact.Options{
			NotifyTo: cfg.Contact.To,
			From:     cfg.Contact.From,
			SiteName: cfg.Site.Title,
		}, a.log),
		Chat: chat.NewService(completer, a.content, profileFrom(cfg.Site), chat.Options{
			MaxMessageChars: cfg.Chat.MaxMessageChars,
			MaxHistory:      cfg.Chat.MaxHistory,
			CacheTTL:        cfg.Chat.CacheTTL,
		}, a.log),
	})
	if err != nil {
		return err
	}

	if ok, err := a.auth.HasUsers(ctx); err == nil && !ok {
		a.log.Warn("no admin account exists; create one with `portfolio admin create`")
	}

	a.log.Info("starting portfolio",
		zap.String("addr", cfg.Server.Addr),
		zap.String("database", cfg.Database.Path),
		zap.String("chat", cfg.Chat.Provider),
		zap.Bool("analytics", cfg.Analytics.Enabled),
	)
	return srv.Run(ctx)
}

// newCompleter returns the configured completion client, or nil when the
// assistant is disabled.
func newCompleter(ctx context.Context, cfg config.ChatConfig) (chat.Completer, error) {
	switch cfg.Provider {
	case "openai":
		return chat.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature), nil
	case "gemini":
		client, err := chat.NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, nil
	}
}

func newMailer(cfg config.ContactConfig, log *zap.Logger) contact.Mailer {
	if cfg.Provider == "http" {
		return contact.NewHTTPMailer(cfg.Endpoint, cfg.APIKey)
	}
	return contact.NewLogMailer(log)
}

func profileFrom(site config.SiteConfig) chat.Profile {
	p := chat.Profile{
		Owner:    site.Owner,
		Title:    site.Title,
		Tagline:  site.Tagline,
		Email:    site.Email,
		Location: site.Location,
		About:    site.About,
	}
	for _, group := range site.Skills {
		p.Skills = append(p.Skills, chat.SkillGroup{Name: group.Name, Items: group.Items})
	}
	return p
}
