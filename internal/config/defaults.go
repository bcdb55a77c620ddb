package config

import (
	"os"
	"time"
)

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Environment:     "development",
			BaseURL:         "http://localhost:8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "~/.portfolio/portfolio.db",
		},
		Auth: AuthConfig{
			CookieName:         "portfolio_session",
			SessionTTL:         7 * 24 * time.Hour,
			LoginRatePerMinute: 5,
		},
		Site: SiteConfig{
			Owner:   "Portfolio Owner",
			Title:   "Portfolio",
			Tagline: "Software engineer building reliable web systems.",
			About:   []string{"I design, build and operate web applications end to end."},
			Skills: []SkillGroup{
				{Name: "Languages", Items: []string{"Go", "TypeScript", "SQL"}},
				{Name: "Infrastructure", Items: []string{"Linux", "Docker", "SQLite", "PostgreSQL"}},
			},
		},
		Contact: ContactConfig{
			Provider:    "log",
			Endpoint:    "https://api.resend.com/emails",
			RatePerHour: 5,
		},
		Chat: ChatConfig{
			Provider:        "none",
			BaseURL:         "https://api.openai.com/v1",
			Temperature:     0.4,
			MaxMessageChars: 1000,
			MaxHistory:      12,
			RatePerMinute:   10,
			CacheTTL:        10 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			RetentionDays: 365,
			IgnoreBots:    true,
		},
		Edge: EdgeConfig{
			Addr:         ":8787",
			DatabasePath: "~/.portfolio/edge.db",
			AllowOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// WriteDefault writes a commented starter configuration to path.
func WriteDefault(path string) error {
	content := `# Portfolio configuration
# Every key can be overridden with PORTFOLIO_<SECTION>_<KEY>, e.g. PORTFOLIO_SERVER_ADDR.

server:
  addr: ":8080"
  environment: development   # "production" switches logging and gin to release mode
  base_url: http://localhost:8080

database:
  driver: sqlite3
  path: ~/.portfolio/portfolio.db

auth:
  session_ttl: 168h
  secure_cookie: false       # set true behind HTTPS

site:
  owner: Your Name
  title: Your Name - Software Engineer
  tagline: Software engineer building reliable web systems.
  email: you@example.com
  about:
    - First paragraph about you.
  skills:
    - name: Languages
      items: [Go, TypeScript, SQL]
  links:
    - label: GitHub
      url: https://github.com/you

contact:
  provider: log              # "log" or "http" (Resend-compatible API)
  # api_key comes from RESEND_API_KEY
  from: portfolio@example.com
  to: you@example.com

chat:
  provider: none             # "openai", "gemini" or "none"
  # api_key comes from OPENAI_API_KEY or GEMINI_API_KEY
  # model: gpt-4o-mini      # empty picks the provider default

analytics:
  enabled: true
  retention_days: 365

edge:
  addr: ":8787"
  # api_token comes from PORTFOLIO_EDGE_TOKEN

logging:
  level: info
  json: false
`
	return os.WriteFile(path, []byte(content), 0644)
}
