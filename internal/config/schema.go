package config

import "time"

// Config represents the full portfolio configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Site      SiteConfig      `yaml:"site" mapstructure:"site"`
	Contact   ContactConfig   `yaml:"contact" mapstructure:"contact"`
	Chat      ChatConfig      `yaml:"chat" mapstructure:"chat"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Edge      EdgeConfig      `yaml:"edge" mapstructure:"edge"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig configures the main HTTP server
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	Environment     string        `yaml:"environment" mapstructure:"environment"`
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`
	TrustedProxies  []string      `yaml:"trusted_proxies" mapstructure:"trusted_proxies"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the SQLite driver and file
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// AuthConfig configures admin sessions
type AuthConfig struct {
	CookieName         string        `yaml:"cookie_name" mapstructure:"cookie_name"`
	SessionTTL         time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	SecureCookie       bool          `yaml:"secure_cookie" mapstructure:"secure_cookie"`
	LoginRatePerMinute int           `yaml:"login_rate_per_minute" mapstructure:"login_rate_per_minute"`
}

// SiteConfig holds the owner profile rendered on the marketing pages
type SiteConfig struct {
	Owner    string       `yaml:"owner" mapstructure:"owner"`
	Title    string       `yaml:"title" mapstructure:"title"`
	Tagline  string       `yaml:"tagline" mapstructure:"tagline"`
	Email    string       `yaml:"email" mapstructure:"email"`
	Location string       `yaml:"location" mapstructure:"location"`
	About    []string     `yaml:"about" mapstructure:"about"`
	Skills   []SkillGroup `yaml:"skills" mapstructure:"skills"`
	Links    []Link       `yaml:"links" mapstructure:"links"`
}

// SkillGroup is a named list of skills for the skills page
type SkillGroup struct {
	Name  string   `yaml:"name" mapstructure:"name"`
	Items []string `yaml:"items" mapstructure:"items"`
}

// Link is a labelled external profile link
type Link struct {
	Label string `yaml:"label" mapstructure:"label"`
	URL   string `yaml:"url" mapstructure:"url"`
}

// ContactConfig configures the contact form notifier
type ContactConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"` // log or http
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	From        string `yaml:"from" mapstructure:"from"`
	To          string `yaml:"to" mapstructure:"to"`
	RatePerHour int    `yaml:"rate_per_hour" mapstructure:"rate_per_hour"`
}

// ChatConfig configures the AI assistant
type ChatConfig struct {
	Provider        string        `yaml:"provider" mapstructure:"provider"` // openai, gemini or none
	APIKey          string        `yaml:"api_key" mapstructure:"api_key"`
	Model           string        `yaml:"model" mapstructure:"model"`
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`
	Temperature     float64       `yaml:"temperature" mapstructure:"temperature"`
	MaxMessageChars int           `yaml:"max_message_chars" mapstructure:"max_message_chars"`
	MaxHistory      int           `yaml:"max_history" mapstructure:"max_history"`
	RatePerMinute   int           `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	CacheTTL        time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// AnalyticsConfig configures page analytics
type AnalyticsConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	RetentionDays int  `yaml:"retention_days" mapstructure:"retention_days"`
	IgnoreBots    bool `yaml:"ignore_bots" mapstructure:"ignore_bots"`
}

// EdgeConfig configures the edge API binary
type EdgeConfig struct {
	Addr         string   `yaml:"addr" mapstructure:"addr"`
	APIToken     string   `yaml:"api_token" mapstructure:"api_token"`
	DatabasePath string   `yaml:"database_path" mapstructure:"database_path"`
	AllowOrigins []string `yaml:"allow_origins" mapstructure:"allow_origins"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
