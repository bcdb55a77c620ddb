package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.BaseURL != "" {
		if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.base_url %q is not an absolute URL", c.Server.BaseURL))
		}
	}

	switch c.Database.Driver {
	case "sqlite3", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite3 or sqlite", c.Database.Driver))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.Auth.CookieName == "" {
		errs = append(errs, errors.New("auth.cookie_name is required"))
	}

	switch c.Contact.Provider {
	case "log":
	case "http":
		if c.Contact.Endpoint == "" {
			errs = append(errs, errors.New("contact.endpoint is required for the http provider"))
		}
		if c.Contact.To == "" {
			errs = append(errs, errors.New("contact.to is required for the http provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("contact.provider %q must be log or http", c.Contact.Provider))
	}

	switch c.Chat.Provider {
	case "none":
	case "openai", "gemini":
		if c.Chat.APIKey == "" {
			errs = append(errs, fmt.Errorf("chat.api_key is required for the %s provider", c.Chat.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("chat.provider %q must be openai, gemini or none", c.Chat.Provider))
	}
	if c.Chat.MaxMessageChars <= 0 || c.Chat.MaxHistory <= 0 {
		errs = append(errs, errors.New("chat.max_message_chars and chat.max_history must be positive"))
	}

	if c.Analytics.RetentionDays < 0 {
		errs = append(errs, errors.New("analytics.retention_days cannot be negative"))
	}

	return errors.Join(errs...)
}
