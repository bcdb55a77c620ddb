package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PORTFOLIO"

// Load builds the configuration from defaults, the YAML file at path (if it
// exists) and PORTFOLIO_* environment variables, in increasing precedence.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Seeding viper with the encoded defaults makes every key known, which
	// AutomaticEnv needs to resolve overrides during Unmarshal.
	base, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applySecretEnv(cfg)
	return cfg, nil
}

// applySecretEnv fills secrets from the conventional provider variables
// when the config leaves them empty.
func applySecretEnv(cfg *Config) {
	if cfg.Chat.APIKey == "" {
		switch cfg.Chat.Provider {
		case "openai":
			cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			cfg.Chat.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if cfg.Contact.APIKey == "" {
		cfg.Contact.APIKey = os.Getenv("RESEND_API_KEY")
	}
	if cfg.Edge.APIToken == "" {
		cfg.Edge.APIToken = os.Getenv("PORTFOLIO_EDGE_TOKEN")
	}
}

// Masked returns a copy with secrets replaced, suitable for printing.
func (c *Config) Masked() *Config {
	out := *c
	out.Chat.APIKey = mask(c.Chat.APIKey)
	out.Contact.APIKey = mask(c.Contact.APIKey)
	out.Edge.APIToken = mask(c.Edge.APIToken)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
