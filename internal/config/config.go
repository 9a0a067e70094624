// Package config loads the tool configuration from environment variables
// (prefix MAILEXPORT_), an optional .env file and built-in defaults, and
// owns the on-disk data layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FetchConfig tunes the retrieval engine.
type FetchConfig struct {
	PageSize    int64         // ids per listing page, capped at the API maximum of 500
	ListRetries int           // attempts per listing call
	RetryDelay  time.Duration // pause between listing attempts
	PageDelay   time.Duration // courtesy pause between pages
	IMAPAddr    string        // TLS address for direct-secret accounts
	SentMailbox string        // IMAP sent-items mailbox
}

// ExportConfig tunes the spreadsheet sink.
type ExportConfig struct {
	Order string // "asc" or "desc" sort on sent_at
}

// LogConfig tunes logging.
type LogConfig struct {
	Level       string
	Development bool
}

type Config struct {
	DataDir string
	Fetch   FetchConfig
	Export  ExportConfig
	Log     LogConfig
}

// Load reads configuration with precedence env > .env file > defaults.
func Load() (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("mailexport")
	v.AutomaticEnv()

	v.SetDefault("data_dir", "data")
	v.SetDefault("page_size", 500)
	v.SetDefault("list_retries", 3)
	v.SetDefault("retry_delay", "1s")
	v.SetDefault("page_delay", "100ms")
	v.SetDefault("imap_addr", "imap.gmail.com:993")
	v.SetDefault("sent_mailbox", "[Gmail]/Sent Mail")
	v.SetDefault("export_order", "asc")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", true)

	cfg := &Config{
		DataDir: v.GetString("data_dir"),
		Fetch: FetchConfig{
			PageSize:    v.GetInt64("page_size"),
			ListRetries: v.GetInt("list_retries"),
			RetryDelay:  v.GetDuration("retry_delay"),
			PageDelay:   v.GetDuration("page_delay"),
			IMAPAddr:    v.GetString("imap_addr"),
			SentMailbox: v.GetString("sent_mailbox"),
		},
		Export: ExportConfig{
			Order: v.GetString("export_order"),
		},
		Log: LogConfig{
			Level:       v.GetString("log_level"),
			Development: v.GetBool("log_development"),
		},
	}

	if cfg.Fetch.PageSize < 1 || cfg.Fetch.PageSize > 500 {
		return nil, fmt.Errorf("page_size must be within 1..500, got %d", cfg.Fetch.PageSize)
	}
	if cfg.Fetch.ListRetries < 1 {
		return nil, fmt.Errorf("list_retries must be at least 1, got %d", cfg.Fetch.ListRetries)
	}
	if cfg.Export.Order != "asc" && cfg.Export.Order != "desc" {
		return nil, fmt.Errorf("export_order must be asc or desc, got %q", cfg.Export.Order)
	}
	return cfg, nil
}

func (c *Config) TokensDir() string  { return filepath.Join(c.DataDir, "tokens") }
func (c *Config) ExportsDir() string { return filepath.Join(c.DataDir, "exports") }
func (c *Config) ConfigDir() string  { return filepath.Join(c.DataDir, "config") }

// AccountsFile is the flat JSON account list.
func (c *Config) AccountsFile() string {
	return filepath.Join(c.ConfigDir(), "email_accounts.json")
}

// CredentialsFile is the OAuth client secret for the delegated flow.
func (c *Config) CredentialsFile() string {
	return filepath.Join(c.ConfigDir(), "credentials.json")
}

// SecretsDir backs the keyring's file fallback.
func (c *Config) SecretsDir() string {
	return filepath.Join(c.ConfigDir(), "secrets")
}

// EnsureDirs creates the data directory tree.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.TokensDir(), c.ExportsDir(), c.ConfigDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
