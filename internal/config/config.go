package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	SES         SESConfig         `yaml:"ses"`
	Captcha     CaptchaConfig     `yaml:"captcha"`
	ContactSync ContactSyncConfig `yaml:"contact_sync"`
	Referral    ReferralConfig    `yaml:"referral"`
	Sequences   SequencesConfig   `yaml:"sequences"`
	Assets      AssetsConfig      `yaml:"assets"`
	Assist      AssistConfig      `yaml:"assist"`
	RSS         RSSConfig         `yaml:"rss"`
	Auth        AuthConfig        `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
	// SiteURL is the public site the confirm/unsubscribe redirects land on.
	SiteURL string `yaml:"site_url"`
}

// GetHost returns the bind host, defaulting to all interfaces.
func (s ServerConfig) GetHost() string {
	if s.Host == "" {
		return "0.0.0.0"
	}
	return s.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for rate limiting and caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES credentials for transactional email.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	FromName  string `yaml:"from_name"`
	FromEmail string `yaml:"from_email"`
}

// CaptchaConfig holds the CAPTCHA verification provider settings.
type CaptchaConfig struct {
	Enabled   bool   `yaml:"enabled"`
	VerifyURL string `yaml:"verify_url"`
	Secret    string `yaml:"secret"`
}

// ContactSyncConfig holds the external contact/segment sync service settings.
type ContactSyncConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// ReferralConfig holds milestone notification settings.
type ReferralConfig struct {
	// AdminEmail receives milestone alerts. Empty means admin alerts are
	// skipped (with a recorded reason), never an error.
	AdminEmail   string `yaml:"admin_email"`
	DashboardTTL int    `yaml:"dashboard_cache_seconds"`
}

// SequencesConfig holds drip sequence runner settings.
type SequencesConfig struct {
	Enabled             bool `yaml:"enabled"`
	TickIntervalSeconds int  `yaml:"tick_interval_seconds"`
}

// AssetsConfig holds S3 settings for signup page assets.
type AssetsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	CDNDomain string `yaml:"cdn_domain"`
}

// AssistConfig holds AI content assist settings (AWS Bedrock).
type AssistConfig struct {
	Enabled bool   `yaml:"enabled"`
	ModelID string `yaml:"model_id"`
	Region  string `yaml:"region"`
}

// RSSConfig holds the RSS-to-campaign poller settings.
type RSSConfig struct {
	Enabled             bool `yaml:"enabled"`
	PollIntervalMinutes int  `yaml:"poll_interval_minutes"`
}

// AuthConfig holds Google OAuth settings for the admin surface.
type AuthConfig struct {
	Enabled            bool   `yaml:"enabled"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	AllowedDomain      string `yaml:"allowed_domain"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       int    `yaml:"cookie_max_age"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Server.SiteURL == "" {
		cfg.Server.SiteURL = cfg.Server.BaseURL
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.SES.FromName == "" {
		cfg.SES.FromName = "Inkwell"
	}
	if cfg.Captcha.VerifyURL == "" {
		cfg.Captcha.VerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	}
	if cfg.Referral.DashboardTTL == 0 {
		cfg.Referral.DashboardTTL = 60
	}
	if cfg.Sequences.TickIntervalSeconds == 0 {
		cfg.Sequences.TickIntervalSeconds = 30
	}
	if cfg.Assist.ModelID == "" {
		cfg.Assist.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Assist.Region == "" {
		cfg.Assist.Region = "us-east-1"
	}
	if cfg.RSS.PollIntervalMinutes == 0 {
		cfg.RSS.PollIntervalMinutes = 5
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "inkwell_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 86400
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is loaded first so secrets can live there
// locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("FROM_EMAIL"); v != "" {
		cfg.SES.FromEmail = v
	}
	if v := os.Getenv("CAPTCHA_SECRET"); v != "" {
		cfg.Captcha.Secret = v
		cfg.Captcha.Enabled = true
	}
	if v := os.Getenv("CONTACT_SYNC_API_KEY"); v != "" {
		cfg.ContactSync.APIKey = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Referral.AdminEmail = v
	}
	if v := os.Getenv("ASSETS_BUCKET"); v != "" {
		cfg.Assets.Bucket = v
		cfg.Assets.Enabled = true
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Auth.GoogleClientSecret = v
	}

	return cfg, nil
}
