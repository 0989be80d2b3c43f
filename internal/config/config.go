package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppLogLevel   slog.Level
	AppLogFormat  string
	DebugMode     bool
	DebugDataPath string

	// SMTP dialog
	EhloHostname string
	MailFrom     string
	SMTPTimeout  time.Duration
	SMTPGrace    time.Duration
	SMTPPort     int
	MaxMxHosts   int
	DNSTimeout   time.Duration

	// Port reachability diagnostic
	PortProbeHost     string
	PortProbeTimeout  time.Duration
	PortProbeDisabled bool

	// Batch + admission
	BatchMax              int
	RateLimitWindow       time.Duration
	RateLimitMax          int
	RateLimitSweep        time.Duration
	RedisURL              string
	DisposableDomainsPath string

	// Verdict policy
	VerdictPolicyPath  string
	VerdictPolicyQuery string

	// HTTP service
	HTTPAddr    string
	CORSOrigins []string
}

const (
	DefaultMailFrom      = "verify@mail-check.t21.dev"
	DefaultPortProbeHost = "gmail-smtp-in.l.google.com"
	DefaultPolicyQuery   = "data.email_reachability.result"
)

func New() (*Config, error) {
	cfg := Config{
		AppLogLevel:           slog.LevelInfo,
		AppLogFormat:          os.Getenv("APP_LOG_FORMAT"),
		DebugMode:             os.Getenv("APP_DEBUG_MODE") == "true",
		DebugDataPath:         os.Getenv("APP_DEBUG_DATA_PATH"),
		EhloHostname:          os.Getenv("APP_EHLO_HOSTNAME"),
		MailFrom:              os.Getenv("APP_MAIL_FROM"),
		SMTPTimeout:           10 * time.Second,
		SMTPGrace:             3 * time.Second,
		SMTPPort:              25,
		MaxMxHosts:            3,
		DNSTimeout:            5 * time.Second,
		PortProbeHost:         os.Getenv("APP_PORT_PROBE_HOST"),
		PortProbeTimeout:      5 * time.Second,
		PortProbeDisabled:     os.Getenv("APP_PORT_PROBE_DISABLED") == "true",
		BatchMax:              100,
		RateLimitWindow:       10 * time.Minute,
		RateLimitMax:          100,
		RateLimitSweep:        time.Minute,
		RedisURL:              os.Getenv("APP_REDIS_URL"),
		DisposableDomainsPath: os.Getenv("APP_DISPOSABLE_DOMAINS_PATH"),
		VerdictPolicyPath:     os.Getenv("APP_VERDICT_POLICY_PATH"),
		VerdictPolicyQuery:    os.Getenv("APP_VERDICT_POLICY_QUERY"),
		HTTPAddr:              os.Getenv("APP_HTTP_ADDR"),
		CORSOrigins:           []string{"*"},
	}

	if levelStr := os.Getenv("APP_LOG_LEVEL"); levelStr != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelStr)); err == nil {
			cfg.AppLogLevel = level
		}
	}

	// deprecated
	if cfg.EhloHostname == "" && os.Getenv("EHLO_HOSTNAME") != "" {
		cfg.EhloHostname = os.Getenv("EHLO_HOSTNAME")
		slog.Warn("deprecated env var used", "old", "EHLO_HOSTNAME", "new", "APP_EHLO_HOSTNAME")
	}
	if cfg.MailFrom == "" && os.Getenv("MAIL_FROM") != "" {
		cfg.MailFrom = os.Getenv("MAIL_FROM")
		slog.Warn("deprecated env var used", "old", "MAIL_FROM", "new", "APP_MAIL_FROM")
	}

	if cfg.EhloHostname == "" {
		cfg.EhloHostname = defaultHostname()
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = DefaultMailFrom
	}
	if cfg.PortProbeHost == "" {
		cfg.PortProbeHost = DefaultPortProbeHost
	}
	if cfg.VerdictPolicyQuery == "" {
		cfg.VerdictPolicyQuery = DefaultPolicyQuery
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":3001"
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"APP_SMTP_TIMEOUT", &cfg.SMTPTimeout},
		{"APP_SMTP_GRACE", &cfg.SMTPGrace},
		{"APP_DNS_TIMEOUT", &cfg.DNSTimeout},
		{"APP_PORT_PROBE_TIMEOUT", &cfg.PortProbeTimeout},
		{"APP_RATE_LIMIT_WINDOW", &cfg.RateLimitWindow},
		{"APP_RATE_LIMIT_SWEEP", &cfg.RateLimitSweep},
	}
	for _, d := range durations {
		if err := parseDuration(d.env, d.dst); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"APP_SMTP_PORT", &cfg.SMTPPort},
		{"APP_MAX_MX_HOSTS", &cfg.MaxMxHosts},
		{"APP_BATCH_MAX", &cfg.BatchMax},
		{"APP_RATE_LIMIT_MAX", &cfg.RateLimitMax},
	}
	for _, i := range ints {
		if err := parseInt(i.env, i.dst); err != nil {
			return nil, err
		}
	}

	if originsStr := strings.TrimSpace(os.Getenv("APP_CORS_ORIGINS")); originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for i, o := range origins {
			origins[i] = strings.TrimSpace(o)
		}
		cfg.CORSOrigins = origins
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MaxCheckDuration bounds one address: the MX lookup, the port diagnostic,
// every MX session and the catch-all session, each up to its hard deadline.
func (c *Config) MaxCheckDuration() time.Duration {
	session := c.SMTPTimeout + c.SMTPGrace
	return c.DNSTimeout + c.PortProbeTimeout + time.Duration(c.MaxMxHosts+1)*session
}

// Validate checks that required configuration fields are set and valid
func (c *Config) Validate() error {
	if c.EhloHostname == "" {
		return errors.New("APP_EHLO_HOSTNAME is required")
	}
	if !strings.Contains(c.MailFrom, "@") {
		return fmt.Errorf("APP_MAIL_FROM must be an email address: %q", c.MailFrom)
	}
	if c.SMTPTimeout <= 0 {
		return errors.New("APP_SMTP_TIMEOUT must be positive")
	}
	if c.SMTPGrace < 0 {
		return errors.New("APP_SMTP_GRACE must not be negative")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("APP_SMTP_PORT out of range: %d", c.SMTPPort)
	}
	if c.MaxMxHosts <= 0 {
		return errors.New("APP_MAX_MX_HOSTS must be positive")
	}
	if c.DNSTimeout <= 0 || c.PortProbeTimeout <= 0 {
		return errors.New("APP_DNS_TIMEOUT and APP_PORT_PROBE_TIMEOUT must be positive")
	}
	if c.BatchMax <= 0 {
		return errors.New("APP_BATCH_MAX must be positive")
	}
	if c.RateLimitWindow <= 0 || c.RateLimitMax <= 0 {
		return errors.New("APP_RATE_LIMIT_WINDOW and APP_RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimitSweep <= 0 {
		return errors.New("APP_RATE_LIMIT_SWEEP must be positive")
	}
	if strings.HasPrefix(c.DisposableDomainsPath, "s3://") {
		rest := strings.TrimPrefix(c.DisposableDomainsPath, "s3://")
		if bucket, key, ok := strings.Cut(rest, "/"); !ok || bucket == "" || key == "" {
			return fmt.Errorf("invalid APP_DISPOSABLE_DOMAINS_PATH: %q", c.DisposableDomainsPath)
		}
	}

	return nil
}

func defaultHostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "[127.0.0.1]"
}

func parseDuration(env string, dst *time.Duration) error {
	s := os.Getenv(env)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", env, err)
	}
	*dst = d
	return nil
}

func parseInt(env string, dst *int) error {
	s := os.Getenv(env)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", env, err)
	}
	*dst = n
	return nil
}
