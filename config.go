package authgate

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

var _ Config = (*EnvConfig)(nil)

// EnvConfig is the environment-backed Config implementation. Loaded once at
// startup and treated as immutable afterwards.
type EnvConfig struct {
	ServiceBaseURL   string
	AnonKey          string
	ServiceKey       string
	WebhookURL       string
	RequestTimeout   time.Duration
	ClockSkew        time.Duration
	RefreshThreshold time.Duration
	ServerPort       string
	SignInPerMinute  int
}

// LoadConfigFromEnv reads configuration from the environment. Required
// variables are collected so one error names everything that is missing. The
// service key is deliberately optional here: its absence only fails the
// role-assignment operation, at request time, with a 500.
func LoadConfigFromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{}

	var missing []string

	cfg.ServiceBaseURL = os.Getenv("AUTHGATE_SERVICE_URL")
	if cfg.ServiceBaseURL == "" {
		missing = append(missing, "AUTHGATE_SERVICE_URL")
	}

	cfg.AnonKey = os.Getenv("AUTHGATE_ANON_KEY")
	if cfg.AnonKey == "" {
		missing = append(missing, "AUTHGATE_ANON_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.ServiceKey = os.Getenv("AUTHGATE_SERVICE_KEY")
	cfg.WebhookURL = os.Getenv("AUTHGATE_WEBHOOK_URL")
	cfg.RequestTimeout = getEnvDuration("AUTHGATE_REQUEST_TIMEOUT", 10*time.Second)
	cfg.ClockSkew = getEnvDuration("AUTHGATE_CLOCK_SKEW", DefaultClockSkew)
	cfg.RefreshThreshold = getEnvDuration("AUTHGATE_REFRESH_THRESHOLD", DefaultRefreshThreshold)
	cfg.ServerPort = getEnvString("AUTHGATE_PORT", "8080")
	cfg.SignInPerMinute = getEnvInt("AUTHGATE_SIGNIN_PER_MINUTE", 30)

	return cfg, nil
}

func (c *EnvConfig) GetServiceBaseURL() string          { return c.ServiceBaseURL }
func (c *EnvConfig) GetAnonKey() string                 { return c.AnonKey }
func (c *EnvConfig) GetServiceKey() string              { return c.ServiceKey }
func (c *EnvConfig) GetWebhookURL() string              { return c.WebhookURL }
func (c *EnvConfig) GetRequestTimeout() time.Duration   { return c.RequestTimeout }
func (c *EnvConfig) GetClockSkew() time.Duration        { return c.ClockSkew }
func (c *EnvConfig) GetRefreshThreshold() time.Duration { return c.RefreshThreshold }

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
