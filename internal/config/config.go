// Package config loads the bot's configuration from JABBEROPS_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opsbotio/jabberops/internal/session"
)

// Flood limiter defaults: ten commands burst, one replenished per six
// seconds.
const (
	defaultFloodCapacity = 10
	defaultFloodRefill   = 1
	defaultFloodPeriod   = 6 * time.Second

	defaultResource = "jabberops"
)

// Config holds everything the bot needs to start.
type Config struct {
	// XMPPHost is the server address as "host:port".
	XMPPHost string
	// JID is the bot's bare JID (user@domain).
	JID      string
	Password string
	Resource string
	UseTLS   bool

	// Users is the static login table scripts authenticate against.
	Users map[string]string

	IdleTimeout time.Duration
	WarnBefore  time.Duration
	ScanPeriod  time.Duration

	FloodCapacity int
	FloodRefill   int
	FloodPeriod   time.Duration
}

// Load reads the environment and validates the result.
//
// Required: JABBEROPS_XMPP_HOST, JABBEROPS_JID, JABBEROPS_PASSWORD.
// Optional: JABBEROPS_RESOURCE, JABBEROPS_NO_TLS=1, JABBEROPS_USERS
// ("alice:secret,bob:hunter2"), JABBEROPS_IDLE_TIMEOUT,
// JABBEROPS_WARN_BEFORE, JABBEROPS_SCAN_PERIOD (Go durations).
func Load() (*Config, error) {
	cfg := &Config{
		XMPPHost:      os.Getenv("JABBEROPS_XMPP_HOST"),
		JID:           os.Getenv("JABBEROPS_JID"),
		Password:      os.Getenv("JABBEROPS_PASSWORD"),
		Resource:      defaultResource,
		UseTLS:        os.Getenv("JABBEROPS_NO_TLS") != "1",
		IdleTimeout:   session.DefaultIdleTimeout,
		WarnBefore:    session.DefaultWarnBefore,
		ScanPeriod:    session.DefaultScanPeriod,
		FloodCapacity: defaultFloodCapacity,
		FloodRefill:   defaultFloodRefill,
		FloodPeriod:   defaultFloodPeriod,
	}

	if v := os.Getenv("JABBEROPS_RESOURCE"); v != "" {
		cfg.Resource = v
	}

	users, err := parseUsers(os.Getenv("JABBEROPS_USERS"))
	if err != nil {
		return nil, err
	}
	cfg.Users = users

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"JABBEROPS_IDLE_TIMEOUT", &cfg.IdleTimeout},
		{"JABBEROPS_WARN_BEFORE", &cfg.WarnBefore},
		{"JABBEROPS_SCAN_PERIOD", &cfg.ScanPeriod},
		{"JABBEROPS_FLOOD_PERIOD", &cfg.FloodPeriod},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and timing sanity.
func (c *Config) Validate() error {
	if c.XMPPHost == "" {
		return fmt.Errorf("xmpp host is required (JABBEROPS_XMPP_HOST)")
	}
	if c.JID == "" {
		return fmt.Errorf("jid is required (JABBEROPS_JID)")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required (JABBEROPS_PASSWORD)")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %s", c.IdleTimeout)
	}
	if c.WarnBefore <= 0 || c.WarnBefore >= c.IdleTimeout {
		return fmt.Errorf("warn-before must be positive and shorter than the idle timeout, got %s", c.WarnBefore)
	}
	if c.ScanPeriod <= 0 {
		return fmt.Errorf("scan period must be positive, got %s", c.ScanPeriod)
	}
	return nil
}

// parseUsers parses "user:password" pairs separated by commas.
func parseUsers(raw string) (map[string]string, error) {
	users := make(map[string]string)
	if raw == "" {
		return users, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, password, ok := strings.Cut(pair, ":")
		if !ok || user == "" || password == "" {
			return nil, fmt.Errorf("invalid JABBEROPS_USERS entry %q, want user:password", pair)
		}
		users[user] = password
	}
	return users, nil
}
