package config

import (
	"net/url"

	"github.com/teranos/skytrace/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Store.URI == "" {
		return errors.New("store.uri cannot be empty")
	}
	if _, err := url.Parse(c.Store.URI); err != nil {
		return errors.Wrap(err, "store.uri is not a valid URI")
	}
	if c.Store.Database == "" {
		return errors.New("store.database cannot be empty")
	}
	if c.Store.Collection == "" {
		return errors.New("store.collection cannot be empty")
	}
	if c.Store.ConnectTimeoutSeconds <= 0 {
		return errors.Newf("store.connect_timeout_seconds must be > 0, got %d", c.Store.ConnectTimeoutSeconds)
	}
	if c.Store.ProbeTimeoutSeconds <= 0 {
		return errors.Newf("store.probe_timeout_seconds must be > 0, got %d", c.Store.ProbeTimeoutSeconds)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxSessions <= 0 {
		return errors.Newf("server.max_sessions must be > 0, got %d", c.Server.MaxSessions)
	}
	if c.Server.PongWaitSeconds <= 0 {
		return errors.Newf("server.pong_wait_seconds must be > 0, got %d", c.Server.PongWaitSeconds)
	}
	// Keepalive pings must go out before the peer's read deadline expires
	if c.Server.PingPeriodSeconds <= 0 || c.Server.PingPeriodSeconds >= c.Server.PongWaitSeconds {
		return errors.Newf("server.ping_period_seconds must be > 0 and < pong_wait_seconds (%d), got %d",
			c.Server.PongWaitSeconds, c.Server.PingPeriodSeconds)
	}
	if c.Server.WriteWaitSeconds <= 0 {
		return errors.Newf("server.write_wait_seconds must be > 0, got %d", c.Server.WriteWaitSeconds)
	}
	if c.Server.MaxMessageBytes <= 0 {
		return errors.Newf("server.max_message_bytes must be > 0, got %d", c.Server.MaxMessageBytes)
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return errors.Newf("server.shutdown_timeout_seconds must be > 0, got %d", c.Server.ShutdownTimeoutSeconds)
	}

	if c.Query.MailboxSize <= 0 {
		return errors.Newf("query.mailbox_size must be > 0, got %d", c.Query.MailboxSize)
	}
	if c.Query.TimeoutSeconds <= 0 {
		return errors.Newf("query.timeout_seconds must be > 0, got %d", c.Query.TimeoutSeconds)
	}
	// Rate 0 = unlimited, negative = invalid
	if c.Query.RatePerSecond < 0 {
		return errors.Newf("query.rate_per_second must be >= 0, got %f", c.Query.RatePerSecond)
	}
	if c.Query.RatePerSecond > 0 && c.Query.Burst <= 0 {
		return errors.Newf("query.burst must be > 0 when rate limiting is enabled, got %d", c.Query.Burst)
	}

	if c.Log.Verbosity < 0 {
		return errors.Newf("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}

	return nil
}
