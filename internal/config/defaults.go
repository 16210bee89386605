package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryAttempts    = 5
	DefaultRetryWait        = 1 * time.Second
	DefaultBufferSize       = 256
	DefaultPingTimeout      = 60 * time.Second
	DefaultSettleDelay      = 400 * time.Millisecond
	DefaultDebounceInterval = 1 * time.Second
	DefaultRetryDelay       = 5 * time.Second
	DefaultConfirmWindow    = 10 * time.Second
	DefaultPageLimit        = 100
	DefaultActivityCap      = 50
	DefaultEmergencyCap     = 20
	DefaultNotificationCap  = 50
	DefaultStorageDir       = "./data"
	DefaultMaxValueBytes    = 256 * 1024
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

func (c *PortalConfig) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Push defaults
	if c.Push.RetryAttempts == 0 {
		c.Push.RetryAttempts = DefaultRetryAttempts
	}
	if c.Push.RetryWait == 0 {
		c.Push.RetryWait = DefaultRetryWait
	}
	if c.Push.BufferSize == 0 {
		c.Push.BufferSize = DefaultBufferSize
	}
	if c.Push.PingTimeout == 0 {
		c.Push.PingTimeout = DefaultPingTimeout
	}

	// Orders defaults
	if c.Orders.SettleDelay == 0 {
		c.Orders.SettleDelay = DefaultSettleDelay
	}
	if c.Orders.DebounceInterval == 0 {
		c.Orders.DebounceInterval = DefaultDebounceInterval
	}
	if c.Orders.RetryDelay == 0 {
		c.Orders.RetryDelay = DefaultRetryDelay
	}
	if c.Orders.ConfirmWindow == 0 {
		c.Orders.ConfirmWindow = DefaultConfirmWindow
	}
	if c.Orders.PageLimit == 0 {
		c.Orders.PageLimit = DefaultPageLimit
	}

	// Activity defaults
	if c.Activity.Cap == 0 {
		c.Activity.Cap = DefaultActivityCap
	}
	if c.Activity.EmergencyCap == 0 {
		c.Activity.EmergencyCap = DefaultEmergencyCap
	}

	// Notifications defaults
	if c.Notifications.Cap == 0 {
		c.Notifications.Cap = DefaultNotificationCap
	}

	// Storage defaults
	if c.Storage.Dir == "" {
		c.Storage.Dir = DefaultStorageDir
	}
	if c.Storage.MaxValueBytes == 0 {
		c.Storage.MaxValueBytes = DefaultMaxValueBytes
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
