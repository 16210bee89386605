package config

import "time"

// PortalConfig is the root configuration for a portal sync instance.
type PortalConfig struct {
	API           APIConfig           `yaml:"api"`
	Push          PushConfig          `yaml:"push"`
	Orders        OrdersConfig        `yaml:"orders"`
	Activity      ActivityConfig      `yaml:"activity"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Storage       StorageConfig       `yaml:"storage"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Identity      IdentityConfig      `yaml:"identity"`
}

// APIConfig holds portal REST API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Token      string        `yaml:"token"` // Bearer token, usually ${PORTAL_API_TOKEN}
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// PushConfig holds push channel settings.
type PushConfig struct {
	URL           string        `yaml:"url"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryWait     time.Duration `yaml:"retry_wait"`
	BufferSize    int           `yaml:"buffer_size"`
	PingTimeout   time.Duration `yaml:"ping_timeout"`
}

// OrdersConfig holds order store and reconciliation settings.
type OrdersConfig struct {
	SettleDelay      time.Duration `yaml:"settle_delay"`
	DebounceInterval time.Duration `yaml:"debounce_interval"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	ConfirmWindow    time.Duration `yaml:"confirm_window"`
	PageLimit        int           `yaml:"page_limit"`
}

// ActivityConfig holds activity log settings.
type ActivityConfig struct {
	Cap          int `yaml:"cap"`
	EmergencyCap int `yaml:"emergency_cap"`
}

// NotificationsConfig holds notification store settings.
type NotificationsConfig struct {
	Cap int `yaml:"cap"`
}

// StorageConfig holds the local persistence settings.
type StorageConfig struct {
	Dir           string `yaml:"dir"`
	MaxValueBytes int    `yaml:"max_value_bytes"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// IdentityConfig controls event-to-user matching.
type IdentityConfig struct {
	// StrictMatching disables the legacy policy of accepting events whose
	// user does not match when they carry an order number.
	StrictMatching bool `yaml:"strict_matching"`
}
