package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *PortalConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.Push.URL == "" {
		return errors.New("push.url is required")
	}
	if !strings.HasPrefix(c.Push.URL, "ws://") && !strings.HasPrefix(c.Push.URL, "wss://") {
		return fmt.Errorf("push.url must be a ws:// or wss:// URL, got %q", c.Push.URL)
	}
	if c.Push.RetryAttempts < 0 {
		return errors.New("push.retry_attempts must be >= 0")
	}

	if c.Orders.DebounceInterval < c.Orders.SettleDelay {
		return fmt.Errorf("orders.debounce_interval (%s) cannot be shorter than settle_delay (%s)",
			c.Orders.DebounceInterval, c.Orders.SettleDelay)
	}
	if c.Orders.PageLimit < 1 {
		return errors.New("orders.page_limit must be >= 1")
	}

	if c.Activity.Cap < 1 {
		return errors.New("activity.cap must be >= 1")
	}
	if c.Activity.EmergencyCap < 1 || c.Activity.EmergencyCap > c.Activity.Cap {
		return fmt.Errorf("activity.emergency_cap (%d) must be between 1 and cap (%d)",
			c.Activity.EmergencyCap, c.Activity.Cap)
	}

	if c.Notifications.Cap < 1 {
		return errors.New("notifications.cap must be >= 1")
	}

	if c.Storage.Dir == "" {
		return errors.New("storage.dir is required")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
