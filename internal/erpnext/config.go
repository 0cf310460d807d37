// Package erpnext is the HTTP client for the external accounting
// system: sales invoice creation and retrieval, payment lookups, and
// convention-based catalog resolution. The accounting system is the
// record of truth for what was actually invoiced and collected; this
// package never mutates local rental state.
package erpnext

import (
	"fmt"
	"strings"
	"time"
)

// Config holds credentials for the accounting system. Constructed once
// from the environment and injected into the client.
type Config struct {
	URL       string        `envconfig:"ERPNEXT_URL"`
	APIKey    string        `envconfig:"ERPNEXT_API_KEY"`
	APISecret string        `envconfig:"ERPNEXT_API_SECRET"`
	Timeout   time.Duration `envconfig:"ERPNEXT_TIMEOUT" default:"30s"`
}

// Configured reports whether the integration can be used, naming every
// missing variable so operators can fix them in one pass.
func (c Config) Configured() error {
	var missing []string
	if strings.TrimSpace(c.URL) == "" {
		missing = append(missing, "ERPNEXT_URL")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "ERPNEXT_API_KEY")
	}
	if strings.TrimSpace(c.APISecret) == "" {
		missing = append(missing, "ERPNEXT_API_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("erpnext configuration missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// BaseURL returns the configured URL without a trailing slash.
func (c Config) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(c.URL), "/")
}
