// Package httpclient builds the HTTP clients used for third-party APIs.
package httpclient

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// DefaultTimeout bounds every outbound call.
const DefaultTimeout = 10 * time.Second

// Config configures an outbound client.
type Config struct {
	Timeout time.Duration
	// AllowPrivate disables the private-network guard. Only local
	// development and tests point upstream URLs at loopback addresses.
	AllowPrivate bool
}

// New returns an HTTP client restricted to public http(s) endpoints on
// ports 80 and 443, with the guard applied after DNS resolution.
func New(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if cfg.AllowPrivate {
		return &http.Client{Timeout: timeout}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}
