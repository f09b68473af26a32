package http

import (
	"net/http"
	"time"
)

// defaultClientTimeout bounds outbound calls when no timeout is configured.
const defaultClientTimeout = 30 * time.Second

// ClientConfig tunes the outbound HTTP clients used for provider calls.
type ClientConfig struct {
	Timeout       time.Duration
	Transport     http.RoundTripper
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// NewClient builds an outbound HTTP client. A zero timeout falls back to
// defaultClientTimeout so no provider call can hang indefinitely.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultClientTimeout
	}

	client := &http.Client{Timeout: timeout}
	if cfg.Transport != nil {
		client.Transport = cfg.Transport
	}
	if cfg.CheckRedirect != nil {
		client.CheckRedirect = cfg.CheckRedirect
	}
	return client
}
