// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for upstream calls.
var HTTPClient = NewHTTPClient(30 * time.Second)

// NewHTTPClient returns a client with pooled keep-alive connections.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	transport.IdleConnTimeout = 90 * time.Second
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
