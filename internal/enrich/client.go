package enrich

import (
	"net"
	"net/http"
	"time"
)

// Default HTTP timeouts.
const (
	DefaultTimeout               = 60 * time.Second
	DefaultDialTimeout           = 10 * time.Second
	DefaultResponseHeaderTimeout = 25 * time.Second
)

// HTTPClient is the capability the pipeline needs from an HTTP client.
// *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client with a total request timeout (DefaultTimeout
// when timeout <= 0), a dial timeout and a response header timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = DefaultResponseHeaderTimeout
	return &http.Client{Timeout: timeout, Transport: transport}
}
