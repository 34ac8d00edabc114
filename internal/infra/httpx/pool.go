// Package httpx holds the pooled HTTP client and status mapping shared by
// the outbound adapters.
package httpx

import (
	"net"
	"net/http"
	"time"

	"slidecoffee/internal/infra/config"
)

// Default connection pool settings: few hosts, long-lived connections.
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 120 * time.Second
	defaultConnTimeout         = 30 * time.Second
)

// NewPooledTransport creates an http.Transport with connection pooling.
// respTimeout bounds the wait for response headers only; a zero value
// leaves it unbounded.
func NewPooledTransport(connTimeout, respTimeout time.Duration, pool config.PoolConfig) *http.Transport {
	if connTimeout <= 0 {
		connTimeout = defaultConnTimeout
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          orDefault(pool.MaxIdleConns, defaultMaxIdleConns),
		MaxIdleConnsPerHost:   orDefault(pool.MaxIdleConnsPerHost, defaultMaxIdleConnsPerHost),
		MaxConnsPerHost:       orDefault(pool.MaxConnsPerHost, defaultMaxConnsPerHost),
		IdleConnTimeout:       orDefault(pool.IdleConnTimeout, defaultIdleConnTimeout),
		ForceAttemptHTTP2:     true,
	}
}

// NewClient returns a pooled client whose total request time is bounded by
// timeout. Streaming callers pass zero and rely on their context.
func NewClient(connTimeout, respTimeout, timeout time.Duration, pool config.PoolConfig) *http.Client {
	return &http.Client{
		Transport: NewPooledTransport(connTimeout, respTimeout, pool),
		Timeout:   timeout,
	}
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
