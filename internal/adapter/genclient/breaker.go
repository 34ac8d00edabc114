package genclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/usecase/stream"
)

// BreakerTransport fails fast after the server repeatedly fails to open a
// stream. Only session initiation is guarded; an open stream is not.
type BreakerTransport struct {
	inner   stream.Transport
	breaker *gobreaker.CircuitBreaker[io.ReadCloser]
}

// NewBreakerTransport wraps inner with a circuit breaker.
func NewBreakerTransport(inner stream.Transport, cfg config.CircuitBreakerConfig, logger *slog.Logger) *BreakerTransport {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[io.ReadCloser](gobreaker.Settings{
		Name:        "genclient",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientRejection(err)
		},
	})
	return &BreakerTransport{inner: inner, breaker: cb}
}

// isClientRejection reports errors caused by the request or the caller
// rather than the server's health.
func isClientRejection(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrAuthInvalid) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrRateLimit) ||
		errors.Is(err, domain.ErrNotFound)
}

// Open implements stream.Transport.
func (b *BreakerTransport) Open(ctx context.Context, token string, body []byte) (io.ReadCloser, error) {
	rc, err := b.breaker.Execute(func() (io.ReadCloser, error) {
		return b.inner.Open(ctx, token, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domain.NewGenerationError(domain.KindTransport,
			"generation service unavailable, try again later", domain.ErrCircuitOpen)
	}
	return rc, err
}

// State returns the current circuit breaker state.
func (b *BreakerTransport) State() gobreaker.State {
	return b.breaker.State()
}

// NewTransport builds the configured transport chain.
func NewTransport(cfg config.ClientConfig, logger *slog.Logger) stream.Transport {
	var t stream.Transport = NewHTTPTransport(cfg, logger)
	if cfg.CircuitBreaker.Enabled {
		t = NewBreakerTransport(t, cfg.CircuitBreaker, logger)
	}
	return t
}

var _ stream.Transport = (*BreakerTransport)(nil)
