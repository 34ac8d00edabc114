// Package middleware holds HTTP middleware shared by the gateway.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SecurityHeaders adds OWASP-recommended security headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitConfig describes a per-client budget of Requests per Window.
// The budget refills continuously, so a client that waits Window/Requests
// regains one request.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are honored. Empty means headers are ignored.
	TrustedProxies []string
	// Message is returned in the 429 body.
	Message string
	Logger  *slog.Logger
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

const defaultRateLimitMessage = "Too many requests, please try again later."

// RateLimit implements token bucket rate limiting per client IP. The
// cleanup goroutine stops when ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Requests <= 0 {
		cfg.Requests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Message == "" {
		cfg.Message = defaultRateLimitMessage
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	proxies := parseProxies(cfg.TrustedProxies)
	every := rate.Every(cfg.Window / time.Duration(cfg.Requests))

	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}
	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	// An idle client has a full bucket again after one window.
	idle := max(cfg.Window, 3*time.Minute)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := cfg.Now()
				mu.Lock()
				for ip, c := range clients {
					if now.Sub(c.lastSeen) > idle {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, proxies)
			now := cfg.Now()

			mu.Lock()
			c, ok := clients[ip]
			if !ok {
				c = &client{limiter: rate.NewLimiter(every, cfg.Requests)}
				clients[ip] = c
			}
			c.lastSeen = now
			res := c.limiter.ReserveN(now, 1)
			delay := res.DelayFrom(now)
			if delay > 0 {
				res.CancelAt(now)
			}
			remaining := int(math.Max(0, math.Floor(c.limiter.TokensAt(now))))
			mu.Unlock()

			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(cfg.Requests))
			h.Set("RateLimit-Remaining", strconv.Itoa(remaining))

			if delay > 0 {
				retry := int(math.Ceil(delay.Seconds()))
				h.Set("Retry-After", strconv.Itoa(retry))
				if cfg.Logger != nil {
					cfg.Logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				}
				writeLimited(w, cfg.Message, retry)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeLimited(w http.ResponseWriter, msg string, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":      msg,
		"message":    msg,
		"retryAfter": retryAfter,
	})
}

func parseProxies(list []string) []*net.IPNet {
	var out []*net.IPNet
	for _, p := range list {
		p = strings.TrimSpace(p)
		if _, n, err := net.ParseCIDR(p); err == nil {
			out = append(out, n)
			continue
		}
		if ip := net.ParseIP(p); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}
	return out
}

// clientIP returns the caller's IP. Proxy headers are honored only when
// the direct peer is a trusted proxy, so clients cannot spoof their address.
func clientIP(r *http.Request, proxies []*net.IPNet) string {
	direct := r.RemoteAddr
	if host, _, err := net.SplitHostPort(direct); err == nil {
		direct = host
	}
	if len(proxies) == 0 {
		return direct
	}

	peer := net.ParseIP(direct)
	trusted := false
	for _, n := range proxies {
		if peer != nil && n.Contains(peer) {
			trusted = true
			break
		}
	}
	if !trusted {
		return direct
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return direct
}
