package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateClient(cfg, ve)
	validateServer(cfg, ve)
	validateLLM(cfg, ve)
	validateSearch(cfg, ve)
	validateStore(cfg, ve)
	validateDeck(cfg, ve)
	validatePlans(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validTokenSources = map[string]bool{
	"env":    true,
	"file":   true,
	"static": true,
}

func validateClient(cfg *Config, ve *ValidationError) {
	c := cfg.Client
	if c.Endpoint == "" {
		ve.Add("client.endpoint must not be empty")
	} else if u, err := url.Parse(c.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add("client.endpoint %q must be an absolute http(s) URL", c.Endpoint)
	}

	switch {
	case !validTokenSources[c.TokenSource]:
		ve.Add("client.token_source %q is invalid (want: env, file, static)", c.TokenSource)
	case c.TokenSource == "env" && c.TokenEnv == "":
		ve.Add("client.token_env is required when token_source is env")
	case c.TokenSource == "file" && c.SessionFile == "":
		ve.Add("client.session_file is required when token_source is file")
	case c.TokenSource == "static" && c.Token == "":
		ve.Add("client.token is required when token_source is static")
	}

	if c.ConnTimeout < 0 {
		ve.Add("client.conn_timeout must be >= 0")
	}
	if c.ChunkSize <= 0 {
		ve.Add("client.chunk_size must be > 0")
	}
	validateBreaker("client.circuit_breaker", c.CircuitBreaker, ve)
}

func validateServer(cfg *Config, ve *ValidationError) {
	s := cfg.Server
	if s.Addr == "" {
		ve.Add("server.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port", s.Addr)
	}

	validateRateLimit("server.rate_limit", s.RateLimit, ve)
	validateRateLimit("server.general_rate_limit", s.GeneralRateLimit, ve)

	if s.MaxTopicLength <= 0 {
		ve.Add("server.max_topic_length must be > 0")
	}
	if s.MaxPlanBytes <= 0 {
		ve.Add("server.max_plan_bytes must be > 0")
	}

	seen := make(map[string]bool)
	for i, t := range s.Auth.Tokens {
		if t.Token == "" {
			ve.Add("server.auth.tokens[%d].token must not be empty", i)
			continue
		}
		if seen[t.Token] {
			ve.Add("server.auth.tokens[%d]: duplicate token", i)
		}
		seen[t.Token] = true
		if t.UserID == "" {
			ve.Add("server.auth.tokens[%d].user_id must not be empty", i)
		}
		if t.WorkspaceID == "" {
			ve.Add("server.auth.tokens[%d].workspace_id must not be empty", i)
		}
	}

	for i, p := range s.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			ve.Add("server.trusted_proxies[%d] %q is not an IP or CIDR", i, p)
		}
	}
}

func validateRateLimit(path string, rl RateLimitConfig, ve *ValidationError) {
	if !rl.Enabled {
		return
	}
	if rl.Requests <= 0 {
		ve.Add("%s.requests must be > 0 when enabled", path)
	}
	if rl.Window <= 0 {
		ve.Add("%s.window must be > 0 when enabled", path)
	}
}

func validateBreaker(path string, cb CircuitBreakerConfig, ve *ValidationError) {
	if !cb.Enabled {
		return
	}
	if cb.MaxFailures == 0 {
		ve.Add("%s.max_failures must be > 0 when enabled", path)
	}
	if cb.Timeout <= 0 {
		ve.Add("%s.timeout must be > 0 when enabled", path)
	}
}

var validProviderTypes = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"bedrock":   true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}
	validateBreaker("llm.circuit_breaker", cfg.LLM.CircuitBreaker, ve)

	if len(cfg.LLM.Providers) == 0 {
		return
	}

	seen := make(map[string]bool)
	foundDefault := false
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: openai, anthropic, bedrock)", i, p.Type)
		}
		if p.APIKey == "" && p.Type != "bedrock" {
			ve.Add("llm.providers[%d] (%s): api_key is empty (set via %sLLM_PROVIDER_%s_API_KEY)",
				i, p.Name, envPrefix, envName(p.Name))
		}
		if p.Type == "bedrock" && p.Region == "" {
			ve.Add("llm.providers[%d] (%s): region is required for bedrock provider", i, p.Name)
		}
		if p.Name == cfg.LLM.DefaultProvider {
			foundDefault = true
		}
	}

	if !foundDefault && cfg.LLM.DefaultProvider != "" {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
}

func validateSearch(cfg *Config, ve *ValidationError) {
	s := cfg.Search
	switch s.Backend {
	case "noop":
	case "searxng":
		if s.URL == "" {
			ve.Add("search.url is required for the searxng backend")
		} else if _, err := url.ParseRequestURI(s.URL); err != nil {
			ve.Add("search.url %q is not a valid URL", s.URL)
		}
	default:
		ve.Add("search.backend %q is invalid (want: searxng, noop)", s.Backend)
	}
	if s.Timeout <= 0 {
		ve.Add("search.timeout must be > 0")
	}
	if s.MaxResults < 1 || s.MaxResults > 10 {
		ve.Add("search.max_results must be between 1 and 10")
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	if cfg.Store.Path == "" {
		ve.Add("store.path must not be empty")
	}
}

func validateDeck(cfg *Config, ve *ValidationError) {
	d := cfg.Deck
	if d.DefaultSlides <= 0 {
		ve.Add("deck.default_slides must be > 0")
	}
	if d.OutlineMaxTokens <= 0 {
		ve.Add("deck.outline_max_tokens must be > 0")
	}
	if d.SlideMaxTokens <= 0 {
		ve.Add("deck.slide_max_tokens must be > 0")
	}
	if d.Temperature < 0 || d.Temperature > 2 {
		ve.Add("deck.temperature must be between 0 and 2")
	}
}

func validatePlans(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool)
	for i, p := range cfg.Plans {
		if p.ID == "" {
			ve.Add("plans[%d].id must not be empty", i)
			continue
		}
		if seen[p.ID] {
			ve.Add("plans[%d]: duplicate plan id %q", i, p.ID)
		}
		seen[p.ID] = true
		// -1 means unlimited.
		if p.SlidesPerMonth < -1 {
			ve.Add("plans[%d] (%s): slides_per_month must be >= -1", i, p.ID)
		}
		if p.PresentationsPerMonth < -1 {
			ve.Add("plans[%d] (%s): presentations_per_month must be >= -1", i, p.ID)
		}
	}
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if f := cfg.Logger.Format; f != "text" && f != "json" {
		ve.Add("logger.format %q is invalid (want: text, json)", f)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	if e := cfg.Tracer.Exporter; e != "stdout" && e != "stderr" && e != "noop" {
		ve.Add("tracer.exporter %q is invalid (want: stdout, stderr, noop)", e)
	}
}
