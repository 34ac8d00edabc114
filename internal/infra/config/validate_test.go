package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationErrors(t *testing.T, cfg *Config) []string {
	t.Helper()
	err := Validate(cfg)
	if err == nil {
		return nil
	}
	ve, ok := err.(*ValidationError)
	require.True(t, ok, "want *ValidationError, got %T", err)
	return ve.Errors
}

func assertHasError(t *testing.T, errs []string, substr string) {
	t.Helper()
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return
		}
	}
	t.Errorf("no error containing %q in %v", substr, errs)
}

func TestValidateDefaultsPass(t *testing.T) {
	assert.Empty(t, validationErrors(t, Defaults()))
}

func TestValidationErrorFormatting(t *testing.T) {
	ve := &ValidationError{}
	assert.False(t, ve.HasErrors())
	ve.Add("a.b must be %d", 1)
	ve.Add("c")
	assert.True(t, ve.HasErrors())
	assert.Equal(t, "config validation failed:\n  - a.b must be 1\n  - c", ve.Error())
}

func TestValidateClient(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty endpoint", func(c *Config) { c.Client.Endpoint = "" }, "client.endpoint must not be empty"},
		{"relative endpoint", func(c *Config) { c.Client.Endpoint = "/api/generate" }, "absolute http(s) URL"},
		{"ftp endpoint", func(c *Config) { c.Client.Endpoint = "ftp://x/y" }, "absolute http(s) URL"},
		{"bad token source", func(c *Config) { c.Client.TokenSource = "keychain" }, "client.token_source"},
		{"env without name", func(c *Config) { c.Client.TokenEnv = "" }, "client.token_env"},
		{"file without path", func(c *Config) { c.Client.TokenSource = "file"; c.Client.SessionFile = "" }, "client.session_file"},
		{"static without token", func(c *Config) { c.Client.TokenSource = "static" }, "client.token is required"},
		{"zero chunk", func(c *Config) { c.Client.ChunkSize = 0 }, "client.chunk_size"},
		{"breaker without failures", func(c *Config) { c.Client.CircuitBreaker.MaxFailures = 0 }, "client.circuit_breaker.max_failures"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assertHasError(t, validationErrors(t, cfg), tt.want)
		})
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr must not be empty"},
		{"addr without port", func(c *Config) { c.Server.Addr = "localhost" }, "not a valid host:port"},
		{"zero requests", func(c *Config) { c.Server.RateLimit.Requests = 0 }, "server.rate_limit.requests"},
		{"zero window", func(c *Config) { c.Server.GeneralRateLimit.Window = 0 }, "server.general_rate_limit.window"},
		{"zero topic length", func(c *Config) { c.Server.MaxTopicLength = 0 }, "server.max_topic_length"},
		{"zero plan bytes", func(c *Config) { c.Server.MaxPlanBytes = 0 }, "server.max_plan_bytes"},
		{"empty token", func(c *Config) { c.Server.Auth.Tokens = []TokenConfig{{UserID: "u"}} }, "tokens[0].token"},
		{"token without workspace", func(c *Config) {
			c.Server.Auth.Tokens = []TokenConfig{{Token: "t", UserID: "u"}}
		}, "tokens[0].workspace_id"},
		{"duplicate token", func(c *Config) {
			c.Server.Auth.Tokens = []TokenConfig{
				{Token: "t", UserID: "u", WorkspaceID: "w"},
				{Token: "t", UserID: "v", WorkspaceID: "w"},
			}
		}, "duplicate token"},
		{"bad proxy", func(c *Config) { c.Server.TrustedProxies = []string{"not-an-ip"} }, "trusted_proxies[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assertHasError(t, validationErrors(t, cfg), tt.want)
		})
	}
}

func TestValidateRateLimitDisabledSkipsChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Server.RateLimit = RateLimitConfig{Enabled: false}
	assert.Empty(t, validationErrors(t, cfg))
}

func TestValidateTrustedProxiesAcceptsIPAndCIDR(t *testing.T) {
	cfg := Defaults()
	cfg.Server.TrustedProxies = []string{"127.0.0.1", "10.0.0.0/8", "::1"}
	assert.Empty(t, validationErrors(t, cfg))
}

func TestValidateLLM(t *testing.T) {
	tests := []struct {
		name      string
		providers []ProviderConfig
		def       string
		want      string
	}{
		{"empty default", nil, "", "llm.default_provider must not be empty"},
		{"unnamed provider", []ProviderConfig{{APIKey: "k"}}, "openai", "providers[0].name"},
		{"duplicate", []ProviderConfig{{Name: "openai", APIKey: "k"}, {Name: "openai", APIKey: "k"}}, "openai", "duplicate provider name"},
		{"bad type", []ProviderConfig{{Name: "openai", Type: "gemini", APIKey: "k"}}, "openai", "type \"gemini\" is invalid"},
		{"missing key", []ProviderConfig{{Name: "openai", Type: "openai"}}, "openai", "SLIDECOFFEE_LLM_PROVIDER_OPENAI_API_KEY"},
		{"bedrock without region", []ProviderConfig{{Name: "aws", Type: "bedrock"}}, "aws", "region is required"},
		{"default not configured", []ProviderConfig{{Name: "anthropic", APIKey: "k"}}, "openai", "does not match any configured provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.LLM.DefaultProvider = tt.def
			cfg.LLM.Providers = tt.providers
			assertHasError(t, validationErrors(t, cfg), tt.want)
		})
	}
}

func TestValidateLLMBedrockWithoutKey(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.DefaultProvider = "aws"
	cfg.LLM.Providers = []ProviderConfig{{Name: "aws", Type: "bedrock", Region: "us-east-1"}}
	assert.Empty(t, validationErrors(t, cfg))
}

func TestValidateSearch(t *testing.T) {
	cfg := Defaults()
	cfg.Search.Backend = "searxng"
	cfg.Search.URL = ""
	assertHasError(t, validationErrors(t, cfg), "search.url is required")

	cfg = Defaults()
	cfg.Search.Backend = "google"
	assertHasError(t, validationErrors(t, cfg), "search.backend")

	cfg = Defaults()
	cfg.Search.MaxResults = 11
	assertHasError(t, validationErrors(t, cfg), "search.max_results")

	cfg = Defaults()
	cfg.Search.Timeout = -time.Second
	assertHasError(t, validationErrors(t, cfg), "search.timeout")
}

func TestValidateDeckAndStore(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Path = ""
	cfg.Deck.DefaultSlides = 0
	cfg.Deck.Temperature = 3
	errs := validationErrors(t, cfg)
	assertHasError(t, errs, "store.path")
	assertHasError(t, errs, "deck.default_slides")
	assertHasError(t, errs, "deck.temperature")
}

func TestValidatePlans(t *testing.T) {
	cfg := Defaults()
	cfg.Plans = []PlanConfig{
		{ID: "team", SlidesPerMonth: -1, PresentationsPerMonth: -1},
		{ID: "team"},
		{Name: "anonymous"},
		{ID: "broken", SlidesPerMonth: -2},
	}
	errs := validationErrors(t, cfg)
	assert.Len(t, errs, 3)
	assertHasError(t, errs, "duplicate plan id")
	assertHasError(t, errs, "plans[2].id")
	assertHasError(t, errs, "slides_per_month must be >= -1")
}

func TestValidateLoggerAndTracer(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Level = "verbose"
	cfg.Logger.Format = "xml"
	cfg.Tracer = TracerConfig{Enabled: true, Exporter: "jaeger"}
	errs := validationErrors(t, cfg)
	assert.Len(t, errs, 3)

	cfg = Defaults()
	cfg.Logger.Level = "WARNING"
	cfg.Tracer = TracerConfig{Enabled: true, Exporter: "stderr"}
	assert.Empty(t, validationErrors(t, cfg))
}
