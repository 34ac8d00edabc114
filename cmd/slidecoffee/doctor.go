package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slidecoffee/internal/adapter/genclient"
	"slidecoffee/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

var notLoaded = CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "LLM API key", Fn: checkLLMAPIKey},
		{Name: "Store", Fn: checkStore},
		{Name: "Server auth", Fn: checkServerAuth},
		{Name: "SearXNG", Fn: checkSearXNG},
		{Name: "Client credential", Fn: checkClientCredential},
		{Name: "Generation server", Fn: checkGenerationServer},
	}

	fmt.Println("slidecoffee doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  [%s] %s: %s\n", result.Status, result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

// checkConfigFile returns a check that verifies the config file parses.
// A missing file is a warning because the defaults still apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and the values listed above",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLLMAPIKey verifies the default provider can authenticate.
func checkLLMAPIKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if len(cfg.LLM.Providers) == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no LLM providers configured, serve will not start",
			Fix:     "Add a provider under llm.providers (only needed to run the server)",
		}
	}

	var withKey, withoutKey []string
	for _, p := range cfg.LLM.Providers {
		if p.APIKey != "" || p.Type == "bedrock" {
			withKey = append(withKey, p.Name)
		} else {
			withoutKey = append(withoutKey, p.Name)
		}
	}
	if len(withKey) == 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("no API keys found for providers: %s", strings.Join(withoutKey, ", ")),
			Fix:     "Set API keys via environment variables (e.g., SLIDECOFFEE_LLM_PROVIDER_OPENAI_API_KEY)",
		}
	}
	if len(withoutKey) > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("keys configured for [%s]; missing for [%s]", strings.Join(withKey, ", "), strings.Join(withoutKey, ", ")),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("API keys configured for: %s", strings.Join(withKey, ", ")),
	}
}

// checkStore verifies the database directory exists and is writable.
func checkStore(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if cfg.Store.Path == ":memory:" {
		return CheckResult{Status: StatusWarn, Message: "in-memory store, presentations are lost on restart"}
	}

	absDir, _ := filepath.Abs(filepath.Dir(cfg.Store.Path))
	info, err := os.Stat(absDir)
	if os.IsNotExist(err) {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("data directory %s will be created on first start", absDir),
		}
	}
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("cannot stat data directory: %v", err)}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("%s exists but is not a directory", absDir)}
	}

	testFile := filepath.Join(absDir, ".doctor-check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("data directory %s is not writable: %v", absDir, err),
			Fix:     fmt.Sprintf("Fix permissions: chmod 700 %s", absDir),
		}
	}
	os.Remove(testFile)

	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("database at %s", cfg.Store.Path)}
}

// checkServerAuth warns when the server would reject every caller.
func checkServerAuth(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	n := len(cfg.Server.Auth.Tokens)
	if n == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no server.auth.tokens, the server will reject every generation request",
			Fix:     "Add tokens under server.auth.tokens (only needed to run the server)",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%d token(s) configured", n)}
}

// checkSearXNG checks if SearXNG is running for web research.
func checkSearXNG(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if cfg.Search.Backend != "searxng" {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("search backend is %q, research is disabled", cfg.Search.Backend),
		}
	}
	return probe(cfg.Search.URL, "SearXNG",
		"Start SearXNG: docker compose up -d searxng (or update search.url)")
}

// checkClientCredential verifies the client can find an access token.
func checkClientCredential(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok, err := genclient.NewCredentialProvider(cfg.Client).Token(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("cannot read access token: %v", err),
			Fix:     "Sign in to create the session file, or set " + cfg.Client.TokenEnv,
		}
	}
	if tok == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("no access token from %s source", cfg.Client.TokenSource),
			Fix:     "Set " + cfg.Client.TokenEnv + " or configure client.token_source",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("access token found (%s)", cfg.Client.TokenSource)}
}

// checkGenerationServer probes the health endpoint next to client.endpoint.
func checkGenerationServer(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	u, err := url.Parse(cfg.Client.Endpoint)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid client.endpoint: %v", err)}
	}
	health := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/healthz"}).String()
	res := probe(health, "generation server", "Start the server with 'slidecoffee serve' or update client.endpoint")
	if res.Status == StatusFail {
		res.Status = StatusWarn
	}
	return res
}

func probe(target, name, fix string) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid %s URL: %v", name, err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s not reachable at %s: %v", name, target, err),
			Fix:     fix,
		}
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s responded with status %d at %s", name, resp.StatusCode, target),
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s reachable at %s", name, target)}
}
