package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"

	"slidecoffee/internal/domain"
)

// envPrefix is prepended to every environment override.
const envPrefix = "SLIDECOFFEE_"

// encPrefix marks a value encrypted with EncryptValue.
const encPrefix = "enc:"

// Config is the root configuration shared by the server and the client CLI.
type Config struct {
	Client   ClientConfig `yaml:"client"`
	Server   ServerConfig `yaml:"server"`
	LLM      LLMConfig    `yaml:"llm"`
	Search   SearchConfig `yaml:"search"`
	Store    StoreConfig  `yaml:"store"`
	Deck     DeckConfig   `yaml:"deck"`
	Plans    []PlanConfig `yaml:"plans,omitempty"`
	Logger   LoggerConfig `yaml:"logger"`
	Tracer   TracerConfig `yaml:"tracer"`
	Includes []string     `yaml:"includes,omitempty"`
}

// ClientConfig configures the streaming generation client.
type ClientConfig struct {
	Endpoint       string               `yaml:"endpoint"`
	TokenSource    string               `yaml:"token_source"` // "env" | "file" | "static"
	Token          string               `yaml:"token,omitempty"`
	TokenEnv       string               `yaml:"token_env"`
	SessionFile    string               `yaml:"session_file"`
	ConnTimeout    time.Duration        `yaml:"conn_timeout"`
	HeaderTimeout  time.Duration        `yaml:"header_timeout"`
	ChunkSize      int                  `yaml:"chunk_size"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Pool           PoolConfig           `yaml:"pool"`
}

// ServerConfig configures the generation gateway.
type ServerConfig struct {
	Addr              string          `yaml:"addr"`
	Auth              AuthConfig      `yaml:"auth"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	GeneralRateLimit  RateLimitConfig `yaml:"general_rate_limit"`
	MaxTopicLength    int             `yaml:"max_topic_length"`
	MaxPlanBytes      int             `yaml:"max_plan_bytes"`
	ReadHeaderTimeout time.Duration   `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration   `yaml:"shutdown_timeout"`
	TrustedProxies    []string        `yaml:"trusted_proxies,omitempty"`
}

// AuthConfig holds bearer token authentication settings.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig maps a bearer token to the caller it authenticates.
type TokenConfig struct {
	Token       string `yaml:"token"`
	UserID      string `yaml:"user_id"`
	WorkspaceID string `yaml:"workspace_id"`
	Plan        string `yaml:"plan"`
}

// RateLimitConfig describes a per-IP request budget over a window.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Region      string        `yaml:"region,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// SearchConfig configures the research backend.
type SearchConfig struct {
	Backend    string        `yaml:"backend"` // "searxng" | "noop"
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxResults int           `yaml:"max_results"`
}

// StoreConfig configures presentation persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// DeckConfig tunes the generation pipeline.
type DeckConfig struct {
	DefaultSlides    int     `yaml:"default_slides"`
	OutlineMaxTokens int     `yaml:"outline_max_tokens"`
	SlideMaxTokens   int     `yaml:"slide_max_tokens"`
	Temperature      float64 `yaml:"temperature"`
}

// PlanConfig overrides or adds a subscription plan.
type PlanConfig struct {
	ID                    string `yaml:"id"`
	Name                  string `yaml:"name"`
	SlidesPerMonth        int    `yaml:"slides_per_month"`
	PresentationsPerMonth int    `yaml:"presentations_per_month"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds OpenTelemetry settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" | "stderr" | "noop"
	Endpoint string `yaml:"endpoint,omitempty"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".slidecoffee"
	}
	return filepath.Join(home, ".slidecoffee")
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Client: ClientConfig{
			Endpoint:      "http://localhost:3001/api/generate-slides-stream",
			TokenSource:   "env",
			TokenEnv:      envPrefix + "ACCESS_TOKEN",
			SessionFile:   filepath.Join(dataDir, "session.json"),
			ConnTimeout:   10 * time.Second,
			HeaderTimeout: 60 * time.Second,
			ChunkSize:     4096,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 3,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Server: ServerConfig{
			Addr: ":3001",
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 10,
				Window:   15 * time.Minute,
			},
			GeneralRateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 60,
				Window:   time.Minute,
			},
			MaxTopicLength:    255,
			MaxPlanBytes:      10000,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     false,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Search: SearchConfig{
			Backend:    "noop",
			URL:        "http://localhost:6060",
			Timeout:    10 * time.Second,
			MaxResults: 5,
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "data", "slidecoffee.db"),
		},
		Deck: DeckConfig{
			DefaultSlides:    8,
			OutlineMaxTokens: 2048,
			SlideMaxTokens:   1024,
			Temperature:      0.7,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts
// secrets. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfigLoad, path, err)
		}
		data = nil
	}

	if data != nil {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve path: %v", domain.ErrConfigLoad, err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config: %v", domain.ErrConfigLoad, err)
		}
		if len(cfg.Includes) > 0 {
			inc := newIncluder(absPath)
			if err := inc.apply(cfg, filepath.Dir(absPath), 0); err != nil {
				return nil, err
			}
			// The main file wins over anything it includes.
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse config (second pass): %v", domain.ErrConfigLoad, err)
			}
			cfg.Includes = nil
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv(envPrefix + "CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("%w: decrypt secrets: %v", domain.ErrDecryption, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps SLIDECOFFEE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	setString(&cfg.Client.Endpoint, "CLIENT_ENDPOINT")
	setString(&cfg.Client.TokenSource, "CLIENT_TOKEN_SOURCE")
	setString(&cfg.Client.Token, "CLIENT_TOKEN")
	setString(&cfg.Client.SessionFile, "CLIENT_SESSION_FILE")
	setDuration(&cfg.Client.ConnTimeout, "CLIENT_CONN_TIMEOUT")
	setInt(&cfg.Client.ChunkSize, "CLIENT_CHUNK_SIZE")

	setString(&cfg.Server.Addr, "SERVER_ADDR")
	setBool(&cfg.Server.RateLimit.Enabled, "SERVER_RATE_LIMIT_ENABLED")
	setInt(&cfg.Server.RateLimit.Requests, "SERVER_RATE_LIMIT_REQUESTS")
	setDuration(&cfg.Server.RateLimit.Window, "SERVER_RATE_LIMIT_WINDOW")
	if v := os.Getenv(envPrefix + "SERVER_TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = splitAndTrim(v, ",")
	}

	setString(&cfg.LLM.DefaultProvider, "LLM_DEFAULT_PROVIDER")
	// Per-provider API key overrides: SLIDECOFFEE_LLM_PROVIDER_<NAME>_API_KEY
	for i := range cfg.LLM.Providers {
		key := fmt.Sprintf("LLM_PROVIDER_%s_API_KEY", envName(cfg.LLM.Providers[i].Name))
		setString(&cfg.LLM.Providers[i].APIKey, key)
	}

	setString(&cfg.Search.Backend, "SEARCH_BACKEND")
	setString(&cfg.Search.URL, "SEARCH_URL")
	setDuration(&cfg.Search.Timeout, "SEARCH_TIMEOUT")

	setString(&cfg.Store.Path, "STORE_PATH")

	setString(&cfg.Logger.Level, "LOGGER_LEVEL")
	setString(&cfg.Logger.Format, "LOGGER_FORMAT")
	setString(&cfg.Logger.Output, "LOGGER_OUTPUT")

	setBool(&cfg.Tracer.Enabled, "TRACER_ENABLED")
	setString(&cfg.Tracer.Exporter, "TRACER_EXPORTER")
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

// envName upper-cases a provider name and replaces characters that are not
// valid in environment variable names.
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decryptSecrets replaces every "enc:..." secret with its plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	type secret struct {
		name  string
		value *string
	}
	secrets := []secret{{"client token", &cfg.Client.Token}}
	for i := range cfg.LLM.Providers {
		secrets = append(secrets, secret{"provider " + cfg.LLM.Providers[i].Name + " api_key", &cfg.LLM.Providers[i].APIKey})
	}
	for i := range cfg.Server.Auth.Tokens {
		secrets = append(secrets, secret{"server token for " + cfg.Server.Auth.Tokens[i].UserID, &cfg.Server.Auth.Tokens[i].Token})
	}

	for _, s := range secrets {
		if !strings.HasPrefix(*s.value, encPrefix) {
			continue
		}
		plain, err := DecryptValue(strings.TrimPrefix(*s.value, encPrefix), passphrase)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		*s.value = plain
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
// The result is hex(salt) + ":" + hex(nonce+ciphertext).
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", domain.ErrConfigLoad, path, err)
	}
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("%w: config file %s has insecure permissions %o (want 0600 or 0644)", domain.ErrConfigLoad, path, mode)
	}
	return nil
}

// PlanCatalog returns the built-in plans with cfg.Plans applied on top.
func (cfg *Config) PlanCatalog() map[string]domain.Plan {
	catalog := domain.DefaultPlans()
	for _, p := range cfg.Plans {
		name := p.Name
		if name == "" {
			name = catalog[p.ID].Name
		}
		if name == "" {
			name = p.ID
		}
		catalog[p.ID] = domain.Plan{
			ID:                    p.ID,
			Name:                  name,
			SlidesPerMonth:        p.SlidesPerMonth,
			PresentationsPerMonth: p.PresentationsPerMonth,
		}
	}
	return catalog
}
