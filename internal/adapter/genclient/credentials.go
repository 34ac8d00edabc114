package genclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
)

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements domain.CredentialProvider.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// EnvToken reads the bearer token from an environment variable. An unset
// variable yields an empty token.
type EnvToken struct {
	Name string
}

// Token implements domain.CredentialProvider.
func (e EnvToken) Token(context.Context) (string, error) {
	return strings.TrimSpace(os.Getenv(e.Name)), nil
}

// FileToken reads the bearer token from a JSON session file. Both the flat
// {"access_token": ...} shape and {"currentSession": {"access_token": ...}}
// are accepted.
type FileToken struct {
	Path string
}

// Token implements domain.CredentialProvider.
func (f FileToken) Token(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: session file %s not found", domain.ErrMissingCredential, f.Path)
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}

	var session struct {
		AccessToken    string `json:"access_token"`
		CurrentSession *struct {
			AccessToken string `json:"access_token"`
		} `json:"currentSession"`
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return "", fmt.Errorf("parse session file %s: %w", f.Path, err)
	}
	if session.AccessToken != "" {
		return session.AccessToken, nil
	}
	if session.CurrentSession != nil {
		return session.CurrentSession.AccessToken, nil
	}
	return "", nil
}

// NewCredentialProvider returns the provider selected by cfg.TokenSource.
func NewCredentialProvider(cfg config.ClientConfig) domain.CredentialProvider {
	switch cfg.TokenSource {
	case "static":
		return StaticToken(cfg.Token)
	case "file":
		return FileToken{Path: cfg.SessionFile}
	default:
		return EnvToken{Name: cfg.TokenEnv}
	}
}

var (
	_ domain.CredentialProvider = StaticToken("")
	_ domain.CredentialProvider = EnvToken{}
	_ domain.CredentialProvider = FileToken{}
)
