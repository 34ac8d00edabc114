package uxerror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"slidecoffee/internal/domain"
)

func TestHumanize(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		title string
	}{
		{"missing token", domain.NewGenerationError(domain.KindCredential, "not authenticated", domain.ErrMissingCredential), "Not Signed In"},
		{"circuit", domain.NewGenerationError(domain.KindTransport, "unavailable", domain.ErrCircuitOpen), "Service Unavailable"},
		{"quota", domain.NewGenerationError(domain.KindTransport, "Monthly slide limit reached", fmt.Errorf("%w: API error 403", domain.ErrForbidden)), "Plan Limit Reached"},
		{"auth", domain.NewGenerationError(domain.KindTransport, "Invalid or expired token", fmt.Errorf("%w: x", domain.ErrAuthInvalid)), "Authentication Failed"},
		{"rate", domain.NewGenerationError(domain.KindTransport, "slow down", fmt.Errorf("%w: x", domain.ErrRateLimit)), "Rate Limited"},
		{"cancelled", domain.NewGenerationError(domain.KindCancelled, "generation cancelled", context.Canceled), "Generation Cancelled"},
		{"incomplete", domain.IncompleteError(), "Generation Incomplete"},
		{"server error event", domain.NewGenerationError(domain.KindProtocol, "failed to generate outline", domain.ErrGenerationFailed), "Generation Failed"},
		{"malformed", domain.NewGenerationError(domain.KindProtocol, "bad frame", domain.ErrMalformedFrame), "Unexpected Server Response"},
		{"refused", errors.New("request failed: dial tcp 127.0.0.1:1: connection refused"), "Connection Failed"},
		{"other", errors.New("something odd"), "Unexpected Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := Humanize(tt.err)
			assert.Equal(t, tt.title, fe.Title)
			assert.Equal(t, tt.err.Error(), fe.Raw)
		})
	}
}

func TestHumanizeKeepsServerMessage(t *testing.T) {
	err := domain.NewGenerationError(domain.KindTransport, "Monthly slide limit reached", domain.ErrForbidden)
	fe := Humanize(err)
	assert.Equal(t, "Monthly slide limit reached", fe.Message)
	assert.Contains(t, fe.Render(), "Monthly slide limit reached")
	assert.Contains(t, fe.Render(), "Suggestions:")
}

func TestHumanizeNil(t *testing.T) {
	assert.Equal(t, "Unknown Error", Humanize(nil).Title)
}
