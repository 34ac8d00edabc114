// Package uxerror translates generation failures into user-friendly
// messages with recovery hints for the terminal.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"slidecoffee/internal/adapter/tui/theme"
	"slidecoffee/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Plan Limit Reached"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError for terminal output.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(theme.TextError.Render(theme.SymbolError + " " + fe.Title))
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Sentinels first so errors.Is works through wrapping.
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrMissingCredential) },
		produce: constantError("Not Signed In", "No access token is available for the generation service.",
			[]string{"Set SLIDECOFFEE_ACCESS_TOKEN", "Or point client.session_file at a saved session"}),
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrCircuitOpen) },
		produce: constantError("Service Unavailable", "The generation service failed repeatedly and is paused.",
			[]string{"Wait half a minute before retrying", "Check the server with GET /healthz"}),
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrForbidden) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Plan Limit Reached",
				Message: err.Error(),
				Hints:   []string{"Upgrade your plan for more slides per month", "Wait for the monthly allowance to reset"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrAuthInvalid) },
		produce: constantError("Authentication Failed", "The access token was rejected.",
			[]string{"Sign in again to refresh the session", "Check client.token_source in config"}),
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrRateLimit) },
		produce: constantError("Rate Limited", "Too many generation requests were sent.",
			[]string{"Wait a minute before retrying"}),
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrInvalidInput) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Request Rejected",
				Message: err.Error(),
				Hints:   []string{"Provide a topic or a presentation plan", "Keep the topic under 500 characters"},
				Raw:     err.Error(),
			}
		},
	},

	// Session failure kinds.
	{
		match:   kindIs(domain.KindCancelled),
		produce: constantError("Generation Cancelled", "The stream was stopped before it finished.", nil),
	},
	{
		match: kindIs(domain.KindIncomplete),
		produce: constantError("Generation Incomplete", "The stream ended before the presentation was saved.",
			[]string{"Try again", "Check the server logs for the request"}),
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrGenerationFailed) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Generation Failed",
				Message: err.Error(),
				Hints:   []string{"Try again", "Try a more specific topic"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: kindIs(domain.KindProtocol),
		produce: constantError("Unexpected Server Response", "The event stream could not be understood.",
			[]string{"Check that client.endpoint points at a slidecoffee server", "Run with -log-level debug for details"}),
	},

	// Network / connectivity patterns.
	{
		match: containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Connection Failed", "Could not reach the generation service.",
			[]string{"Check that the server is running", "Verify client.endpoint in config"}),
	},
	{
		match: containsAny("deadline exceeded", "timeout"),
		produce: constantError("Request Timed Out", "The request took too long to complete.",
			[]string{"Check your network connection", "Increase client.conn_timeout in config"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with -log-level debug for more details"},
		Raw:     err.Error(),
	}
}

func kindIs(kind domain.ErrorKind) func(error) bool {
	return func(err error) bool { return domain.KindOf(err) == kind }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
