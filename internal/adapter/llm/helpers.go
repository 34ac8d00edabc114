package llm

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/infra/httpx"
	"slidecoffee/internal/infra/tracer"
)

// Default provider timeouts.
const (
	defaultConnTimeout = 30 * time.Second
	defaultRespTimeout = 120 * time.Second
)

// newHTTPClient builds the pooled client used by the HTTP providers.
func newHTTPClient(cfg config.ProviderConfig) *http.Client {
	connTimeout := cfg.ConnTimeout
	if connTimeout <= 0 {
		connTimeout = defaultConnTimeout
	}
	respTimeout := cfg.RespTimeout
	if respTimeout <= 0 {
		respTimeout = defaultRespTimeout
	}
	return httpx.NewClient(connTimeout, respTimeout, connTimeout+respTimeout, cfg.Pool)
}

// splitSystem separates system prompts from the conversation for APIs that
// carry the system prompt out of band.
func splitSystem(msgs []domain.Message) (string, []domain.Message) {
	var system string
	rest := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == domain.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// logChatCompleted logs the standard debug message after a successful LLM chat.
func logChatCompleted(logger *slog.Logger, providerName string, result *domain.ChatResponse) {
	logger.Debug("llm chat completed",
		"provider", providerName,
		"model", result.Model,
		"tokens", result.Usage.TotalTokens,
	)
}

// setUsageAttrs adds token usage attributes to a trace span.
func setUsageAttrs(span trace.Span, usage domain.Usage) {
	span.SetAttributes(
		tracer.IntAttr("llm.prompt_tokens", usage.PromptTokens),
		tracer.IntAttr("llm.completion_tokens", usage.CompletionTokens),
	)
}

func startChatSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", provider),
			tracer.StringAttr("llm.model", model),
		),
	)
}
