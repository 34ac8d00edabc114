//go:build !bedrock

package llm

import (
	"fmt"
	"log/slog"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
)

func newBedrockProvider(_ config.ProviderConfig, _ *slog.Logger) (domain.LLMProvider, error) {
	return nil, fmt.Errorf("bedrock provider requires build with -tags bedrock")
}
