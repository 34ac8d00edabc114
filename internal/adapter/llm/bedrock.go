//go:build bedrock

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/infra/tracer"
)

const defaultBedrockMaxTokens = 4096

// bedrockConverseAPI abstracts the Bedrock runtime method used, for tests.
type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements domain.LLMProvider via the AWS Bedrock Converse API.
type BedrockProvider struct {
	name   string
	model  string
	client bedrockConverseAPI
	logger *slog.Logger
}

// NewBedrockProvider creates a Bedrock provider using the default AWS credential chain.
func NewBedrockProvider(cfg config.ProviderConfig, logger *slog.Logger) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockProvider{
		name:   cfg.Name,
		model:  cfg.Model,
		client: bedrockruntime.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

func newBedrockProvider(cfg config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	return NewBedrockProvider(cfg, logger)
}

// Chat implements domain.LLMProvider.
func (p *BedrockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if req.Model == "" {
		req.Model = p.model
	}
	ctx, span := startChatSpan(ctx, p.name, req.Model)
	defer span.End()

	output, err := p.client.Converse(ctx, toBedrockConverseInput(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, mapBedrockError(err)
	}

	result := fromBedrockConverseOutput(output, req.Model)
	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(p.logger, p.name, result)
	return result, nil
}

// Name implements domain.LLMProvider.
func (p *BedrockProvider) Name() string { return p.name }

func toBedrockConverseInput(req domain.ChatRequest) *bedrockruntime.ConverseInput {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultBedrockMaxTokens
	}
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Model),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(maxTokens)),
		},
	}
	if req.Temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(req.Temperature))
	}

	system, rest := splitSystem(req.Messages)
	if system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}
	for _, m := range rest {
		role := types.ConversationRoleUser
		if m.Role == domain.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		input.Messages = append(input.Messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return input
}

func fromBedrockConverseOutput(output *bedrockruntime.ConverseOutput, model string) *domain.ChatResponse {
	now := time.Now()
	result := &domain.ChatResponse{Model: model, CreatedAt: now}

	if output.Usage != nil {
		in, out := int(aws.ToInt32(output.Usage.InputTokens)), int(aws.ToInt32(output.Usage.OutputTokens))
		result.Usage = domain.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	}

	var text strings.Builder
	if msg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if b, ok := block.(*types.ContentBlockMemberText); ok {
				text.WriteString(b.Value)
			}
		}
	}
	result.Message = domain.Message{Role: domain.RoleAssistant, Content: text.String(), Timestamp: now}
	return result
}

func mapBedrockError(err error) error {
	msg := err.Error()

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case code == "ThrottlingException" || code == "TooManyRequestsException":
			return fmt.Errorf("%w: %s", domain.ErrRateLimit, msg)
		case code == "AccessDeniedException" || code == "UnrecognizedClientException":
			return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, msg)
		case code == "ValidationException" && strings.Contains(msg, "too long"):
			return fmt.Errorf("%w: %s", domain.ErrContextOverflow, msg)
		case code == "ModelNotReadyException" || code == "ServiceUnavailableException" ||
			code == "InternalServerException":
			return fmt.Errorf("%w: %s", domain.ErrProviderError, msg)
		}
	}
	return domain.WrapOp("bedrock", err)
}

var _ domain.LLMProvider = (*BedrockProvider)(nil)
