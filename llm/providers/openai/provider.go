package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/ahmadarif238/vivagraph-ai/internal/tlsutil"
	"github.com/ahmadarif238/vivagraph-ai/llm"
	"github.com/ahmadarif238/vivagraph-ai/llm/providers"
	"github.com/ahmadarif238/vivagraph-ai/types"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second
)

// Provider 实现 OpenAI 兼容的 LLM 提供者
type Provider struct {
	cfg    providers.OpenAIConfig
	client openaigo.Client
	logger *zap.Logger
}

// NewProvider 创建新的 OpenAI 提供者实例
func NewProvider(cfg providers.OpenAIConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Provider{
		cfg:    cfg,
		client: newClient(cfg.BaseProviderConfig, cfg.Organization, cfg.MaxRetries),
		logger: logger.With(zap.String("component", "openai_provider")),
	}
}

func newClient(cfg providers.BaseProviderConfig, organization string, maxRetries int) openaigo.Client {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(tlsutil.SecureHTTPClient(cfg.Timeout)),
		option.WithMaxRetries(maxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	return openaigo.NewClient(opts...)
}

func (p *Provider) Name() string { return "openai" }

// Completion 调用 Chat Completions 接口
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, types.NewError(types.ErrUnauthorized, "openai api_key is required").
			WithHTTPStatus(http.StatusUnauthorized).
			WithProvider(p.Name())
	}
	if len(req.Messages) == 0 {
		return nil, types.NewInvalidRequestError("messages are required").WithProvider(p.Name())
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	model := providers.ChooseModel(req.Model, p.cfg.Model, DefaultModel)
	params := openaigo.ChatCompletionNewParams{
		Model:       openaigo.ChatModel(model),
		Messages:    convertMessages(req.Messages),
		Temperature: openaigo.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaigo.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.mapError(err)
	}

	out := &llm.ChatResponse{
		ID:       resp.ID,
		Provider: p.Name(),
		Model:    resp.Model,
		Usage: llm.ChatUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if resp.Created > 0 {
		out.CreatedAt = time.Unix(resp.Created, 0)
	}
	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        int(c.Index),
			FinishReason: string(c.FinishReason),
			Message:      llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content},
		})
	}
	return out, nil
}

// HealthCheck 通过列出模型检查连通性
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	_, err := p.client.Models.List(ctx)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency, Message: err.Error()}, p.mapError(err)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

func convertMessages(msgs []llm.Message) []openaigo.ChatCompletionMessageParamUnion {
	out := make([]openaigo.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			if m.Content == "" {
				continue
			}
			out = append(out, openaigo.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openaigo.AssistantMessage(m.Content))
		default:
			out = append(out, openaigo.UserMessage(m.Content))
		}
	}
	return out
}

// mapError 把 openai-go 错误映射为统一错误码
func (p *Provider) mapError(err error) error {
	return mapError(p.Name(), err)
}

func mapError(provider string, err error) error {
	var apiErr *openaigo.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.NewError(types.ErrTimeout, "upstream timeout").
				WithCause(err).WithRetryable(true).WithProvider(provider)
		}
		return types.NewError(types.ErrServiceUnavailable, "upstream request failed").
			WithCause(err).WithRetryable(true).WithProvider(provider)
	}

	status := apiErr.StatusCode
	msg := fmt.Sprintf("upstream status %d", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, msg).
			WithCause(err).WithHTTPStatus(status).WithProvider(provider)
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).
			WithCause(err).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case status >= 400 && status < 500:
		return types.NewError(types.ErrInvalidRequest, msg).
			WithCause(err).WithHTTPStatus(status).WithProvider(provider)
	default:
		return types.NewError(types.ErrServiceUnavailable, msg).
			WithCause(err).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	}
}
