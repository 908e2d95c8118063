package circuitbreaker

import (
	"context"
	"errors"
	"net/http"

	"github.com/ahmadarif238/vivagraph-ai/llm"
	"github.com/ahmadarif238/vivagraph-ai/types"
	"go.uber.org/zap"
)

// Provider 为 llm.Provider 加熔断保护。
// 熔断打开时直接返回可重试的 SERVICE_UNAVAILABLE，不再请求上游。
type Provider struct {
	next llm.Provider
	cb   CircuitBreaker
}

var _ llm.Provider = (*Provider)(nil)

// Wrap 用熔断器包装 Provider
func Wrap(next llm.Provider, cfg *Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		next: next,
		cb:   NewCircuitBreaker(cfg, logger.With(zap.String("provider", next.Name()))),
	}
}

func (p *Provider) Name() string { return p.next.Name() }

// State 当前熔断状态
func (p *Provider) State() State { return p.cb.State() }

func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := CallWithResultTyped(p.cb, ctx, func() (*llm.ChatResponse, error) {
		return p.next.Completion(ctx, req)
	})
	if err != nil {
		return nil, p.translate(err)
	}
	return resp, nil
}

// HealthCheck 透传；熔断打开时报告不健康
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	if p.cb.State() == StateOpen {
		return &llm.HealthStatus{Healthy: false, Message: "circuit open"}, nil
	}
	return p.next.HealthCheck(ctx)
}

func (p *Provider) translate(err error) error {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyCallsInHalfOpen) {
		return types.NewError(types.ErrServiceUnavailable, "model provider temporarily unavailable").
			WithCause(err).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithProvider(p.next.Name())
	}
	return err
}
