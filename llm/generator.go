package llm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// GenerationObserver 每次模型调用结束后回调（指标采集）
type GenerationObserver func(prompt, model string, duration time.Duration, usage ChatUsage, err error)

// Generator 基于 Provider 的 interview.Model 实现
type Generator struct {
	provider  Provider
	model     string
	maxTokens int
	observe   GenerationObserver
	logger    *zap.Logger

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// GeneratorOption 配置项
type GeneratorOption func(*Generator)

// WithModel 覆盖 Provider 的默认模型
func WithModel(model string) GeneratorOption {
	return func(g *Generator) { g.model = model }
}

// WithMaxTokens 限制单次输出 token
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) { g.maxTokens = n }
}

// WithGenerationObserver 设置调用观测回调
func WithGenerationObserver(fn GenerationObserver) GeneratorOption {
	return func(g *Generator) { g.observe = fn }
}

// NewGenerator 创建 Generator
func NewGenerator(provider Provider, logger *zap.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		provider:  provider,
		logger:    logger.With(zap.String("component", "generator")),
		templates: make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ interview.Model = (*Generator)(nil)

// Generate 渲染提示词并调用模型，返回去除首尾空白的文本
func (g *Generator) Generate(ctx context.Context, prompt interview.Prompt, vars map[string]any) (string, error) {
	ctx, span := otel.Tracer("vivagraph/llm").Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("prompt", prompt.Name),
		attribute.String("provider", g.provider.Name()),
	)

	user, err := g.render(prompt, vars)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return "", err
	}

	req := &ChatRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: prompt.Temperature,
		Messages: []Message{
			{Role: RoleSystem, Content: prompt.System},
			{Role: RoleUser, Content: user},
		},
	}
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	}

	start := time.Now()
	resp, err := g.provider.Completion(ctx, req)
	duration := time.Since(start)

	var usage ChatUsage
	model := g.model
	if resp != nil {
		usage = resp.Usage
		if resp.Model != "" {
			model = resp.Model
		}
	}
	if g.observe != nil {
		g.observe(prompt.Name, model, duration, usage, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		g.logger.Warn("completion failed",
			zap.String("prompt", prompt.Name),
			zap.Duration("duration", duration),
			zap.Error(err))
		return "", err
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("provider %s returned no choices", g.provider.Name())
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty response")
		return "", err
	}

	span.SetAttributes(attribute.Int("tokens.total", usage.TotalTokens))
	g.logger.Debug("completion finished",
		zap.String("prompt", prompt.Name),
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", usage.TotalTokens))

	return strings.TrimSpace(resp.FirstContent()), nil
}

func (g *Generator) render(prompt interview.Prompt, vars map[string]any) (string, error) {
	tmpl, err := g.template(prompt)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", prompt.Name, err)
	}
	return buf.String(), nil
}

// template 按提示词名称缓存解析结果
func (g *Generator) template(prompt interview.Prompt) (*template.Template, error) {
	key := prompt.Name + "\x00" + prompt.Template

	g.mu.RLock()
	tmpl, ok := g.templates[key]
	g.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := template.New(prompt.Name).Option("missingkey=error").Parse(prompt.Template)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", prompt.Name, err)
	}

	g.mu.Lock()
	g.templates[key] = tmpl
	g.mu.Unlock()
	return tmpl, nil
}
