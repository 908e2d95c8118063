package rag

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Tokenizer 上下文预算使用的 token 计数接口
type Tokenizer interface {
	CountTokens(text string) int
}

// EstimateTokenizer 按约 4 字符/token 估算，不需要下载编码数据
type EstimateTokenizer struct{}

func (EstimateTokenizer) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// TiktokenTokenizer 基于 tiktoken 的计数器。
// 编码数据在首次使用时加载；加载失败时回退到字符估算并记录一次警告。
type TiktokenTokenizer struct {
	encoding string
	logger   *zap.Logger

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktokenTokenizer 创建 tiktoken 计数器，encoding 为空时使用 cl100k_base
func NewTiktokenTokenizer(encoding string, logger *zap.Logger) *TiktokenTokenizer {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TiktokenTokenizer{
		encoding: encoding,
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			t.logger.Warn("tiktoken unavailable, falling back to estimate", zap.Error(t.initErr))
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) int {
	if err := t.init(); err != nil {
		return EstimateTokenizer{}.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// TrimToTokenBudget 按顺序保留段落直到累计 token 数超出预算。
// 第一段总是保留；budget <= 0 表示不限制。
func TrimToTokenBudget(passages []Passage, budget int, tok Tokenizer) []Passage {
	if budget <= 0 || tok == nil || len(passages) == 0 {
		return passages
	}
	used := 0
	for i, p := range passages {
		used += tok.CountTokens(p.Content)
		if used > budget && i > 0 {
			return passages[:i]
		}
	}
	return passages
}
