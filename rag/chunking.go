package rag

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ChunkingConfig 递归字符分块配置，长度按字符（rune）计
type ChunkingConfig struct {
	ChunkSize    int      `json:"chunk_size" yaml:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap int      `json:"chunk_overlap" yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	Separators   []string `json:"separators" yaml:"separators"`
}

// DefaultChunkingConfig 默认分块配置：1500 字符，重叠 50，优先按多空行切分
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:    1500,
		ChunkOverlap: 50,
		Separators:   []string{"\n\n\n", "\n\n", "\n", ". ", " ", ""},
	}
}

// RecursiveSplitter 按分隔符优先级递归切分文本。
// 分隔符保留在后一段的开头；合并后的块去除首尾空白，空块丢弃。
type RecursiveSplitter struct {
	cfg    ChunkingConfig
	logger *zap.Logger
}

// NewRecursiveSplitter 创建分块器
func NewRecursiveSplitter(cfg ChunkingConfig, logger *zap.Logger) *RecursiveSplitter {
	d := DefaultChunkingConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = d.ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = d.Separators
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecursiveSplitter{cfg: cfg, logger: logger.With(zap.String("component", "splitter"))}
}

// Split 切分文本
func (r *RecursiveSplitter) Split(text string) []string {
	chunks := r.split(text, r.cfg.Separators)
	r.logger.Debug("text split",
		zap.Int("chars", utf8.RuneCountInString(text)),
		zap.Int("chunks", len(chunks)))
	return chunks
}

func (r *RecursiveSplitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = ""
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var out, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if length(piece) < r.cfg.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, r.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, r.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, r.merge(good)...)
	}
	return out
}

// merge 把小片段拼接成不超过 ChunkSize 的块，相邻块之间保留约 ChunkOverlap 的重叠
func (r *RecursiveSplitter) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := length(p)
		if total+n > r.cfg.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > r.cfg.ChunkOverlap || (total+n > r.cfg.ChunkSize && total > 0) {
				total -= length(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func splitKeepSeparator(text, separator string) []string {
	var pieces []string
	if separator == "" {
		pieces = make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	parts := strings.Split(text, separator)
	pieces = make([]string, 0, len(parts))
	if parts[0] != "" {
		pieces = append(pieces, parts[0])
	}
	for _, p := range parts[1:] {
		pieces = append(pieces, separator+p)
	}
	return pieces
}

func length(s string) int { return utf8.RuneCountInString(s) }

// DedupChunks 删除内容（去除首尾空白后）完全相同的块，保留首次出现的顺序
func DedupChunks(chunks []string) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		h := ContentHash(c)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, c)
	}
	return out
}
