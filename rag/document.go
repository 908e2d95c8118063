package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MetadataSessionID 文档元数据中的会话隔离键
const MetadataSessionID = "session_id"

// Document 向量库中的一个文本块
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float64      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// VectorSearchResult 向量搜索结果
type VectorSearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
	Distance float64  `json:"distance"`
}

// Filter 元数据等值过滤条件，所有键都必须匹配
type Filter map[string]string

// Matches reports whether metadata satisfies every key of f.
func (f Filter) Matches(metadata map[string]any) bool {
	for k, want := range f {
		v, ok := metadata[k]
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok || s != want {
			return false
		}
	}
	return true
}

// SessionFilter 只匹配属于 sessionID 的文档
func SessionFilter(sessionID string) Filter {
	return Filter{MetadataSessionID: sessionID}
}

// Passage 检索返回给调用方的段落
type Passage struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ContentHash 以去除首尾空白后的内容计算哈希，用于去重
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}
