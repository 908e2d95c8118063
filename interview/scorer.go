package interview

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/ahmadarif238/vivagraph-ai/types"
)

const (
	noContextSentinel    = "No specific context retrieved."
	parseFailureFeedback = "Error parsing evaluation."
	defaultScorerK       = 3
)

var errNoJSONObject = errors.New("no JSON object in model output")

// Scorer 回答评分节点
type Scorer struct {
	model     Model
	retriever Retriever
	recorder  Recorder
	k         int
	logger    *zap.Logger
}

// ScorerOption 评分节点配置项
type ScorerOption func(*Scorer)

// WithScorerRetrievalK 设置评分检索条数
func WithScorerRetrievalK(k int) ScorerOption {
	return func(s *Scorer) {
		if k > 0 {
			s.k = k
		}
	}
}

// NewScorer 创建评分节点
func NewScorer(model Model, retriever Retriever, recorder Recorder, logger *zap.Logger, opts ...ScorerOption) *Scorer {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scorer{
		model:     model,
		retriever: retriever,
		recorder:  recorder,
		k:         defaultScorerK,
		logger:    logger.With(zap.String("component", "scorer")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score 为最近的 (题目, 回答) 对评分并追加到 s.Scores。
// 解析失败得到全零分；只有模型调用失败会返回错误。
func (sc *Scorer) Score(ctx context.Context, s *Session) error {
	n := len(s.History)
	if n < 2 || s.History[n-1].Role != RoleCandidate {
		return nil
	}
	question := s.History[n-2].Content
	answer := s.History[n-1].Content

	contextText := noContextSentinel
	if sc.retriever != nil {
		passages, err := sc.retriever.Retrieve(ctx, question+"\n"+answer, sc.k, s.ID)
		if err != nil {
			sc.logger.Warn("context retrieval failed", zap.String("session_id", s.ID), zap.Error(err))
		} else if len(passages) > 0 {
			contextText = strings.Join(passages, "\n\n")
		}
	}

	reply, err := sc.model.Generate(ctx, EvaluationPrompt, map[string]any{
		"context":  contextText,
		"question": question,
		"answer":   answer,
	})
	if err != nil {
		return types.NewModelCallError("scorer", err)
	}

	score, err := ParseScore(reply)
	if err != nil {
		sc.logger.Warn("evaluation output could not be parsed",
			zap.String("session_id", s.ID),
			zap.String("code", string(types.ErrScoreParseFailure)),
			zap.Error(err),
		)
		score = AnswerScore{Feedback: parseFailureFeedback}
	}
	s.Scores = append(s.Scores, score)

	if s.CurrentAnswerID != "" {
		if err := sc.recorder.SaveEvaluation(ctx, s.CurrentAnswerID, score); err != nil {
			sc.logger.Warn("failed to persist evaluation",
				zap.String("session_id", s.ID),
				zap.String("answer_id", s.CurrentAnswerID),
				zap.Error(err),
			)
		}
	}
	return nil
}

type rawScore struct {
	ConceptCorrectness *float64 `json:"concept_correctness"`
	Clarity            *float64 `json:"clarity"`
	Completeness       *float64 `json:"completeness"`
	Confidence         *float64 `json:"confidence"`
	Handling           *float64 `json:"handling"`
	Feedback           string   `json:"feedback"`
	FeedbackText       string   `json:"feedback_text"`
	ImprovedAnswer     string   `json:"improved_answer"`
}

// ParseScore 解析模型评分输出：去掉代码块围栏，取第一个 JSON 对象，
// 缺失字段记 0，越界值截断到评分区间。
func ParseScore(reply string) (AnswerScore, error) {
	obj, err := ExtractJSONObject(reply)
	if err != nil {
		return AnswerScore{}, err
	}
	var raw rawScore
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return AnswerScore{}, err
	}
	feedback := raw.Feedback
	if feedback == "" {
		feedback = raw.FeedbackText
	}
	return AnswerScore{
		ConceptCorrectness: clampScore(raw.ConceptCorrectness, 4),
		Clarity:            clampScore(raw.Clarity, 2),
		Completeness:       clampScore(raw.Completeness, 2),
		Confidence:         clampScore(raw.Confidence, 1),
		FollowUpHandling:   clampScore(raw.Handling, 1),
		Feedback:           feedback,
		ImprovedAnswer:     raw.ImprovedAnswer,
	}, nil
}

// ExtractJSONObject returns the first balanced {...} object in s.
func ExtractJSONObject(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errNoJSONObject
	}
	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errNoJSONObject
}

func clampScore(v *float64, max int) int {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	r := int(math.Round(*v))
	if r < 0 {
		return 0
	}
	if r > max {
		return max
	}
	return r
}
