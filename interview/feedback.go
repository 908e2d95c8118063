package interview

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/ahmadarif238/vivagraph-ai/types"
)

// FeedbackResource 推荐学习资源
type FeedbackResource struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	Link  string `json:"link"`
}

// FeedbackReport 最终报告的结构化形式
type FeedbackReport struct {
	OverallScore    float64            `json:"overall_score"`
	Summary         string             `json:"summary"`
	Strengths       []string           `json:"strengths"`
	Weaknesses      []string           `json:"weaknesses"`
	ImprovementTips []string           `json:"improvement_tips"`
	Resources       []FeedbackResource `json:"resources"`
}

// Clone 深拷贝
func (r *FeedbackReport) Clone() *FeedbackReport {
	if r == nil {
		return nil
	}
	out := *r
	out.Strengths = append([]string(nil), r.Strengths...)
	out.Weaknesses = append([]string(nil), r.Weaknesses...)
	out.ImprovementTips = append([]string(nil), r.ImprovementTips...)
	out.Resources = append([]FeedbackResource(nil), r.Resources...)
	return &out
}

// ParseFeedbackReport decodes the model's report. Callers fall back to the raw
// text when it fails.
func ParseFeedbackReport(text string) (*FeedbackReport, error) {
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}
	var r FeedbackReport
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FeedbackWriter 终止路径上的报告生成节点
type FeedbackWriter struct {
	model  Model
	logger *zap.Logger
}

// NewFeedbackWriter 创建报告生成节点
func NewFeedbackWriter(model Model, logger *zap.Logger) *FeedbackWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackWriter{
		model:  model,
		logger: logger.With(zap.String("component", "feedback")),
	}
}

// Write 生成最终反馈文本；会话未完成时不做任何事
func (f *FeedbackWriter) Write(ctx context.Context, s *Session) error {
	if !s.Complete {
		return nil
	}
	scores, err := json.Marshal(s.Scores)
	if err != nil {
		return err
	}
	text, err := f.model.Generate(ctx, FeedbackPrompt, map[string]any{
		"topic":   s.Topic,
		"scores":  string(scores),
		"history": FormatHistory(s.History),
	})
	if err != nil {
		return types.NewModelCallError("feedback", err)
	}
	s.Feedback = strings.TrimSpace(text)
	f.logger.Info("feedback generated",
		zap.String("session_id", s.ID),
		zap.Int("scores", len(s.Scores)),
	)
	return nil
}
