package interview

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ahmadarif238/vivagraph-ai/types"
)

const (
	generalKnowledge = "General Knowledge"
	defaultExaminerK = 5
)

// Examiner 出题节点
type Examiner struct {
	model     Model
	retriever Retriever
	recorder  Recorder
	k         int
	logger    *zap.Logger
}

// ExaminerOption 出题节点配置项
type ExaminerOption func(*Examiner)

// WithExaminerRetrievalK 设置出题检索条数
func WithExaminerRetrievalK(k int) ExaminerOption {
	return func(e *Examiner) {
		if k > 0 {
			e.k = k
		}
	}
}

// NewExaminer 创建出题节点
func NewExaminer(model Model, retriever Retriever, recorder Recorder, logger *zap.Logger, opts ...ExaminerOption) *Examiner {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Examiner{
		model:     model,
		retriever: retriever,
		recorder:  recorder,
		k:         defaultExaminerK,
		logger:    logger.With(zap.String("component", "examiner")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Persona 当前轮使用的考官人设
func Persona(s *Session) string {
	if s.Mode == ModePresentation && s.PresentationStage == PresentationSpeaking {
		return ListenerPersona()
	}
	return PersonaInstructions(s.Strictness)
}

// Ask 生成下一道题，追加考官轮次并记录题目 ID
func (e *Examiner) Ask(ctx context.Context, s *Session) error {
	query := s.Topic
	if last, ok := s.LastTurn(); ok {
		query += " " + last.Content
	}

	contextText := generalKnowledge
	if e.retriever != nil {
		passages, err := e.retriever.Retrieve(ctx, query, e.k, s.ID)
		if err != nil {
			e.logger.Warn("context retrieval failed", zap.String("session_id", s.ID), zap.Error(err))
		} else if len(passages) > 0 {
			contextText = strings.Join(passages, "\n\n")
		}
	}

	question, err := e.model.Generate(ctx, ExaminerPrompt, map[string]any{
		"context":              contextText,
		"topic":                s.Topic,
		"strictness":           s.Strictness,
		"mastery":              s.Mastery,
		"stage":                string(s.Stage),
		"history":              FormatHistory(s.History),
		"persona_instructions": Persona(s),
	})
	if err != nil {
		return types.NewModelCallError("examiner", err)
	}
	question = strings.TrimSpace(question)

	questionID, err := e.recorder.SaveQuestion(ctx, QuestionRecord{
		SessionID:    s.ID,
		Text:         question,
		Order:        s.QuestionCount + 1,
		ConceptFocus: s.Topic,
	})
	if err != nil {
		e.logger.Warn("failed to persist question",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
		questionID = ""
	}

	s.AppendTurn(RoleExaminer, question)
	s.QuestionCount++
	s.CurrentQuestionID = questionID
	return nil
}
