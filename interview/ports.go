package interview

import "context"

// Prompt 一个命名的提示词模板，Template 使用 text/template 语法
type Prompt struct {
	Name        string
	System      string
	Template    string
	Temperature float64
}

// Model 语言模型黑盒：渲染提示词变量并返回生成文本。
// 任何错误都视为 MODEL_CALL_FAILURE。
type Model interface {
	Generate(ctx context.Context, prompt Prompt, vars map[string]any) (string, error)
}

// Retriever 按会话隔离的上下文检索。sessionID 为空时必须返回空结果。
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, sessionID string) ([]string, error)
}

// QuestionRecord 持久化的题目
type QuestionRecord struct {
	SessionID    string
	Text         string
	Order        int
	ConceptFocus string
}

// Recorder 工作流节点使用的持久化端口，失败只记录日志不会中断本轮
type Recorder interface {
	SaveQuestion(ctx context.Context, q QuestionRecord) (string, error)
	SaveConfidence(ctx context.Context, answerID string, signal ConfidenceSignal) error
	SaveEvaluation(ctx context.Context, answerID string, score AnswerScore) error
	// CompleteSession 写入终态。first 为 false 表示会话此前已结束，本次未修改任何数据
	CompleteSession(ctx context.Context, sessionID string, finalScore float64, feedback string) (first bool, err error)
	GetMastery(ctx context.Context, userID, topic string) (level int, found bool, err error)
	SaveMastery(ctx context.Context, userID, topic string, level int) error
}

// Registry 会话建立与答案关联使用的持久化端口
type Registry interface {
	EnsureUser(ctx context.Context, email string) (string, error)
	CreateSession(ctx context.Context, s *Session) error
	SaveAnswer(ctx context.Context, questionID, transcript string) (string, error)
	ListMastery(ctx context.Context, userID string) ([]MasteryRecord, error)
}

// NopRecorder discards every write. Mastery reads report no prior record.
type NopRecorder struct{}

func (NopRecorder) SaveQuestion(context.Context, QuestionRecord) (string, error) { return "", nil }
func (NopRecorder) SaveConfidence(context.Context, string, ConfidenceSignal) error {
	return nil
}
func (NopRecorder) SaveEvaluation(context.Context, string, AnswerScore) error { return nil }
func (NopRecorder) CompleteSession(context.Context, string, float64, string) (bool, error) {
	return true, nil
}
func (NopRecorder) GetMastery(context.Context, string, string) (int, bool, error) {
	return 0, false, nil
}
func (NopRecorder) SaveMastery(context.Context, string, string, int) error { return nil }
