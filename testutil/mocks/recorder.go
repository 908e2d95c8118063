package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahmadarif238/vivagraph-ai/interview"
)

// MockRecorder 是 interview.Recorder 与 interview.Registry 的内存实现
type MockRecorder struct {
	mu sync.Mutex

	questions   []interview.QuestionRecord
	answers     map[string]string
	confidence  map[string]interview.ConfidenceSignal
	evaluations map[string][]interview.AnswerScore
	completed   map[string]MockSessionResult
	mastery     map[string]int
	users       map[string]string
	sessions    map[string]*interview.Session

	seq int
	err error
}

// MockSessionResult 会话结束时写入的结果
type MockSessionResult struct {
	FinalScore float64
	Feedback   string
	// Writes 实际写入终态的次数，Attempts 包括会话已结束时的调用
	Writes     int
	Attempts   int
}

// NewMockRecorder 创建新的 MockRecorder
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		answers:     make(map[string]string),
		confidence:  make(map[string]interview.ConfidenceSignal),
		evaluations: make(map[string][]interview.AnswerScore),
		completed:   make(map[string]MockSessionResult),
		mastery:     make(map[string]int),
		users:       make(map[string]string),
		sessions:    make(map[string]*interview.Session),
	}
}

// WithError 让所有读写操作返回错误，传 nil 清除
func (r *MockRecorder) WithError(err error) *MockRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// WithMastery 预置掌握度记录
func (r *MockRecorder) WithMastery(userID, topic string, level int) *MockRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mastery[masteryKey(userID, topic)] = level
	return r
}

func masteryKey(userID, topic string) string { return userID + "|" + topic }

func (r *MockRecorder) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

// --- interview.Recorder ---

func (r *MockRecorder) SaveQuestion(_ context.Context, q interview.QuestionRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.questions = append(r.questions, q)
	return r.nextID("q"), nil
}

func (r *MockRecorder) SaveConfidence(_ context.Context, answerID string, sig interview.ConfidenceSignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.confidence[answerID] = sig
	return nil
}

func (r *MockRecorder) SaveEvaluation(_ context.Context, answerID string, score interview.AnswerScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.evaluations[answerID] = []interview.AnswerScore{score}
	return nil
}

func (r *MockRecorder) CompleteSession(_ context.Context, sessionID string, finalScore float64, feedback string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	res := r.completed[sessionID]
	res.Attempts++
	if res.Writes > 0 {
		r.completed[sessionID] = res
		return false, nil
	}
	res.FinalScore, res.Feedback = finalScore, feedback
	res.Writes++
	r.completed[sessionID] = res
	return true, nil
}

func (r *MockRecorder) GetMastery(_ context.Context, userID, topic string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, false, r.err
	}
	level, ok := r.mastery[masteryKey(userID, topic)]
	return level, ok, nil
}

func (r *MockRecorder) SaveMastery(_ context.Context, userID, topic string, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.mastery[masteryKey(userID, topic)] = level
	return nil
}

// --- interview.Registry ---

func (r *MockRecorder) EnsureUser(_ context.Context, email string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	if id, ok := r.users[email]; ok {
		return id, nil
	}
	id := r.nextID("u")
	r.users[email] = id
	return id, nil
}

func (r *MockRecorder) CreateSession(_ context.Context, s *interview.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MockRecorder) SaveAnswer(_ context.Context, questionID, transcript string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	key := questionID + "|" + transcript
	for id, v := range r.answers {
		if v == key {
			return id, nil
		}
	}
	id := r.nextID("a")
	r.answers[id] = key
	return id, nil
}

func (r *MockRecorder) ListMastery(_ context.Context, userID string) ([]interview.MasteryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []interview.MasteryRecord
	for k, v := range r.mastery {
		uid, topic, _ := strings.Cut(k, "|")
		if uid == userID {
			out = append(out, interview.MasteryRecord{UserID: uid, Topic: topic, Level: v})
		}
	}
	return out, nil
}

// --- 断言辅助 ---

// Questions 返回已保存的题目
func (r *MockRecorder) Questions() []interview.QuestionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interview.QuestionRecord(nil), r.questions...)
}

// Result 返回会话结果及写入次数
func (r *MockRecorder) Result(sessionID string) MockSessionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed[sessionID]
}

// MasteryOf 读取掌握度
func (r *MockRecorder) MasteryOf(userID, topic string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.mastery[masteryKey(userID, topic)]
	return v, ok
}

// ConfidenceFor 读取某个回答的自信度记录
func (r *MockRecorder) ConfidenceFor(answerID string) (interview.ConfidenceSignal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.confidence[answerID]
	return v, ok
}

// EvaluationsFor 读取某个回答的评分记录
func (r *MockRecorder) EvaluationsFor(answerID string) []interview.AnswerScore {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interview.AnswerScore(nil), r.evaluations[answerID]...)
}

// EvaluationCount 返回所有已写入的评分条数
func (r *MockRecorder) EvaluationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.evaluations {
		n += len(v)
	}
	return n
}

// AnswerCount 返回已保存的回答条数
func (r *MockRecorder) AnswerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.answers)
}

// Session 返回已创建的会话记录
func (r *MockRecorder) Session(id string) (*interview.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}
