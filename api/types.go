package api

import (
	"encoding/json"
	"time"

	"github.com/ahmadarif238/vivagraph-ai/internal/persistence"
	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/workflow"
)

// =============================================================================
// 🎓 Session API Types
// =============================================================================

// BeginSessionRequest 开始会话请求（JSON 形式，multipart 形式字段同名）
type BeginSessionRequest struct {
	Email      string `json:"email"`
	Topic      string `json:"topic"`
	Strictness string `json:"strictness,omitempty"`
	Mode       string `json:"mode,omitempty"`
	// Document 纯文本资料
	Document string `json:"document,omitempty"`
}

// SubmitAnswerRequest 提交回答请求。
// Answer 可以是字符串，也可以是带时间戳的转写 JSON 对象。
type SubmitAnswerRequest struct {
	Answer json.RawMessage `json:"answer"`
}

// AnswerText 返回提交给引擎的回答文本；对象形式原样保留给自信度分析
func (r SubmitAnswerRequest) AnswerText() (string, error) {
	if len(r.Answer) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(r.Answer, &s); err == nil {
		return s, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(r.Answer, &obj); err != nil {
		return "", err
	}
	return string(r.Answer), nil
}

// SessionResponse 每轮交互返回给调用方的结果
type SessionResponse struct {
	SessionID         string                      `json:"session_id"`
	Status            string                      `json:"status"`
	Question          string                      `json:"question,omitempty"`
	Feedback          string                      `json:"feedback,omitempty"`
	Report            *interview.FeedbackReport   `json:"report,omitempty"`
	FinalScore        *float64                    `json:"final_score,omitempty"`
	Stage             interview.Stage             `json:"stage"`
	PresentationStage interview.PresentationStage `json:"presentation_stage,omitempty"`
	QuestionCount     int                         `json:"question_count"`
}

// NewSessionResponse 从引擎结果构造响应；进行中不返回分数
func NewSessionResponse(r *workflow.Result) SessionResponse {
	resp := SessionResponse{
		SessionID:         r.SessionID,
		Status:            string(r.Status),
		Stage:             r.Stage,
		PresentationStage: r.PresentationStage,
		QuestionCount:     r.QuestionCount,
	}
	if r.Completed() {
		score := r.FinalScore
		resp.Feedback = r.Feedback
		resp.Report = r.Report
		resp.FinalScore = &score
	} else {
		resp.Question = r.Question
	}
	return resp
}

// SessionStateResponse 会话检查点快照
type SessionStateResponse struct {
	SessionID  string                     `json:"session_id"`
	Status     string                     `json:"status"`
	Next       string                     `json:"next,omitempty"`
	Version    int                        `json:"version"`
	UpdatedAt  time.Time                  `json:"updated_at"`
	Session    *interview.Session         `json:"session"`
	Executions []workflow.ExecutionRecord `json:"executions,omitempty"`
}

// MasteryResponse 用户掌握度列表
type MasteryResponse struct {
	Email   string                    `json:"email"`
	Records []interview.MasteryRecord `json:"records"`
}

// TranscriptResponse 已持久化的会话记录（题目与回答），检查点过期后仍可读取
type TranscriptResponse struct {
	SessionID  string               `json:"session_id"`
	Topic      string               `json:"topic"`
	Mode       string               `json:"mode"`
	Status     string               `json:"status"`
	FinalScore *float64             `json:"final_score,omitempty"`
	Feedback   string               `json:"feedback,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	EndedAt    *time.Time           `json:"ended_at,omitempty"`
	Questions  []TranscriptQuestion `json:"questions"`
}

// TranscriptQuestion 一道题及其回答
type TranscriptQuestion struct {
	ID           string             `json:"id"`
	Order        int                `json:"order"`
	Text         string             `json:"text"`
	ConceptFocus string             `json:"concept_focus,omitempty"`
	Answers      []TranscriptAnswer `json:"answers"`
}

// TranscriptAnswer 一次回答
type TranscriptAnswer struct {
	ID         string    `json:"id"`
	Transcript string    `json:"transcript"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewTranscriptResponse 从持久化记录构造响应
func NewTranscriptResponse(tr *persistence.SessionTranscript) TranscriptResponse {
	resp := TranscriptResponse{
		SessionID:  tr.Session.ID,
		Topic:      tr.Session.Topic,
		Mode:       tr.Session.Mode,
		Status:     tr.Session.Status,
		FinalScore: tr.Session.FinalScore,
		Feedback:   tr.Session.Feedback,
		StartedAt:  tr.Session.StartedAt,
		EndedAt:    tr.Session.EndedAt,
		Questions:  make([]TranscriptQuestion, 0, len(tr.Questions)),
	}
	for _, q := range tr.Questions {
		tq := TranscriptQuestion{
			ID:           q.ID,
			Order:        q.QuestionOrder,
			Text:         q.QuestionText,
			ConceptFocus: q.ConceptFocus,
			Answers:      []TranscriptAnswer{},
		}
		for _, a := range tr.Answers[q.ID] {
			tq.Answers = append(tq.Answers, TranscriptAnswer{ID: a.ID, Transcript: a.Transcript, CreatedAt: a.CreatedAt})
		}
		resp.Questions = append(resp.Questions, tq)
	}
	return resp
}
