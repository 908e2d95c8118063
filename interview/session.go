package interview

import (
	"fmt"
	"strings"
	"time"

	"github.com/ahmadarif238/vivagraph-ai/types"
)

// Role 对话轮次的发言方
type Role string

const (
	RoleExaminer  Role = "examiner"
	RoleCandidate Role = "candidate"
)

// Stage 面试阶段，只能前进不能回退
type Stage string

const (
	StageIntro      Stage = "intro"
	StageFoundation Stage = "foundation"
	StageDepth      Stage = "depth"
)

func (s Stage) rank() int {
	switch s {
	case StageIntro:
		return 0
	case StageFoundation:
		return 1
	case StageDepth:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s.rank() >= 0 }

// Before reports whether s comes strictly before other.
func (s Stage) Before(other Stage) bool { return s.rank() < other.rank() }

// Mode 面试模式
type Mode string

const (
	ModeStandard     Mode = "standard"
	ModePresentation Mode = "presentation"
)

// ParseMode accepts "viva" as an alias of the standard mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "viva":
		return ModeStandard, nil
	case "presentation":
		return ModePresentation, nil
	default:
		return "", fmt.Errorf("unknown interview mode %q", s)
	}
}

// PresentationStage 演示模式下的子阶段
type PresentationStage string

const (
	PresentationSpeaking PresentationStage = "speaking"
	PresentationQA       PresentationStage = "qa"
)

// Turn 一条对话记录
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// AnswerScore 单个回答的评分，追加后不再修改
type AnswerScore struct {
	ConceptCorrectness int    `json:"concept_correctness"`
	Clarity            int    `json:"clarity"`
	Completeness       int    `json:"completeness"`
	Confidence         int    `json:"confidence"`
	FollowUpHandling   int    `json:"handling"`
	Feedback           string `json:"feedback"`
	ImprovedAnswer     string `json:"improved_answer,omitempty"`
}

// Total 五项子分之和，范围 0-10
func (a AnswerScore) Total() int {
	return a.ConceptCorrectness + a.Clarity + a.Completeness + a.Confidence + a.FollowUpHandling
}

// ConfidenceLabel 自信度等级
type ConfidenceLabel string

const (
	ConfidenceLow    ConfidenceLabel = "Low"
	ConfidenceMedium ConfidenceLabel = "Medium"
	ConfidenceHigh   ConfidenceLabel = "High"
)

// ConfidenceSignal 根据最近一次回答推导的自信度指标
type ConfidenceSignal struct {
	HesitationCount int             `json:"hesitation_count"`
	PauseDurationMs int             `json:"pause_duration_ms"`
	WordsPerMinute  int             `json:"wpm"`
	Label           ConfidenceLabel `json:"confidence"`
}

// MasteryRecord 用户在某个主题上的掌握度，范围 0-100
type MasteryRecord struct {
	UserID    string    `json:"user_id"`
	Topic     string    `json:"topic"`
	Level     int       `json:"mastery_level"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session 一次面试的完整可序列化状态。
// 工作流每一步都读写它，检查点按会话 ID 保存它的快照。
type Session struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id,omitempty"`
	Topic             string            `json:"topic"`
	Strictness        string            `json:"strictness"`
	Mode              Mode              `json:"mode"`
	Stage             Stage             `json:"stage"`
	PresentationStage PresentationStage `json:"presentation_stage"`
	History           []Turn            `json:"history"`
	Scores            []AnswerScore     `json:"scores"`
	Confidence        *ConfidenceSignal `json:"confidence,omitempty"`
	QuestionCount     int               `json:"question_count"`
	Complete          bool              `json:"complete"`
	Feedback          string            `json:"feedback,omitempty"`
	FinalScore        float64           `json:"final_score"`
	Mastery           int               `json:"mastery"`
	CurrentQuestionID string            `json:"current_question_id,omitempty"`
	CurrentAnswerID   string            `json:"current_answer_id,omitempty"`
}

// NewSession builds a fresh session with the initial stage set for mode.
func NewSession(id, topic, strictness string, mode Mode) *Session {
	s := &Session{
		ID:         id,
		Topic:      topic,
		Strictness: strictness,
		Mode:       mode,
	}
	s.ApplyDefaults()
	return s
}

// ApplyDefaults 填充缺省字段
func (s *Session) ApplyDefaults() {
	if s.Topic == "" {
		s.Topic = "General"
	}
	if s.Strictness == "" {
		s.Strictness = "moderate"
	}
	if s.Mode == "" {
		s.Mode = ModeStandard
	}
	if s.Stage == "" {
		s.Stage = StageIntro
	}
	if s.PresentationStage == "" {
		if s.Mode == ModePresentation {
			s.PresentationStage = PresentationSpeaking
		} else {
			s.PresentationStage = PresentationQA
		}
	}
}

// Validate 检查会话状态是否可以进入工作流
func (s *Session) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return types.NewInvalidRequestError("session id is required")
	}
	if !s.Stage.Valid() {
		return types.NewInvalidRequestError(fmt.Sprintf("unknown stage %q", s.Stage))
	}
	switch s.Mode {
	case ModeStandard, ModePresentation:
	default:
		return types.NewInvalidRequestError(fmt.Sprintf("unknown mode %q", s.Mode))
	}
	switch s.PresentationStage {
	case PresentationSpeaking, PresentationQA:
	default:
		return types.NewInvalidRequestError(fmt.Sprintf("unknown presentation stage %q", s.PresentationStage))
	}
	return nil
}

// TurnCount is the policy's notion of progress: the number of history entries.
func (s *Session) TurnCount() int { return len(s.History) }

// LastTurn returns the most recent turn, if any.
func (s *Session) LastTurn() (Turn, bool) {
	if len(s.History) == 0 {
		return Turn{}, false
	}
	return s.History[len(s.History)-1], true
}

// AwaitingCandidate reports whether the latest turn is the candidate's.
func (s *Session) AwaitingCandidate() bool {
	t, ok := s.LastTurn()
	return ok && t.Role == RoleCandidate
}

// AppendTurn 追加一条对话记录
func (s *Session) AppendTurn(role Role, content string) Turn {
	t := Turn{
		Role:      role,
		Content:   content,
		Seq:       len(s.History) + 1,
		CreatedAt: time.Now().UTC(),
	}
	s.History = append(s.History, t)
	return t
}

// LatestScore returns the most recent answer score.
func (s *Session) LatestScore() (AnswerScore, bool) {
	if len(s.Scores) == 0 {
		return AnswerScore{}, false
	}
	return s.Scores[len(s.Scores)-1], true
}

// Clone 深拷贝会话，工作流在副本上执行，失败时不影响已保存的检查点
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = append([]Turn(nil), s.History...)
	c.Scores = append([]AnswerScore(nil), s.Scores...)
	if s.Confidence != nil {
		conf := *s.Confidence
		c.Confidence = &conf
	}
	return &c
}
