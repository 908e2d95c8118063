package persistence

import "time"

// 表结构与 internal/migration 中的 SQL 迁移保持一致

// UserModel users 表
type UserModel struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Email     string    `gorm:"size:255;not null;uniqueIndex"`
	FullName  string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

// SessionModel sessions 表
type SessionModel struct {
	ID         string  `gorm:"primaryKey;size:64"`
	UserID     *string `gorm:"size:36;index:idx_sessions_user_id"`
	Topic      string  `gorm:"size:255;not null"`
	Strictness string  `gorm:"size:32;not null"`
	Mode       string  `gorm:"size:32;not null;default:standard"`
	Status     string  `gorm:"size:16;not null;default:active"`
	FinalScore *float64
	Feedback   string    `gorm:"type:text"`
	StartedAt  time.Time `gorm:"not null"`
	EndedAt    *time.Time
}

func (SessionModel) TableName() string { return "sessions" }

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// QuestionModel questions 表
type QuestionModel struct {
	ID            string    `gorm:"primaryKey;size:36"`
	SessionID     string    `gorm:"size:64;not null;index:idx_questions_session_id"`
	QuestionText  string    `gorm:"type:text;not null"`
	QuestionOrder int       `gorm:"not null"`
	ConceptFocus  string    `gorm:"size:255"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (QuestionModel) TableName() string { return "questions" }

// AnswerModel answers 表
type AnswerModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	QuestionID string    `gorm:"size:36;not null;index:idx_answers_question_id"`
	Transcript string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (AnswerModel) TableName() string { return "answers" }

// EvaluationModel evaluations 表
type EvaluationModel struct {
	ID                 string    `gorm:"primaryKey;size:36"`
	AnswerID           string    `gorm:"size:36;not null;index:idx_evaluations_answer_id"`
	ConceptCorrectness int       `gorm:"not null"`
	Clarity            int       `gorm:"not null"`
	Completeness       int       `gorm:"not null"`
	Confidence         int       `gorm:"not null"`
	FollowUpHandling   int       `gorm:"not null"`
	Feedback           string    `gorm:"type:text"`
	ImprovedAnswer     string    `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"not null"`
}

func (EvaluationModel) TableName() string { return "evaluations" }

// ConfidenceMetricModel confidence_metrics 表
type ConfidenceMetricModel struct {
	ID              string    `gorm:"primaryKey;size:36"`
	AnswerID        string    `gorm:"size:36;not null;index:idx_confidence_metrics_answer_id"`
	HesitationCount int       `gorm:"not null"`
	PauseDurationMs int       `gorm:"not null"`
	WordsPerMinute  int       `gorm:"not null"`
	ConfidenceLevel string    `gorm:"size:16;not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (ConfidenceMetricModel) TableName() string { return "confidence_metrics" }

// TopicMasteryModel topic_mastery 表，(user_id, topic) 唯一
type TopicMasteryModel struct {
	ID           string    `gorm:"primaryKey;size:36"`
	UserID       string    `gorm:"size:36;not null;uniqueIndex:uq_topic_mastery_user_topic"`
	Topic        string    `gorm:"size:255;not null;uniqueIndex:uq_topic_mastery_user_topic"`
	MasteryLevel int       `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (TopicMasteryModel) TableName() string { return "topic_mastery" }

// Models 返回 AutoMigrate 需要的全部模型，按外键依赖排序
func Models() []any {
	return []any{
		&UserModel{},
		&SessionModel{},
		&QuestionModel{},
		&AnswerModel{},
		&EvaluationModel{},
		&ConfidenceMetricModel{},
		&TopicMasteryModel{},
	}
}
