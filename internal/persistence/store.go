package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/types"
)

// Store 基于 GORM 的面试记录存储，实现 interview.Recorder 与 interview.Registry
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

var (
	_ interview.Recorder = (*Store)(nil)
	_ interview.Registry = (*Store)(nil)
)

// NewStore 创建 Store
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "persistence")),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// AutoMigrate 用 GORM 建表，适合开发环境；生产环境走 vivagraph migrate
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return types.NewPersistenceError("auto migrate", err)
	}
	return nil
}

// =============================================================================
// interview.Registry
// =============================================================================

// EnsureUser 按邮箱查找用户，不存在则创建
func (s *Store) EnsureUser(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", types.NewInvalidRequestError("email is required")
	}

	var user UserModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", types.NewPersistenceError("find user", err)
	}

	name, _, _ := strings.Cut(email, "@")
	user = UserModel{ID: s.newID(), Email: email, FullName: name, CreatedAt: s.now()}
	// 并发创建时邮箱唯一约束冲突，回读已存在的行
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return "", types.NewPersistenceError("create user", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
			return "", types.NewPersistenceError("find user", err)
		}
	}
	s.logger.Debug("user created", zap.String("user_id", user.ID))
	return user.ID, nil
}

// CreateSession 写入会话行
func (s *Store) CreateSession(ctx context.Context, sess *interview.Session) error {
	row := SessionModel{
		ID:         sess.ID,
		Topic:      sess.Topic,
		Strictness: sess.Strictness,
		Mode:       string(sess.Mode),
		Status:     SessionStatusActive,
		StartedAt:  s.now(),
	}
	if sess.UserID != "" {
		uid := sess.UserID
		row.UserID = &uid
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return types.NewPersistenceError("create session", err)
	}
	return nil
}

// SaveAnswer 写入回答并返回其 ID。同一题目已有相同文本的回答时复用该行，
// 重试失败的一轮不会产生重复回答。
func (s *Store) SaveAnswer(ctx context.Context, questionID, transcript string) (string, error) {
	db := s.db.WithContext(ctx)
	var existing AnswerModel
	err := db.Where("question_id = ? AND transcript = ?", questionID, transcript).
		Order("created_at").
		First(&existing).Error
	switch {
	case err == nil:
		return existing.ID, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", types.NewPersistenceError("find answer", err)
	}

	row := AnswerModel{ID: s.newID(), QuestionID: questionID, Transcript: transcript, CreatedAt: s.now()}
	if err := db.Create(&row).Error; err != nil {
		return "", types.NewPersistenceError("save answer", err)
	}
	return row.ID, nil
}

// ListMastery 列出用户所有主题的掌握度，按主题排序
func (s *Store) ListMastery(ctx context.Context, userID string) ([]interview.MasteryRecord, error) {
	var rows []TopicMasteryModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("topic").Find(&rows).Error; err != nil {
		return nil, types.NewPersistenceError("list mastery", err)
	}
	out := make([]interview.MasteryRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, interview.MasteryRecord{
			UserID:    r.UserID,
			Topic:     r.Topic,
			Level:     r.MasteryLevel,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

// LookupUser 按邮箱查用户 ID，不存在时 found 为 false
func (s *Store) LookupUser(ctx context.Context, email string) (string, bool, error) {
	var user UserModel
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	case err != nil:
		return "", false, types.NewPersistenceError("find user", err)
	}
	return user.ID, true, nil
}

// =============================================================================
// interview.Recorder
// =============================================================================

func (s *Store) SaveQuestion(ctx context.Context, q interview.QuestionRecord) (string, error) {
	row := QuestionModel{
		ID:            s.newID(),
		SessionID:     q.SessionID,
		QuestionText:  q.Text,
		QuestionOrder: q.Order,
		ConceptFocus:  q.ConceptFocus,
		CreatedAt:     s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", types.NewPersistenceError("save question", err)
	}
	return row.ID, nil
}

func (s *Store) SaveConfidence(ctx context.Context, answerID string, sig interview.ConfidenceSignal) error {
	row := ConfidenceMetricModel{
		ID:              s.newID(),
		AnswerID:        answerID,
		HesitationCount: sig.HesitationCount,
		PauseDurationMs: sig.PauseDurationMs,
		WordsPerMinute:  sig.WordsPerMinute,
		ConfidenceLevel: string(sig.Label),
		CreatedAt:       s.now(),
	}
	if err := s.replaceForAnswer(ctx, answerID, &ConfidenceMetricModel{}, &row); err != nil {
		return types.NewPersistenceError("save confidence", err)
	}
	return nil
}

func (s *Store) SaveEvaluation(ctx context.Context, answerID string, score interview.AnswerScore) error {
	row := EvaluationModel{
		ID:                 s.newID(),
		AnswerID:           answerID,
		ConceptCorrectness: score.ConceptCorrectness,
		Clarity:            score.Clarity,
		Completeness:       score.Completeness,
		Confidence:         score.Confidence,
		FollowUpHandling:   score.FollowUpHandling,
		Feedback:           score.Feedback,
		ImprovedAnswer:     score.ImprovedAnswer,
		CreatedAt:          s.now(),
	}
	if err := s.replaceForAnswer(ctx, answerID, &EvaluationModel{}, &row); err != nil {
		return types.NewPersistenceError("save evaluation", err)
	}
	return nil
}

// replaceForAnswer 每个回答只保留一行指标或评分，重试时覆盖上一次的写入
func (s *Store) replaceForAnswer(ctx context.Context, answerID string, model, row any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("answer_id = ?", answerID).Delete(model).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
}

// CompleteSession 把进行中的会话标记为结束并写入总分与反馈。
// 已结束的会话保持不变并返回 first=false；没有会话行时记录警告并视为首次。
func (s *Store) CompleteSession(ctx context.Context, sessionID string, finalScore float64, feedback string) (bool, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&SessionModel{}).
		Where("id = ? AND status <> ?", sessionID, SessionStatusCompleted).
		Updates(map[string]any{
			"status":      SessionStatusCompleted,
			"final_score": finalScore,
			"feedback":    feedback,
			"ended_at":    s.now(),
		})
	if res.Error != nil {
		return false, types.NewPersistenceError("complete session", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var n int64
	if err := db.Model(&SessionModel{}).Where("id = ?", sessionID).Count(&n).Error; err != nil {
		return false, types.NewPersistenceError("complete session", err)
	}
	if n == 0 {
		s.logger.Warn("complete session: no session row", zap.String("session_id", sessionID))
		return true, nil
	}
	return false, nil
}

func (s *Store) GetMastery(ctx context.Context, userID, topic string) (int, bool, error) {
	var row TopicMasteryModel
	err := s.db.WithContext(ctx).Where("user_id = ? AND topic = ?", userID, topic).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 0, false, nil
	case err != nil:
		return 0, false, types.NewPersistenceError("get mastery", err)
	}
	return row.MasteryLevel, true, nil
}

// SaveMastery 按 (user_id, topic) upsert
func (s *Store) SaveMastery(ctx context.Context, userID, topic string, level int) error {
	row := TopicMasteryModel{
		ID:           s.newID(),
		UserID:       userID,
		Topic:        topic,
		MasteryLevel: level,
		UpdatedAt:    s.now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "topic"}},
		DoUpdates: clause.AssignmentColumns([]string{"mastery_level", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return types.NewPersistenceError("save mastery", err)
	}
	return nil
}

// =============================================================================
// 查询
// =============================================================================

// SessionTranscript 会话的题目与回答，按题号排序，供调试与导出
type SessionTranscript struct {
	Session   SessionModel
	Questions []QuestionModel
	Answers   map[string][]AnswerModel
}

// GetSessionTranscript 读取会话行及其题目和回答
func (s *Store) GetSessionTranscript(ctx context.Context, sessionID string) (*SessionTranscript, error) {
	out := &SessionTranscript{Answers: make(map[string][]AnswerModel)}
	db := s.db.WithContext(ctx)

	if err := db.First(&out.Session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewSessionNotFoundError(sessionID)
		}
		return nil, types.NewPersistenceError("get session", err)
	}
	if err := db.Where("session_id = ?", sessionID).Order("question_order").Find(&out.Questions).Error; err != nil {
		return nil, types.NewPersistenceError("list questions", err)
	}
	if len(out.Questions) == 0 {
		return out, nil
	}

	ids := make([]string, len(out.Questions))
	for i, q := range out.Questions {
		ids[i] = q.ID
	}
	var answers []AnswerModel
	if err := db.Where("question_id IN ?", ids).Order("created_at").Find(&answers).Error; err != nil {
		return nil, types.NewPersistenceError("list answers", err)
	}
	for _, a := range answers {
		out.Answers[a.QuestionID] = append(out.Answers[a.QuestionID], a)
	}
	return out, nil
}
