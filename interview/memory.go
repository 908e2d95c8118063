package interview

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// FinalScore 会话总分：每个回答五项子分之和的平均值，保留两位小数。
// 没有评分时为 0。
func FinalScore(scores []AnswerScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0
	for _, sc := range scores {
		total += sc.Total()
	}
	return round2(float64(total) / float64(len(scores)))
}

// NextMastery 更新主题掌握度：无历史记录时为 round(final*10)，
// 否则为 round((old + final*10)/2)，结果限制在 [0,100]。
func NextMastery(prior int, hasPrior bool, final float64) int {
	scaled := final * 10
	var next float64
	if hasPrior {
		next = (float64(prior) + scaled) / 2
	} else {
		next = scaled
	}
	return clampMastery(int(math.Round(next)))
}

func clampMastery(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MemoryWriter 终止路径上的持久化节点：写入总分、反馈并更新掌握度
type MemoryWriter struct {
	recorder Recorder
	logger   *zap.Logger
}

// NewMemoryWriter 创建记忆写入节点
func NewMemoryWriter(recorder Recorder, logger *zap.Logger) *MemoryWriter {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryWriter{
		recorder: recorder,
		logger:   logger.With(zap.String("component", "memory")),
	}
}

// Commit 计算总分并持久化。持久化失败只记录日志。
// 掌握度只在本次调用把会话写成终态时更新，重复提交不会再次平滑。
func (m *MemoryWriter) Commit(ctx context.Context, s *Session) error {
	if !s.Complete {
		return nil
	}
	s.FinalScore = FinalScore(s.Scores)

	first, err := m.recorder.CompleteSession(ctx, s.ID, s.FinalScore, s.Feedback)
	if err != nil {
		m.logger.Warn("failed to persist session result, mastery not updated",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
		return nil
	}
	if !first {
		m.logger.Info("session result already committed",
			zap.String("session_id", s.ID),
			zap.Float64("final_score", s.FinalScore),
		)
		return nil
	}

	if s.UserID == "" {
		m.logger.Debug("no user bound to session, mastery not updated", zap.String("session_id", s.ID))
		return nil
	}

	prior, found, err := m.recorder.GetMastery(ctx, s.UserID, s.Topic)
	if err != nil {
		m.logger.Warn("failed to read mastery",
			zap.String("session_id", s.ID),
			zap.String("user_id", s.UserID),
			zap.Error(err),
		)
		return nil
	}
	next := NextMastery(prior, found, s.FinalScore)
	if err := m.recorder.SaveMastery(ctx, s.UserID, s.Topic, next); err != nil {
		m.logger.Warn("failed to persist mastery",
			zap.String("session_id", s.ID),
			zap.String("user_id", s.UserID),
			zap.Error(err),
		)
		return nil
	}

	m.logger.Info("session memory committed",
		zap.String("session_id", s.ID),
		zap.Float64("final_score", s.FinalScore),
		zap.Int("mastery", next),
	)
	return nil
}
