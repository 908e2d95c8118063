package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/types"
)

func setupStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "viva.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewStore(db, zap.NewNop())
	require.NoError(t, store.AutoMigrate(context.Background()))
	return store, db
}

func TestStore_EnsureUser(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	id1, err := store.EnsureUser(ctx, "Ada@Example.com ")
	require.NoError(t, err)
	id2, err := store.EnsureUser(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	var user UserModel
	require.NoError(t, db.First(&user, "id = ?", id1).Error)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "ada", user.FullName)

	_, err = store.EnsureUser(ctx, "  ")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	found, ok, err := store.LookupUser(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id1, found)

	_, ok, err = store.LookupUser(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_EnsureUser_Concurrent(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = store.EnsureUser(ctx, "race@example.com")
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestStore_SessionLifecycle(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	userID, err := store.EnsureUser(ctx, "lin@example.com")
	require.NoError(t, err)

	sess := interview.NewSession("sess-1", "Operating Systems", "strict", interview.ModeStandard)
	sess.UserID = userID
	require.NoError(t, store.CreateSession(ctx, sess))

	qID, err := store.SaveQuestion(ctx, interview.QuestionRecord{
		SessionID: "sess-1", Text: "What is a page fault?", Order: 1, ConceptFocus: "paging",
	})
	require.NoError(t, err)
	require.NotEmpty(t, qID)

	aID, err := store.SaveAnswer(ctx, qID, "um, it happens when a page is missing")
	require.NoError(t, err)

	require.NoError(t, store.SaveConfidence(ctx, aID, interview.ConfidenceSignal{
		HesitationCount: 1, PauseDurationMs: 500, WordsPerMinute: 120, Label: interview.ConfidenceMedium,
	}))
	require.NoError(t, store.SaveEvaluation(ctx, aID, interview.AnswerScore{
		ConceptCorrectness: 2, Clarity: 2, Completeness: 1, Confidence: 1, FollowUpHandling: 1,
		Feedback: "ok", ImprovedAnswer: "A page fault is...",
	}))
	first, err := store.CompleteSession(ctx, "sess-1", 7.0, "Good work")
	require.NoError(t, err)
	assert.True(t, first)

	var row SessionModel
	require.NoError(t, db.First(&row, "id = ?", "sess-1").Error)
	assert.Equal(t, SessionStatusCompleted, row.Status)
	require.NotNil(t, row.FinalScore)
	assert.InDelta(t, 7.0, *row.FinalScore, 1e-9)
	assert.Equal(t, "Good work", row.Feedback)
	assert.NotNil(t, row.EndedAt)
	require.NotNil(t, row.UserID)
	assert.Equal(t, userID, *row.UserID)

	var eval EvaluationModel
	require.NoError(t, db.First(&eval, "answer_id = ?", aID).Error)
	assert.Equal(t, 2, eval.ConceptCorrectness)
	assert.Equal(t, "A page fault is...", eval.ImprovedAnswer)

	var conf ConfidenceMetricModel
	require.NoError(t, db.First(&conf, "answer_id = ?", aID).Error)
	assert.Equal(t, "Medium", conf.ConfidenceLevel)
	assert.Equal(t, 120, conf.WordsPerMinute)

	tr, err := store.GetSessionTranscript(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, tr.Questions, 1)
	assert.Equal(t, "paging", tr.Questions[0].ConceptFocus)
	require.Len(t, tr.Answers[qID], 1)
	assert.Contains(t, tr.Answers[qID][0].Transcript, "page is missing")

	_, err = store.GetSessionTranscript(ctx, "missing")
	assert.True(t, types.IsErrorCode(err, types.ErrSessionNotFound))
}

func TestStore_SessionWithoutUser(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, interview.NewSession("anon", "", "", "")))

	var row SessionModel
	require.NoError(t, db.First(&row, "id = ?", "anon").Error)
	assert.Nil(t, row.UserID)
	assert.Equal(t, "General", row.Topic)
	assert.Equal(t, SessionStatusActive, row.Status)

	// 未知会话不报错
	first, err := store.CompleteSession(ctx, "ghost", 1, "x")
	assert.NoError(t, err)
	assert.True(t, first)
}

func TestStore_Mastery(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	userID, err := store.EnsureUser(ctx, "kim@example.com")
	require.NoError(t, err)

	_, found, err := store.GetMastery(ctx, userID, "Networks")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SaveMastery(ctx, userID, "Networks", 40))
	require.NoError(t, store.SaveMastery(ctx, userID, "Networks", 55))
	require.NoError(t, store.SaveMastery(ctx, userID, "Databases", 80))

	level, found, err := store.GetMastery(ctx, userID, "Networks")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 55, level)

	records, err := store.ListMastery(ctx, userID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Databases", records[0].Topic)
	assert.Equal(t, 80, records[0].Level)
	assert.Equal(t, "Networks", records[1].Topic)
	assert.Equal(t, 55, records[1].Level)
	assert.False(t, records[1].UpdatedAt.IsZero())

	other, err := store.ListMastery(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_ClosedDBIsPersistenceError(t *testing.T) {
	store, db := setupStore(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = store.SaveAnswer(context.Background(), "q", "text")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrPersistenceFailure), fmt.Sprint(err))

	_, _, err = store.GetMastery(context.Background(), "u", "t")
	assert.True(t, types.IsErrorCode(err, types.ErrPersistenceFailure))
}

func TestStore_CompleteSessionOnlyOnce(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, interview.NewSession("s-1", "Networks", "", "")))

	first, err := store.CompleteSession(ctx, "s-1", 7.0, "first report")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = store.CompleteSession(ctx, "s-1", 3.0, "second report")
	require.NoError(t, err)
	assert.False(t, first, "a completed session is not rewritten")

	var row SessionModel
	require.NoError(t, db.First(&row, "id = ?", "s-1").Error)
	require.NotNil(t, row.FinalScore)
	assert.InDelta(t, 7.0, *row.FinalScore, 1e-9)
	assert.Equal(t, "first report", row.Feedback)
}

func TestStore_RetriedTurnReusesRows(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, interview.NewSession("s-1", "Networks", "", "")))
	qID, err := store.SaveQuestion(ctx, interview.QuestionRecord{SessionID: "s-1", Text: "What is TCP?", Order: 1})
	require.NoError(t, err)

	a1, err := store.SaveAnswer(ctx, qID, "a reliable stream")
	require.NoError(t, err)
	a2, err := store.SaveAnswer(ctx, qID, "a reliable stream")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)

	other, err := store.SaveAnswer(ctx, qID, "a different answer")
	require.NoError(t, err)
	assert.NotEqual(t, a1, other)

	for _, level := range []interview.ConfidenceLabel{interview.ConfidenceLow, interview.ConfidenceHigh} {
		require.NoError(t, store.SaveConfidence(ctx, a1, interview.ConfidenceSignal{Label: level}))
	}
	for _, clarity := range []int{1, 2} {
		require.NoError(t, store.SaveEvaluation(ctx, a1, interview.AnswerScore{Clarity: clarity}))
	}

	var answers, metrics, evals int64
	require.NoError(t, db.Model(&AnswerModel{}).Where("question_id = ?", qID).Count(&answers).Error)
	require.NoError(t, db.Model(&ConfidenceMetricModel{}).Where("answer_id = ?", a1).Count(&metrics).Error)
	require.NoError(t, db.Model(&EvaluationModel{}).Where("answer_id = ?", a1).Count(&evals).Error)
	assert.Equal(t, int64(2), answers)
	assert.Equal(t, int64(1), metrics)
	assert.Equal(t, int64(1), evals)

	var eval EvaluationModel
	require.NoError(t, db.First(&eval, "answer_id = ?", a1).Error)
	assert.Equal(t, 2, eval.Clarity, "the latest evaluation wins")
}
