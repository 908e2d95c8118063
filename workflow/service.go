package workflow

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/rag"
	"github.com/ahmadarif238/vivagraph-ai/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentIndexer 会话资料入库，由 rag.Indexer 实现
type DocumentIndexer interface {
	IndexText(ctx context.Context, text string, metadata map[string]any) (rag.IndexResult, error)
}

// UserLookup 只读查询用户，避免读取掌握度时创建用户
type UserLookup interface {
	LookupUser(ctx context.Context, email string) (id string, found bool, err error)
}

// BeginRequest 开始会话的参数
type BeginRequest struct {
	Email      string
	Topic      string
	Strictness string
	Mode       string
	// Document 纯文本资料，非空时按会话 ID 切分入库
	Document string
}

// SessionService 组合用户、会话记录、资料入库与引擎，供 HTTP 层调用
type SessionService struct {
	engine   *Engine
	registry interview.Registry
	recorder interview.Recorder
	indexer  DocumentIndexer
	logger   *zap.Logger
	newID    func() string
}

// NewSessionService registry/recorder/indexer 可以为 nil
func NewSessionService(engine *Engine, registry interview.Registry, recorder interview.Recorder, indexer DocumentIndexer, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = interview.NopRecorder{}
	}
	return &SessionService{
		engine:   engine,
		registry: registry,
		recorder: recorder,
		indexer:  indexer,
		logger:   logger.With(zap.String("component", "session_service")),
		newID:    uuid.NewString,
	}
}

// Engine 返回底层引擎
func (svc *SessionService) Engine() *Engine { return svc.engine }

// Begin 资料入库、绑定用户、读取掌握度、写会话记录，然后启动引擎。
// 资料入库失败直接返回；数据库失败只记录日志，掌握度按 0 处理。
func (svc *SessionService) Begin(ctx context.Context, req BeginRequest) (*Result, error) {
	mode, err := interview.ParseMode(req.Mode)
	if err != nil {
		return nil, types.NewInvalidRequestError(err.Error())
	}

	id := svc.newID()
	s := interview.NewSession(id, strings.TrimSpace(req.Topic), strings.TrimSpace(req.Strictness), mode)

	if strings.TrimSpace(req.Document) != "" && svc.indexer != nil {
		res, err := svc.indexer.IndexText(ctx, req.Document, map[string]any{"session_id": id})
		if err != nil {
			return nil, types.NewError(types.ErrInternalError, "failed to index document").
				WithCause(err).
				WithHTTPStatus(http.StatusInternalServerError)
		}
		svc.logger.Info("document indexed",
			zap.String("session_id", id),
			zap.Int("chunks", res.Chunks),
			zap.Int("duplicates", res.Duplicates),
			zap.Int("indexed", res.Indexed))
	}

	svc.bindUser(ctx, s, req.Email)

	if svc.registry != nil {
		if err := svc.registry.CreateSession(ctx, s); err != nil {
			svc.logger.Warn("failed to persist session",
				zap.String("session_id", id),
				zap.Error(types.NewPersistenceError("session", err)))
		}
	}

	return svc.engine.Start(ctx, s)
}

func (svc *SessionService) bindUser(ctx context.Context, s *interview.Session, email string) {
	email = strings.TrimSpace(email)
	if email == "" || svc.registry == nil {
		return
	}
	userID, err := svc.registry.EnsureUser(ctx, email)
	if err != nil {
		svc.logger.Warn("failed to resolve user, continuing with mastery 0",
			zap.String("session_id", s.ID),
			zap.Error(err))
		return
	}
	s.UserID = userID

	level, found, err := svc.recorder.GetMastery(ctx, userID, s.Topic)
	if err != nil {
		svc.logger.Warn("failed to read mastery, continuing with mastery 0",
			zap.String("session_id", s.ID),
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	if found {
		s.Mastery = level
	}
}

// SubmitAnswer 提交回答并恢复会话
func (svc *SessionService) SubmitAnswer(ctx context.Context, sessionID, answer string) (*Result, error) {
	return svc.engine.Resume(ctx, sessionID, answer)
}

// ForceEnd 立即结束会话
func (svc *SessionService) ForceEnd(ctx context.Context, sessionID string) (*Result, error) {
	return svc.engine.ForceEnd(ctx, sessionID)
}

// Mastery 列出用户的掌握度，用户不存在时返回空列表
func (svc *SessionService) Mastery(ctx context.Context, email string) ([]interview.MasteryRecord, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, types.NewInvalidRequestError("email is required")
	}
	if svc.registry == nil {
		return []interview.MasteryRecord{}, nil
	}

	var userID string
	if lookup, ok := svc.registry.(UserLookup); ok {
		id, found, err := lookup.LookupUser(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		if !found {
			return []interview.MasteryRecord{}, nil
		}
		userID = id
	} else {
		id, err := svc.registry.EnsureUser(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("resolve user: %w", err)
		}
		userID = id
	}

	records, err := svc.registry.ListMastery(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list mastery: %w", err)
	}
	if records == nil {
		records = []interview.MasteryRecord{}
	}
	return records, nil
}
