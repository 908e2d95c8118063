package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahmadarif238/vivagraph-ai/internal/cache"
	"github.com/ahmadarif238/vivagraph-ai/interview"
	"go.uber.org/zap"
)

var (
	// ErrCheckpointNotFound 会话没有检查点
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrCheckpointConflict 存储中的版本不是写入方加载的版本
	ErrCheckpointConflict = errors.New("checkpoint version conflict")
)

// CheckpointStatus 检查点状态
type CheckpointStatus string

const (
	// CheckpointSuspended 等待候选人回答
	CheckpointSuspended CheckpointStatus = "suspended"
	// CheckpointCommitting 反馈与评分已定，终止写入尚未确认；恢复时只补完终止路径
	CheckpointCommitting CheckpointStatus = "committing"
	// CheckpointCompleted 已结束，Result 为缓存的最终结果
	CheckpointCompleted CheckpointStatus = "completed"
)

// ResultStatus 对外返回的会话状态
type ResultStatus string

const (
	ResultInProgress ResultStatus = "in_progress"
	ResultCompleted  ResultStatus = "completed"
)

// Result 一次 Start/Resume 的结果
type Result struct {
	SessionID         string                      `json:"session_id"`
	Status            ResultStatus                `json:"status"`
	Question          string                      `json:"question,omitempty"`
	Feedback          string                      `json:"feedback,omitempty"`
	Report            *interview.FeedbackReport   `json:"report,omitempty"`
	FinalScore        float64                     `json:"final_score,omitempty"`
	Stage             interview.Stage             `json:"stage"`
	PresentationStage interview.PresentationStage `json:"presentation_stage,omitempty"`
	QuestionCount     int                         `json:"question_count"`
	Mastery           int                         `json:"mastery"`
}

// Completed reports whether the session has terminated.
func (r *Result) Completed() bool { return r != nil && r.Status == ResultCompleted }

func (r *Result) clone() *Result {
	out := *r
	if r.Report != nil {
		out.Report = r.Report.Clone()
	}
	return &out
}

// Checkpoint 会话状态快照加上下一个待执行节点
type Checkpoint struct {
	SessionID string             `json:"session_id"`
	Session   *interview.Session `json:"session"`
	Next      NodeName           `json:"next"`
	Status    CheckpointStatus   `json:"status"`
	Result    *Result            `json:"result,omitempty"`
	Version   int                `json:"version"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (c *Checkpoint) clone() *Checkpoint {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Session = c.Session.Clone()
	if c.Result != nil {
		cp.Result = c.Result.clone()
	}
	return &cp
}

// checkVersion 乐观并发检查：写入 Version 为 n 时，存储中必须是 n-1 或尚不存在
func checkVersion(stored *Checkpoint, cp *Checkpoint) error {
	if stored == nil || stored.Version == cp.Version-1 {
		return nil
	}
	return fmt.Errorf("%w: session %s stored version %d, writing %d",
		ErrCheckpointConflict, cp.SessionID, stored.Version, cp.Version)
}

// CheckpointStore 检查点存储
type CheckpointStore interface {
	// Save 以 Version 做比较交换，版本不连续时返回 ErrCheckpointConflict
	Save(ctx context.Context, cp *Checkpoint) error
	// Load 不存在时返回 ErrCheckpointNotFound
	Load(ctx context.Context, sessionID string) (*Checkpoint, error)
	Delete(ctx context.Context, sessionID string) error
}

// =============================================================================
// 内存存储
// =============================================================================

// MemoryCheckpointStore 进程内存储，读写都做深拷贝
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewMemoryCheckpointStore 创建内存存储
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: make(map[string]*Checkpoint)}
}

func (s *MemoryCheckpointStore) Save(_ context.Context, cp *Checkpoint) error {
	if cp == nil || cp.SessionID == "" {
		return errors.New("checkpoint session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkVersion(s.checkpoints[cp.SessionID], cp); err != nil {
		return err
	}
	s.checkpoints[cp.SessionID] = cp.clone()
	return nil
}

func (s *MemoryCheckpointStore) Load(_ context.Context, sessionID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[sessionID]
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	return cp.clone(), nil
}

func (s *MemoryCheckpointStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, sessionID)
	return nil
}

// Len 返回检查点数量
func (s *MemoryCheckpointStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.checkpoints)
}

// =============================================================================
// Redis 存储
// =============================================================================

// RedisCheckpointStore 以 JSON 形式把检查点保存在 Redis，支持多进程共享。
// 写入走 WATCH 事务，多个进程同时推进同一会话时只有一个成功。
type RedisCheckpointStore struct {
	cache  *cache.Manager
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCheckpointStore ttl 只作用于已结束的检查点，<=0 表示永久保留。
// 挂起中的会话不过期。
func NewRedisCheckpointStore(m *cache.Manager, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCheckpointStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "vivagraph:checkpoint:"
	}
	return &RedisCheckpointStore{
		cache:  m,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "redis_checkpoint")),
	}
}

func (s *RedisCheckpointStore) key(sessionID string) string { return s.prefix + sessionID }

func (s *RedisCheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	if cp == nil || cp.SessionID == "" {
		return errors.New("checkpoint session id is required")
	}
	var ttl time.Duration
	if cp.Status == CheckpointCompleted && s.ttl > 0 {
		ttl = s.ttl
	}
	err := s.cache.UpdateJSON(ctx, s.key(cp.SessionID), ttl, func(current []byte) (any, error) {
		if current == nil {
			return cp, nil
		}
		var stored Checkpoint
		if err := json.Unmarshal(current, &stored); err != nil {
			return nil, fmt.Errorf("decode stored checkpoint %s: %w", cp.SessionID, err)
		}
		if err := checkVersion(&stored, cp); err != nil {
			return nil, err
		}
		return cp, nil
	})
	if errors.Is(err, cache.ErrConflict) {
		err = fmt.Errorf("%w: session %s was written concurrently", ErrCheckpointConflict, cp.SessionID)
	}
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.SessionID, err)
	}
	s.logger.Debug("checkpoint saved",
		zap.String("session_id", cp.SessionID),
		zap.String("status", string(cp.Status)),
		zap.Int("version", cp.Version))
	return nil
}

func (s *RedisCheckpointStore) Load(ctx context.Context, sessionID string) (*Checkpoint, error) {
	var cp Checkpoint
	if err := s.cache.GetJSON(ctx, s.key(sessionID), &cp); err != nil {
		if cache.IsCacheMiss(err) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", sessionID, err)
	}
	if cp.Session == nil {
		return nil, fmt.Errorf("checkpoint %s has no session state", sessionID)
	}
	return &cp, nil
}

func (s *RedisCheckpointStore) Delete(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, s.key(sessionID))
}
