package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrSessionNotFound 会话没有检查点，对外包装为 types.ErrSessionNotFound
var ErrSessionNotFound = errors.New("session not found")

const defaultMaxSteps = 64

// Observer 引擎观测回调，由 metrics.Collector 实现
type Observer interface {
	ObserveStep(step string, duration time.Duration, err error)
	ObserveCheckpoint(op string, err error)
	ObserveSession(event string, finalScore float64)
}

type nopObserver struct{}

func (nopObserver) ObserveStep(string, time.Duration, error) {}
func (nopObserver) ObserveCheckpoint(string, error)          {}
func (nopObserver) ObserveSession(string, float64)           {}

// AnswerRegistry 回答落库，只使用 interview.Registry 的 SaveAnswer
type AnswerRegistry interface {
	SaveAnswer(ctx context.Context, questionID, transcript string) (string, error)
}

// Engine 面试工作流引擎。
// 每次 Start/Resume 在会话副本上执行，只在挂起、提交点和结束时写检查点，
// 任意节点失败时已保存的检查点保持不变。检查点按版本比较交换，
// 共享存储上的多个引擎并发推进同一会话时，落后的一方得到 SESSION_BUSY。
type Engine struct {
	graph    *Graph
	store    CheckpointStore
	locks    *SessionLocks
	history  *ExecutionHistoryStore
	answers  AnswerRegistry
	observer Observer
	tracer   trace.Tracer
	logger   *zap.Logger
	maxSteps int
	now      func() time.Time
}

// EngineOption 引擎配置项
type EngineOption func(*Engine)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver 设置观测回调
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithTracer 覆盖默认的 otel tracer
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithAnswerRegistry 恢复前把回答写入存储并关联当前题目
func WithAnswerRegistry(r AnswerRegistry) EngineOption {
	return func(e *Engine) { e.answers = r }
}

// WithHistoryLimit 每个会话保留的执行记录条数
func WithHistoryLimit(n int) EngineOption {
	return func(e *Engine) { e.history = NewExecutionHistoryStore(n) }
}

// WithMaxSteps 单次执行最多经过的节点数
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewEngine 创建引擎
func NewEngine(graph *Graph, store CheckpointStore, opts ...EngineOption) (*Engine, error) {
	if graph == nil {
		return nil, errors.New("workflow graph is required")
	}
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	e := &Engine{
		graph:    graph,
		store:    store,
		locks:    NewSessionLocks(),
		history:  NewExecutionHistoryStore(0),
		observer: nopObserver{},
		tracer:   otel.Tracer("vivagraph/workflow"),
		logger:   zap.NewNop(),
		maxSteps: defaultMaxSteps,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "workflow_engine"))
	return e, nil
}

// =============================================================================
// 对外操作
// =============================================================================

// Start 从入口运行新会话，直到第一次挂起
func (e *Engine) Start(ctx context.Context, s *interview.Session) (*Result, error) {
	if s == nil {
		return nil, types.NewInvalidRequestError("session is required")
	}
	working := s.Clone()
	working.ApplyDefaults()
	if err := working.Validate(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(working.ID)
	defer unlock()

	_, err := e.load(ctx, working.ID)
	switch {
	case err == nil:
		return nil, types.NewInvalidRequestError(fmt.Sprintf("session %q already started", working.ID))
	case !errors.Is(err, ErrCheckpointNotFound):
		return nil, err
	}
	if last, ok := working.LastTurn(); ok && last.Role == interview.RoleExaminer {
		return nil, types.NewInvalidRequestError("session history already ends with an examiner turn")
	}
	e.warnRepeatedRoles(working)

	res, err := e.run(ctx, RunStart, working, e.graph.Entry(), false, 0)
	if err != nil {
		return nil, err
	}
	e.observer.ObserveSession("started", 0)
	e.logger.Info("session started",
		zap.String("session_id", working.ID),
		zap.String("mode", string(working.Mode)),
		zap.String("topic", working.Topic))
	return res, nil
}

// Resume 追加候选人回答并从挂起点继续。
// 已结束的会话直接返回缓存结果，不再调用模型或写库。
func (e *Engine) Resume(ctx context.Context, sessionID, answer string) (*Result, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	cp, err := e.loadExisting(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch cp.Status {
	case CheckpointCompleted:
		return cachedResult(cp), nil
	case CheckpointCommitting:
		// 会话已经结束，回答不再追加
		return e.run(ctx, RunResume, cp.Session.Clone(), cp.Next, true, cp.Version)
	}

	working := cp.Session.Clone()
	e.linkAnswer(ctx, working, answer)
	working.AppendTurn(interview.RoleCandidate, answer)

	return e.run(ctx, RunResume, working, cp.Next, true, cp.Version)
}

// ForceEnd 设置结束标志并恢复一次，走反馈与掌握度写入
func (e *Engine) ForceEnd(ctx context.Context, sessionID string) (*Result, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	cp, err := e.loadExisting(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch cp.Status {
	case CheckpointCompleted:
		return cachedResult(cp), nil
	case CheckpointCommitting:
		return e.run(ctx, RunForceEnd, cp.Session.Clone(), cp.Next, true, cp.Version)
	}

	working := cp.Session.Clone()
	working.Complete = true
	return e.run(ctx, RunForceEnd, working, cp.Next, true, cp.Version)
}

// Snapshot 返回会话的当前检查点
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (*Checkpoint, error) {
	return e.loadExisting(ctx, sessionID)
}

// History 返回会话最近的执行记录
func (e *Engine) History(sessionID string) []ExecutionRecord {
	return e.history.ListBySession(sessionID)
}

// =============================================================================
// 执行循环
// =============================================================================

// run 从 from 开始执行。resumed 为 true 时跳过第一个节点前的挂起点与提交点。
// version 是加载到的检查点版本，每次保存加一。
func (e *Engine) run(ctx context.Context, kind RunKind, s *interview.Session, from NodeName, resumed bool, version int) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "workflow."+string(kind), trace.WithAttributes(
		attribute.String("session_id", s.ID),
		attribute.String("from", string(from)),
	))
	defer span.End()

	hist := NewExecutionHistory(uuid.NewString(), s.ID, kind)
	defer e.history.Save(hist)

	fail := func(err error) (*Result, error) {
		hist.Finish(ExecutionStatusFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		e.logger.Warn("workflow run failed",
			zap.String("session_id", s.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, err
	}

	current := from
	resuming := resumed
	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		if current == End {
			res, err := e.finish(ctx, s, version)
			if err != nil {
				return fail(err)
			}
			hist.Finish(ExecutionStatusCompleted, nil)
			span.SetAttributes(attribute.String("status", string(res.Status)))
			return res, nil
		}

		if e.graph.InterruptsBefore(current) && !resuming {
			res, err := e.suspend(ctx, s, current, version)
			if err != nil {
				return fail(err)
			}
			hist.Finish(ExecutionStatusSuspended, nil)
			span.SetAttributes(attribute.String("status", string(res.Status)))
			return res, nil
		}
		if e.graph.CommitsBefore(current) && !resuming {
			if err := e.commit(ctx, s, current, version); err != nil {
				return fail(err)
			}
			version++
		}
		resuming = false

		if steps >= e.maxSteps {
			return fail(fmt.Errorf("session %s exceeded %d steps without suspending", s.ID, e.maxSteps))
		}

		step, ok := e.graph.Step(current)
		if !ok {
			return fail(fmt.Errorf("unknown node %q", current))
		}
		if err := e.runStep(ctx, hist, step, s); err != nil {
			return fail(fmt.Errorf("step %s failed: %w", current, err))
		}

		next, err := e.graph.Next(current, s)
		if err != nil {
			return fail(err)
		}
		current = next
	}
}

func (e *Engine) runStep(ctx context.Context, hist *ExecutionHistory, step Step, s *interview.Session) error {
	name := step.Name()
	ctx, span := e.tracer.Start(ctx, "workflow.step", trace.WithAttributes(
		attribute.String("node", string(name)),
		attribute.String("session_id", s.ID),
	))
	defer span.End()

	rec := hist.RecordNodeStart(name)
	start := time.Now()
	err := step.Run(ctx, s)
	duration := time.Since(start)
	hist.RecordNodeEnd(rec, err)
	e.observer.ObserveStep(string(name), duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step failed")
		return err
	}
	e.logger.Debug("step finished",
		zap.String("session_id", s.ID),
		zap.String("node", string(name)),
		zap.Duration("duration", duration))
	return nil
}

func (e *Engine) suspend(ctx context.Context, s *interview.Session, next NodeName, version int) (*Result, error) {
	res := resultFrom(s, ResultInProgress)
	cp := &Checkpoint{
		SessionID: s.ID,
		Session:   s,
		Next:      next,
		Status:    CheckpointSuspended,
		Version:   version + 1,
		UpdatedAt: e.now(),
	}
	if err := e.save(ctx, cp); err != nil {
		return nil, err
	}
	return res, nil
}

// commit 保存 committing 检查点，之后的失败重试从 next 继续
func (e *Engine) commit(ctx context.Context, s *interview.Session, next NodeName, version int) error {
	return e.save(ctx, &Checkpoint{
		SessionID: s.ID,
		Session:   s,
		Next:      next,
		Status:    CheckpointCommitting,
		Version:   version + 1,
		UpdatedAt: e.now(),
	})
}

func (e *Engine) finish(ctx context.Context, s *interview.Session, version int) (*Result, error) {
	res := resultFrom(s, ResultCompleted)
	cp := &Checkpoint{
		SessionID: s.ID,
		Session:   s,
		Next:      End,
		Status:    CheckpointCompleted,
		Result:    res,
		Version:   version + 1,
		UpdatedAt: e.now(),
	}
	if err := e.save(ctx, cp); err != nil {
		return nil, err
	}
	e.observer.ObserveSession("completed", s.FinalScore)
	e.logger.Info("session completed",
		zap.String("session_id", s.ID),
		zap.Float64("final_score", s.FinalScore),
		zap.Int("mastery", s.Mastery))
	return res.clone(), nil
}

// =============================================================================
// 辅助函数
// =============================================================================

func (e *Engine) save(ctx context.Context, cp *Checkpoint) error {
	err := e.store.Save(ctx, cp)
	e.observer.ObserveCheckpoint("save", err)
	if errors.Is(err, ErrCheckpointConflict) {
		return types.NewSessionBusyError(cp.SessionID, err)
	}
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, sessionID string) (*Checkpoint, error) {
	cp, err := e.store.Load(ctx, sessionID)
	if errors.Is(err, ErrCheckpointNotFound) {
		e.observer.ObserveCheckpoint("load", nil)
		return nil, err
	}
	e.observer.ObserveCheckpoint("load", err)
	return cp, err
}

func (e *Engine) loadExisting(ctx context.Context, sessionID string) (*Checkpoint, error) {
	cp, err := e.load(ctx, sessionID)
	if errors.Is(err, ErrCheckpointNotFound) {
		return nil, types.NewSessionNotFoundError(sessionID).WithCause(ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// linkAnswer 有当前题目时先写入回答，得到的 ID 供自信度与评分记录关联
func (e *Engine) linkAnswer(ctx context.Context, s *interview.Session, answer string) {
	s.CurrentAnswerID = ""
	if e.answers == nil || s.CurrentQuestionID == "" {
		return
	}
	id, err := e.answers.SaveAnswer(ctx, s.CurrentQuestionID, answer)
	if err != nil {
		e.logger.Warn("failed to persist answer",
			zap.String("session_id", s.ID),
			zap.String("question_id", s.CurrentQuestionID),
			zap.Error(types.NewPersistenceError("answer", err)))
		return
	}
	s.CurrentAnswerID = id
}

func (e *Engine) warnRepeatedRoles(s *interview.Session) {
	for i := 1; i < len(s.History); i++ {
		if s.History[i].Role == s.History[i-1].Role {
			e.logger.Warn("history contains consecutive turns from the same role",
				zap.String("session_id", s.ID),
				zap.Int("seq", s.History[i].Seq),
				zap.String("role", string(s.History[i].Role)))
			return
		}
	}
}

func resultFrom(s *interview.Session, status ResultStatus) *Result {
	res := &Result{
		SessionID:         s.ID,
		Status:            status,
		Stage:             s.Stage,
		PresentationStage: s.PresentationStage,
		QuestionCount:     s.QuestionCount,
		Mastery:           s.Mastery,
	}
	if status == ResultCompleted {
		res.Feedback = s.Feedback
		res.FinalScore = s.FinalScore
		// 模型未按 JSON 输出时只返回原始文本
		if report, err := interview.ParseFeedbackReport(s.Feedback); err == nil {
			res.Report = report
		}
		return res
	}
	if last, ok := s.LastTurn(); ok && last.Role == interview.RoleExaminer {
		res.Question = last.Content
	}
	return res
}

func cachedResult(cp *Checkpoint) *Result {
	if cp.Result != nil {
		return cp.Result.clone()
	}
	return resultFrom(cp.Session, ResultCompleted)
}
