package workflow

import (
	"sync"
	"time"
)

// ExecutionStatus 一次执行的状态
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSuspended ExecutionStatus = "suspended"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// RunKind 触发执行的调用
type RunKind string

const (
	RunStart    RunKind = "start"
	RunResume   RunKind = "resume"
	RunForceEnd RunKind = "force_end"
)

// NodeExecution records the execution of a single node
type NodeExecution struct {
	Node      NodeName        `json:"node"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  time.Duration   `json:"duration"`
	Status    ExecutionStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
}

// ExecutionHistory 一次 Start/Resume/ForceEnd 经过的节点
type ExecutionHistory struct {
	RunID     string           `json:"run_id"`
	SessionID string           `json:"session_id"`
	Kind      RunKind          `json:"kind"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  time.Duration    `json:"duration"`
	Status    ExecutionStatus  `json:"status"`
	Nodes     []*NodeExecution `json:"nodes"`
	Error     string           `json:"error,omitempty"`
	mu        sync.RWMutex
}

// NewExecutionHistory creates a new execution history
func NewExecutionHistory(runID, sessionID string, kind RunKind) *ExecutionHistory {
	return &ExecutionHistory{
		RunID:     runID,
		SessionID: sessionID,
		Kind:      kind,
		StartTime: time.Now(),
		Status:    ExecutionStatusRunning,
		Nodes:     make([]*NodeExecution, 0),
	}
}

// RecordNodeStart records the start of a node execution
func (h *ExecutionHistory) RecordNodeStart(node NodeName) *NodeExecution {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := &NodeExecution{
		Node:      node,
		StartTime: time.Now(),
		Status:    ExecutionStatusRunning,
	}
	h.Nodes = append(h.Nodes, n)
	return n
}

// RecordNodeEnd records the end of a node execution
func (h *ExecutionHistory) RecordNodeEnd(n *NodeExecution, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n.EndTime = time.Now()
	n.Duration = n.EndTime.Sub(n.StartTime)
	if err != nil {
		n.Status = ExecutionStatusFailed
		n.Error = err.Error()
	} else {
		n.Status = ExecutionStatusCompleted
	}
}

// Finish 以最终状态结束本次执行，err 非空时状态为 failed
func (h *ExecutionHistory) Finish(status ExecutionStatus, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.EndTime = time.Now()
	h.Duration = h.EndTime.Sub(h.StartTime)
	if err != nil {
		h.Status = ExecutionStatusFailed
		h.Error = err.Error()
		return
	}
	h.Status = status
}

// NodeNames 返回按执行顺序排列的节点名
func (h *ExecutionHistory) NodeNames() []NodeName {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]NodeName, len(h.Nodes))
	for i, n := range h.Nodes {
		names[i] = n.Node
	}
	return names
}

// Snapshot 返回不共享锁的副本，供外部读取
func (h *ExecutionHistory) Snapshot() ExecutionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	nodes := make([]NodeExecution, len(h.Nodes))
	for i, n := range h.Nodes {
		nodes[i] = *n
	}
	return ExecutionRecord{
		RunID:     h.RunID,
		SessionID: h.SessionID,
		Kind:      h.Kind,
		StartTime: h.StartTime,
		EndTime:   h.EndTime,
		Duration:  h.Duration,
		Status:    h.Status,
		Nodes:     nodes,
		Error:     h.Error,
	}
}

// ExecutionRecord ExecutionHistory 的只读快照
type ExecutionRecord struct {
	RunID     string          `json:"run_id"`
	SessionID string          `json:"session_id"`
	Kind      RunKind         `json:"kind"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  time.Duration   `json:"duration"`
	Status    ExecutionStatus `json:"status"`
	Nodes     []NodeExecution `json:"nodes"`
	Error     string          `json:"error,omitempty"`
}

// ExecutionHistoryStore 按会话保存最近的执行记录
type ExecutionHistoryStore struct {
	histories map[string][]*ExecutionHistory
	limit     int
	mu        sync.RWMutex
}

// NewExecutionHistoryStore 每个会话最多保留 limit 条，limit<=0 时为 50
func NewExecutionHistoryStore(limit int) *ExecutionHistoryStore {
	if limit <= 0 {
		limit = 50
	}
	return &ExecutionHistoryStore{
		histories: make(map[string][]*ExecutionHistory),
		limit:     limit,
	}
}

// Save 追加记录，超过上限时丢弃最旧的
func (s *ExecutionHistoryStore) Save(h *ExecutionHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.histories[h.SessionID], h)
	if over := len(list) - s.limit; over > 0 {
		list = append([]*ExecutionHistory(nil), list[over:]...)
	}
	s.histories[h.SessionID] = list
}

// ListBySession 按时间顺序返回会话的执行记录
func (s *ExecutionHistoryStore) ListBySession(sessionID string) []ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.histories[sessionID]
	out := make([]ExecutionRecord, 0, len(list))
	for _, h := range list {
		out = append(out, h.Snapshot())
	}
	return out
}

// ListByStatus returns executions with a specific status
func (s *ExecutionHistoryStore) ListByStatus(status ExecutionStatus) []ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ExecutionRecord
	for _, list := range s.histories {
		for _, h := range list {
			if rec := h.Snapshot(); rec.Status == status {
				out = append(out, rec)
			}
		}
	}
	return out
}

// Forget 删除会话的执行记录
func (s *ExecutionHistoryStore) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, sessionID)
}
