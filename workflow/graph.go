package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmadarif238/vivagraph-ai/interview"
)

// NodeName 图中节点名
type NodeName string

const (
	NodePolicy     NodeName = "policy"
	NodeExaminer   NodeName = "examiner"
	NodeConfidence NodeName = "confidence"
	NodeScorer     NodeName = "scorer"
	NodeFeedback   NodeName = "feedback"
	NodeMemory     NodeName = "memory"

	// End 终止标记，不是真实节点
	End NodeName = "__end__"
)

// Step 工作流节点，在会话副本上读写
type Step interface {
	Name() NodeName
	Run(ctx context.Context, s *interview.Session) error
}

// StepFunc 节点函数
type StepFunc func(ctx context.Context, s *interview.Session) error

// FuncStep 函数节点
type FuncStep struct {
	name NodeName
	fn   StepFunc
}

// NewFuncStep 创建函数节点
func NewFuncStep(name NodeName, fn StepFunc) *FuncStep {
	return &FuncStep{name: name, fn: fn}
}

func (s *FuncStep) Name() NodeName { return s.name }

func (s *FuncStep) Run(ctx context.Context, sess *interview.Session) error {
	return s.fn(ctx, sess)
}

// Router 条件边，每次经过时重新计算
type Router func(s *interview.Session) NodeName

// Graph 不可变的节点图
type Graph struct {
	steps      map[NodeName]Step
	edges      map[NodeName]NodeName
	routers    map[NodeName]Router
	interrupts map[NodeName]bool
	commits    map[NodeName]bool
	entry      NodeName
}

// Entry 返回入口节点
func (g *Graph) Entry() NodeName { return g.entry }

// Step 按名称查找节点
func (g *Graph) Step(name NodeName) (Step, bool) {
	s, ok := g.steps[name]
	return s, ok
}

// InterruptsBefore 报告在进入 name 之前是否挂起
func (g *Graph) InterruptsBefore(name NodeName) bool { return g.interrupts[name] }

// CommitsBefore 报告在进入 name 之前是否保存 committing 检查点
func (g *Graph) CommitsBefore(name NodeName) bool { return g.commits[name] }

// Next 计算 from 之后的节点
func (g *Graph) Next(from NodeName, s *interview.Session) (NodeName, error) {
	if r, ok := g.routers[from]; ok {
		to := r(s)
		if to != End {
			if _, ok := g.steps[to]; !ok {
				return "", fmt.Errorf("router after %s returned unknown node %q", from, to)
			}
		}
		return to, nil
	}
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	return "", fmt.Errorf("node %s has no outgoing edge", from)
}

// =============================================================================
// Builder
// =============================================================================

// GraphBuilder 逐步构建 Graph，错误在 Build 时统一返回
type GraphBuilder struct {
	g    *Graph
	errs []error
}

// NewGraphBuilder 创建构建器
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{g: &Graph{
		steps:      make(map[NodeName]Step),
		edges:      make(map[NodeName]NodeName),
		routers:    make(map[NodeName]Router),
		interrupts: make(map[NodeName]bool),
		commits:    make(map[NodeName]bool),
	}}
}

// AddStep 注册节点
func (b *GraphBuilder) AddStep(step Step) *GraphBuilder {
	if step == nil {
		b.errs = append(b.errs, errors.New("nil step"))
		return b
	}
	if step.Name() == End || step.Name() == "" {
		b.errs = append(b.errs, fmt.Errorf("invalid step name %q", step.Name()))
		return b
	}
	if _, dup := b.g.steps[step.Name()]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate step %q", step.Name()))
		return b
	}
	b.g.steps[step.Name()] = step
	return b
}

// AddEdge 无条件边
func (b *GraphBuilder) AddEdge(from, to NodeName) *GraphBuilder {
	if _, dup := b.g.edges[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("node %q already has an edge", from))
	}
	b.g.edges[from] = to
	return b
}

// AddConditionalEdge 条件边，与无条件边互斥
func (b *GraphBuilder) AddConditionalEdge(from NodeName, r Router) *GraphBuilder {
	if r == nil {
		b.errs = append(b.errs, fmt.Errorf("nil router for %q", from))
		return b
	}
	b.g.routers[from] = r
	return b
}

// SetEntry 设置入口
func (b *GraphBuilder) SetEntry(name NodeName) *GraphBuilder {
	b.g.entry = name
	return b
}

// InterruptBefore 在进入 name 之前挂起，等待外部输入
func (b *GraphBuilder) InterruptBefore(name NodeName) *GraphBuilder {
	b.g.interrupts[name] = true
	return b
}

// CommitBefore 进入 name 之前先保存检查点。name 之后的节点有外部副作用，
// 失败重试时从 name 继续，不再重跑之前的节点。
func (b *GraphBuilder) CommitBefore(name NodeName) *GraphBuilder {
	b.g.commits[name] = true
	return b
}

// Build 校验并返回 Graph
func (b *GraphBuilder) Build() (*Graph, error) {
	g := b.g
	errs := append([]error(nil), b.errs...)

	if _, ok := g.steps[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q not registered", g.entry))
	}
	for name := range g.steps {
		_, hasEdge := g.edges[name]
		_, hasRouter := g.routers[name]
		switch {
		case hasEdge && hasRouter:
			errs = append(errs, fmt.Errorf("node %q has both an edge and a router", name))
		case !hasEdge && !hasRouter:
			errs = append(errs, fmt.Errorf("node %q has no outgoing edge", name))
		}
	}
	for from, to := range g.edges {
		if _, ok := g.steps[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		if _, ok := g.steps[to]; !ok && to != End {
			errs = append(errs, fmt.Errorf("edge to unknown node %q", to))
		}
	}
	for from := range g.routers {
		if _, ok := g.steps[from]; !ok {
			errs = append(errs, fmt.Errorf("router on unknown node %q", from))
		}
	}
	for name := range g.interrupts {
		if _, ok := g.steps[name]; !ok {
			errs = append(errs, fmt.Errorf("interrupt on unknown node %q", name))
		}
	}
	for name := range g.commits {
		if _, ok := g.steps[name]; !ok {
			errs = append(errs, fmt.Errorf("commit point on unknown node %q", name))
		}
		if g.interrupts[name] {
			errs = append(errs, fmt.Errorf("node %q cannot be both an interrupt and a commit point", name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return g, nil
}

// =============================================================================
// 面试图
// =============================================================================

// Nodes 面试图的六个节点
type Nodes struct {
	Policy     *interview.Policy
	Examiner   *interview.Examiner
	Confidence *interview.ConfidenceAnalyzer
	Scorer     *interview.Scorer
	Feedback   *interview.FeedbackWriter
	Memory     *interview.MemoryWriter
}

// RouteAfterPolicy 已完成进入反馈，否则继续提问
func RouteAfterPolicy(s *interview.Session) NodeName {
	if s.Complete {
		return NodeFeedback
	}
	return NodeExaminer
}

// NewInterviewGraph 构建面试图：
//
//	policy -> (complete ? feedback : examiner)
//	examiner -> [挂起] confidence -> scorer -> policy
//	feedback -> [提交] memory -> End
func NewInterviewGraph(n Nodes) (*Graph, error) {
	if n.Policy == nil || n.Examiner == nil || n.Confidence == nil ||
		n.Scorer == nil || n.Feedback == nil || n.Memory == nil {
		return nil, errors.New("all interview nodes are required")
	}
	return NewGraphBuilder().
		AddStep(NewFuncStep(NodePolicy, n.Policy.Apply)).
		AddStep(NewFuncStep(NodeExaminer, n.Examiner.Ask)).
		AddStep(NewFuncStep(NodeConfidence, n.Confidence.Analyze)).
		AddStep(NewFuncStep(NodeScorer, n.Scorer.Score)).
		AddStep(NewFuncStep(NodeFeedback, n.Feedback.Write)).
		AddStep(NewFuncStep(NodeMemory, n.Memory.Commit)).
		SetEntry(NodePolicy).
		AddConditionalEdge(NodePolicy, RouteAfterPolicy).
		AddEdge(NodeExaminer, NodeConfidence).
		AddEdge(NodeConfidence, NodeScorer).
		AddEdge(NodeScorer, NodePolicy).
		AddEdge(NodeFeedback, NodeMemory).
		AddEdge(NodeMemory, End).
		InterruptBefore(NodeConfidence).
		CommitBefore(NodeMemory).
		Build()
}
