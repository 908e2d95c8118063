package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/testutil"
	"github.com/ahmadarif238/vivagraph-ai/workflow"
)

func noopStep(name workflow.NodeName) workflow.Step {
	return workflow.NewFuncStep(name, func(context.Context, *interview.Session) error { return nil })
}

func TestGraphBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *workflow.GraphBuilder
		wantErr string
	}{
		{
			name: "missing entry",
			build: func() *workflow.GraphBuilder {
				return workflow.NewGraphBuilder().AddStep(noopStep("a")).AddEdge("a", workflow.End)
			},
			wantErr: `entry node "" not registered`,
		},
		{
			name: "duplicate step",
			build: func() *workflow.GraphBuilder {
				return workflow.NewGraphBuilder().
					AddStep(noopStep("a")).AddStep(noopStep("a")).
					SetEntry("a").AddEdge("a", workflow.End)
			},
			wantErr: `duplicate step "a"`,
		},
		{
			name: "dangling node",
			build: func() *workflow.GraphBuilder {
				return workflow.NewGraphBuilder().
					AddStep(noopStep("a")).AddStep(noopStep("b")).
					SetEntry("a").AddEdge("a", workflow.End)
			},
			wantErr: `node "b" has no outgoing edge`,
		},
		{
			name: "edge to unknown node",
			build: func() *workflow.GraphBuilder {
				return workflow.NewGraphBuilder().AddStep(noopStep("a")).SetEntry("a").AddEdge("a", "ghost")
			},
			wantErr: `edge to unknown node "ghost"`,
		},
		{
			name: "edge and router on same node",
			build: func() *workflow.GraphBuilder {
				return workflow.NewGraphBuilder().
					AddStep(noopStep("a")).SetEntry("a").
					AddEdge("a", workflow.End).
					AddConditionalEdge("a", func(*interview.Session) workflow.NodeName { return workflow.End })
			},
			wantErr: `node "a" has both an edge and a router`,
		},
		{
			name: "interrupt on unknown node",
			build: func() *workflow.GraphBuilder {
				return workflow.NewGraphBuilder().
					AddStep(noopStep("a")).SetEntry("a").AddEdge("a", workflow.End).
					InterruptBefore("ghost")
			},
			wantErr: `interrupt on unknown node "ghost"`,
		},
		{
			name: "commit point on unknown node",
			build: func() *workflow.GraphBuilder {
				return workflow.NewGraphBuilder().
					AddStep(noopStep("a")).SetEntry("a").AddEdge("a", workflow.End).
					CommitBefore("ghost")
			},
			wantErr: `commit point on unknown node "ghost"`,
		},
		{
			name: "interrupt and commit on same node",
			build: func() *workflow.GraphBuilder {
				return workflow.NewGraphBuilder().
					AddStep(noopStep("a")).SetEntry("a").AddEdge("a", workflow.End).
					InterruptBefore("a").CommitBefore("a")
			},
			wantErr: `cannot be both an interrupt and a commit point`,
		},
		{
			name: "reserved end name",
			build: func() *workflow.GraphBuilder {
				return workflow.NewGraphBuilder().AddStep(noopStep(workflow.End))
			},
			wantErr: "invalid step name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.build().Build()
			require.Error(t, err)
			assert.Nil(t, g)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGraph_RouterToUnknownNode(t *testing.T) {
	g, err := workflow.NewGraphBuilder().
		AddStep(noopStep("a")).
		SetEntry("a").
		AddConditionalEdge("a", func(*interview.Session) workflow.NodeName { return "nowhere" }).
		Build()
	require.NoError(t, err)

	_, err = g.Next("a", testutil.NewSession("s", interview.ModeStandard))
	assert.ErrorContains(t, err, `unknown node "nowhere"`)
}

func TestRouteAfterPolicy(t *testing.T) {
	s := testutil.NewSession("s", interview.ModeStandard)
	assert.Equal(t, workflow.NodeExaminer, workflow.RouteAfterPolicy(s))

	s.Complete = true
	assert.Equal(t, workflow.NodeFeedback, workflow.RouteAfterPolicy(s))
}

func TestNewInterviewGraph(t *testing.T) {
	_, err := workflow.NewInterviewGraph(workflow.Nodes{})
	assert.Error(t, err)

	model := newHarness(t).model
	g, err := workflow.NewInterviewGraph(workflow.Nodes{
		Policy:     interview.NewPolicy(model, interview.DefaultPolicyConfig(), nil),
		Examiner:   interview.NewExaminer(model, nil, interview.NopRecorder{}, nil),
		Confidence: interview.NewConfidenceAnalyzer(interview.NopRecorder{}, nil),
		Scorer:     interview.NewScorer(model, nil, interview.NopRecorder{}, nil),
		Feedback:   interview.NewFeedbackWriter(model, nil),
		Memory:     interview.NewMemoryWriter(interview.NopRecorder{}, nil),
	})
	require.NoError(t, err)

	assert.Equal(t, workflow.NodePolicy, g.Entry())
	assert.True(t, g.InterruptsBefore(workflow.NodeConfidence))
	assert.False(t, g.InterruptsBefore(workflow.NodeExaminer))
	assert.True(t, g.CommitsBefore(workflow.NodeMemory))
	assert.False(t, g.CommitsBefore(workflow.NodeFeedback))

	s := testutil.NewSession("s", interview.ModeStandard)
	edges := map[workflow.NodeName]workflow.NodeName{
		workflow.NodePolicy:     workflow.NodeExaminer,
		workflow.NodeExaminer:   workflow.NodeConfidence,
		workflow.NodeConfidence: workflow.NodeScorer,
		workflow.NodeScorer:     workflow.NodePolicy,
		workflow.NodeFeedback:   workflow.NodeMemory,
		workflow.NodeMemory:     workflow.End,
	}
	for from, want := range edges {
		got, err := g.Next(from, s)
		require.NoError(t, err)
		assert.Equal(t, want, got, "edge from %s", from)
	}
}
