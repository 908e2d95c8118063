package workflow_test

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/testutil"
	"github.com/ahmadarif238/vivagraph-ai/workflow"
)

var stageRank = map[interview.Stage]int{
	interview.StageIntro:      0,
	interview.StageFoundation: 1,
	interview.StageDepth:      2,
}

// 任意回答序列下：阶段不回退，完成后保持完成，每个候选人回答恰好一个评分
func TestEngine_PropertySessionInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t)
		ctx := context.Background()
		mode := rapid.SampledFrom([]interview.Mode{interview.ModeStandard, interview.ModePresentation}).Draw(rt, "mode")
		answers := rapid.SliceOfN(rapid.SampledFrom([]string{
			"um I am not sure",
			"a process is a program in execution",
			"thank you",
			"",
			`{"text":"uh well","segments":[{"start":0,"end":1,"text":"uh"},{"start":3,"end":4,"text":"well"}],"duration":4}`,
		}), 0, 14).Draw(rt, "answers")
		forceEnd := rapid.Bool().Draw(rt, "forceEnd")

		res, err := h.engine.Start(ctx, testutil.NewSession("prop", mode))
		if err != nil {
			rt.Fatalf("start: %v", err)
		}
		prevRank := stageRank[res.Stage]
		completed := false

		for i, a := range answers {
			res, err = h.engine.Resume(ctx, "prop", a)
			if err != nil {
				rt.Fatalf("resume %d: %v", i, err)
			}
			if r := stageRank[res.Stage]; r < prevRank {
				rt.Fatalf("stage regressed to %s at answer %d", res.Stage, i)
			} else {
				prevRank = r
			}
			if completed && !res.Completed() {
				rt.Fatalf("completion reverted at answer %d", i)
			}
			completed = res.Completed()
		}
		if forceEnd {
			res, err = h.engine.ForceEnd(ctx, "prop")
			if err != nil {
				rt.Fatalf("force end: %v", err)
			}
			if !res.Completed() {
				rt.Fatalf("force end did not complete")
			}
		}

		cp, err := h.engine.Snapshot(ctx, "prop")
		if err != nil {
			rt.Fatalf("snapshot: %v", err)
		}
		candidates := 0
		for _, turn := range cp.Session.History {
			if turn.Role == interview.RoleCandidate {
				candidates++
			}
		}
		if got := len(cp.Session.Scores); got != candidates {
			rt.Fatalf("scores %d != candidate turns %d", got, candidates)
		}
		if n := len(cp.Session.History); n > 20 {
			rt.Fatalf("history grew past hard cap: %d", n)
		}
		if cp.Status == workflow.CheckpointCompleted && h.recorder.Result("prop").Writes != 1 {
			rt.Fatalf("session result written %d times", h.recorder.Result("prop").Writes)
		}
	})
}
