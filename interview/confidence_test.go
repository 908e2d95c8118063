// 自信度分析测试。
package interview_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/testutil"
	"github.com/ahmadarif238/vivagraph-ai/testutil/mocks"
)

func TestAnalyzeConfidence_PlainText(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		hesitations int
		label       interview.ConfidenceLabel
	}{
		{"no fillers", "A process is a program in execution.", 0, interview.ConfidenceHigh},
		{"four fillers is medium", "um uh ah like the scheduler", 4, interview.ConfidenceMedium},
		{"five fillers is low", "um, uh, ah! like? um the scheduler", 5, interview.ConfidenceLow},
		{"three fillers is medium", "Um the uh kernel ah", 3, interview.ConfidenceMedium},
		{"multi word fillers are not counted", "you know it is sort of kind of fine", 0, interview.ConfidenceHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := interview.AnalyzeConfidence(tt.text)
			assert.Equal(t, tt.hesitations, sig.HesitationCount)
			assert.Equal(t, tt.label, sig.Label)
			assert.Equal(t, 0, sig.PauseDurationMs)
		})
	}
}

func TestAnalyzeConfidence_EstimatedRate(t *testing.T) {
	// 0.5 秒/词的估计下语速恒为 120 wpm
	sig := interview.AnalyzeConfidence("one two three four")
	assert.Equal(t, 120, sig.WordsPerMinute)

	assert.Equal(t, 0, interview.AnalyzeConfidence("").WordsPerMinute)
}

func TestAnalyzeConfidence_StructuredTranscript(t *testing.T) {
	content := `{"text":"paging splits memory into frames","segments":[
		{"start":0,"end":1.0},{"start":1.4,"end":2.0},{"start":3.5,"end":4.0},{"start":6.0,"end":7.0}],
		"duration":12}`

	sig := interview.AnalyzeConfidence(content)
	// 1.4-1.0=0.4 不计；3.5-2.0=1.5；6.0-4.0=2.0
	assert.Equal(t, 3500, sig.PauseDurationMs)
	assert.Equal(t, 25, sig.WordsPerMinute)
	assert.Equal(t, interview.ConfidenceLow, sig.Label)
}

func TestAnalyzeConfidence_MalformedTranscriptFallsBackToText(t *testing.T) {
	sig := interview.AnalyzeConfidence(`segments {not json um uh`)
	assert.Equal(t, 2, sig.HesitationCount)
	assert.Equal(t, 0, sig.PauseDurationMs)
}

func TestClassifyConfidence_Boundaries(t *testing.T) {
	assert.Equal(t, interview.ConfidenceHigh, interview.ClassifyConfidence(2, 1000))
	assert.Equal(t, interview.ConfidenceMedium, interview.ClassifyConfidence(2, 1001))
	assert.Equal(t, interview.ConfidenceMedium, interview.ClassifyConfidence(4, 3000))
	assert.Equal(t, interview.ConfidenceLow, interview.ClassifyConfidence(4, 3001))
	assert.Equal(t, interview.ConfidenceLow, interview.ClassifyConfidence(5, 0))
}

func TestProperty_ConfidenceLabelThresholds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("label follows hesitation and pause thresholds", prop.ForAll(
		func(hesitations, pauseMs int) bool {
			label := interview.ClassifyConfidence(hesitations, pauseMs)
			switch {
			case hesitations > 4 || pauseMs > 3000:
				return label == interview.ConfidenceLow
			case hesitations > 2 || pauseMs > 1000:
				return label == interview.ConfidenceMedium
			default:
				return label == interview.ConfidenceHigh
			}
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 10000),
	))

	properties.Property("hesitation count equals number of single-word fillers", prop.ForAll(
		func(fillers, plain int) bool {
			words := make([]string, 0, fillers+plain)
			for i := 0; i < fillers; i++ {
				words = append(words, "um,")
			}
			for i := 0; i < plain; i++ {
				words = append(words, "kernel")
			}
			return interview.AnalyzeConfidence(strings.Join(words, " ")).HesitationCount == fillers
		},
		gen.IntRange(0, 15),
		gen.IntRange(0, 15),
	))

	properties.TestingRun(t)
}

func TestConfidenceAnalyzer_Node(t *testing.T) {
	ctx := context.Background()

	t.Run("examiner turn is a no-op", func(t *testing.T) {
		rec := mocks.NewMockRecorder()
		s := testutil.SessionWithHistory("s-1", interview.ModeStandard, 1)
		require.NoError(t, interview.NewConfidenceAnalyzer(rec, nil).Analyze(ctx, s))
		assert.Nil(t, s.Confidence)
	})

	t.Run("persists when answer id present", func(t *testing.T) {
		rec := mocks.NewMockRecorder()
		s := testutil.SessionWithHistory("s-1", interview.ModeStandard, 2)
		s.History[1].Content = "um uh ah well"
		s.CurrentAnswerID = "a-9"

		require.NoError(t, interview.NewConfidenceAnalyzer(rec, nil).Analyze(ctx, s))
		require.NotNil(t, s.Confidence)
		assert.Equal(t, interview.ConfidenceMedium, s.Confidence.Label)
		got, ok := rec.ConfidenceFor("a-9")
		require.True(t, ok)
		assert.Equal(t, *s.Confidence, got)
	})

	t.Run("persistence failure is swallowed", func(t *testing.T) {
		rec := mocks.NewMockRecorder().WithError(errors.New("db down"))
		s := testutil.SessionWithHistory("s-1", interview.ModeStandard, 2)
		s.CurrentAnswerID = "a-1"
		require.NoError(t, interview.NewConfidenceAnalyzer(rec, nil).Analyze(ctx, s))
		assert.NotNil(t, s.Confidence)
	})
}
