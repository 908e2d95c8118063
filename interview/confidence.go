package interview

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

const (
	pauseGapSeconds     = 0.5
	estimatedWordSecond = 0.5
)

// fillerWords 按单个 token 匹配；多词短语经过空白切分后不会命中。
var fillerWords = map[string]struct{}{
	"um":       {},
	"uh":       {},
	"ah":       {},
	"like":     {},
	"you know": {},
	"sort of":  {},
	"kind of":  {},
}

// TranscriptSegment 语音转写中的一个时间片段（秒）
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text,omitempty"`
}

// Transcript 结构化转写结果
type Transcript struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
	Duration *float64            `json:"duration,omitempty"`
}

// ParseTranscript interprets answer content. Content mentioning "segments" is
// decoded as a structured transcript; anything else, including JSON that fails
// to decode, is treated as plain text.
func ParseTranscript(content string) (Transcript, bool) {
	if strings.Contains(content, "segments") {
		var tr Transcript
		if err := json.Unmarshal([]byte(content), &tr); err == nil {
			return tr, true
		}
	}
	return Transcript{Text: content}, false
}

// AnalyzeConfidence 根据填充词、停顿与语速推导自信度
func AnalyzeConfidence(content string) ConfidenceSignal {
	tr, structured := ParseTranscript(content)
	words := strings.Fields(strings.ToLower(tr.Text))

	hesitations := 0
	for _, w := range words {
		if _, ok := fillerWords[strings.Trim(w, ".,!?")]; ok {
			hesitations++
		}
	}

	pauseMs := 0.0
	if structured {
		for i := 0; i+1 < len(tr.Segments); i++ {
			gap := tr.Segments[i+1].Start - tr.Segments[i].End
			if gap > pauseGapSeconds {
				pauseMs += gap * 1000
			}
		}
	}

	duration := float64(len(words)) * estimatedWordSecond
	if structured && tr.Duration != nil {
		duration = *tr.Duration
	}
	wpm := 0.0
	if duration > 0 {
		wpm = float64(len(words)) / duration * 60
	}

	return ConfidenceSignal{
		HesitationCount: hesitations,
		PauseDurationMs: int(pauseMs),
		WordsPerMinute:  int(wpm),
		Label:           ClassifyConfidence(hesitations, int(pauseMs)),
	}
}

// ClassifyConfidence: Low if hesitations > 4 or pause > 3000ms,
// Medium if hesitations > 2 or pause > 1000ms, otherwise High.
func ClassifyConfidence(hesitations, pauseMs int) ConfidenceLabel {
	switch {
	case hesitations > 4 || pauseMs > 3000:
		return ConfidenceLow
	case hesitations > 2 || pauseMs > 1000:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// ConfidenceAnalyzer 工作流中的自信度分析节点（无模型调用）
type ConfidenceAnalyzer struct {
	recorder Recorder
	logger   *zap.Logger
}

// NewConfidenceAnalyzer 创建自信度分析节点
func NewConfidenceAnalyzer(recorder Recorder, logger *zap.Logger) *ConfidenceAnalyzer {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfidenceAnalyzer{
		recorder: recorder,
		logger:   logger.With(zap.String("component", "confidence")),
	}
}

// Analyze 分析最近一条候选人回答；最近一条不是候选人时不做任何事
func (a *ConfidenceAnalyzer) Analyze(ctx context.Context, s *Session) error {
	last, ok := s.LastTurn()
	if !ok || last.Role != RoleCandidate {
		return nil
	}

	signal := AnalyzeConfidence(last.Content)
	s.Confidence = &signal

	if s.CurrentAnswerID != "" {
		if err := a.recorder.SaveConfidence(ctx, s.CurrentAnswerID, signal); err != nil {
			a.logger.Warn("failed to persist confidence metrics",
				zap.String("session_id", s.ID),
				zap.String("answer_id", s.CurrentAnswerID),
				zap.Error(err),
			)
		}
	}
	return nil
}
