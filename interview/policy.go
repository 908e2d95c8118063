package interview

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/ahmadarif238/vivagraph-ai/types"
)

// PolicyConfig 阶段推进与终止阈值，单位均为 history 条目数
type PolicyConfig struct {
	StandardMaxTurns int      `yaml:"standard_max_turns" env:"STANDARD_MAX_TURNS"`
	HardMaxTurns     int      `yaml:"hard_max_turns" env:"HARD_MAX_TURNS"`
	QAMaxTurns       int      `yaml:"qa_max_turns" env:"QA_MAX_TURNS"`
	SpeakingMaxTurns int      `yaml:"speaking_max_turns" env:"SPEAKING_MAX_TURNS"`
	ClosingPhrases   []string `yaml:"closing_phrases"`
}

// DefaultPolicyConfig 返回默认阈值
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		StandardMaxTurns: 10,
		HardMaxTurns:     20,
		QAMaxTurns:       16,
		SpeakingMaxTurns: 12,
		ClosingPhrases: []string{
			"that is all",
			"i am done",
			"i have finished",
			"concludes my presentation",
			"thank you",
		},
	}
}

func (c PolicyConfig) withDefaults() PolicyConfig {
	d := DefaultPolicyConfig()
	if c.StandardMaxTurns <= 0 {
		c.StandardMaxTurns = d.StandardMaxTurns
	}
	if c.HardMaxTurns <= 0 {
		c.HardMaxTurns = d.HardMaxTurns
	}
	if c.QAMaxTurns <= 0 {
		c.QAMaxTurns = d.QAMaxTurns
	}
	if c.SpeakingMaxTurns <= 0 {
		c.SpeakingMaxTurns = d.SpeakingMaxTurns
	}
	if len(c.ClosingPhrases) == 0 {
		c.ClosingPhrases = d.ClosingPhrases
	}
	return c
}

// DecisionReason 记录决策来源，便于日志与测试断言
type DecisionReason string

const (
	ReasonAlreadyComplete DecisionReason = "already_complete"
	ReasonStandardCap     DecisionReason = "standard_cap"
	ReasonHardCap         DecisionReason = "hard_cap"
	ReasonQACap           DecisionReason = "qa_cap"
	ReasonKeepSpeaking    DecisionReason = "keep_speaking"
	ReasonSpeakingCap     DecisionReason = "speaking_cap"
	ReasonClosingPhrase   DecisionReason = "closing_phrase"
	ReasonModelEnd        DecisionReason = "model_end"
	ReasonContinue        DecisionReason = "continue"
)

// Decision 策略节点的输出
type Decision struct {
	Complete          bool
	Stage             Stage
	PresentationStage PresentationStage
	Reason            DecisionReason
}

// Policy 阶段/终止策略。
// 确定性前置检查优先于模型判断，触发时不调用模型。
type Policy struct {
	model  Model
	cfg    PolicyConfig
	logger *zap.Logger
}

// NewPolicy 创建策略节点
func NewPolicy(model Model, cfg PolicyConfig, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		model:  model,
		cfg:    cfg.withDefaults(),
		logger: logger.With(zap.String("component", "policy")),
	}
}

// Decide computes the next decision without mutating s.
func (p *Policy) Decide(ctx context.Context, s *Session) (Decision, error) {
	d := Decision{Stage: s.Stage, PresentationStage: s.PresentationStage}
	n := s.TurnCount()

	switch {
	case s.Complete:
		d.Complete, d.Reason = true, ReasonAlreadyComplete
		return d, nil
	case s.Mode == ModeStandard && n >= p.cfg.StandardMaxTurns:
		d.Complete, d.Reason = true, ReasonStandardCap
		return d, nil
	case n >= p.cfg.HardMaxTurns:
		d.Complete, d.Reason = true, ReasonHardCap
		return d, nil
	case s.Mode == ModePresentation && s.PresentationStage == PresentationQA && n >= p.cfg.QAMaxTurns:
		d.Complete, d.Reason = true, ReasonQACap
		return d, nil
	}

	if s.Mode == ModePresentation && s.PresentationStage == PresentationSpeaking {
		return p.decideSpeaking(s, d), nil
	}

	reply, err := p.model.Generate(ctx, StrategyPrompt, strategyVars(s))
	if err != nil {
		return Decision{}, types.NewModelCallError("policy", err)
	}
	if strings.Contains(strings.ToLower(reply), "end_interview") {
		d.Complete, d.Reason = true, ReasonModelEnd
		return d, nil
	}

	d.Stage = AdvanceStage(s.Stage, n)
	d.Reason = ReasonContinue
	return d, nil
}

func (p *Policy) decideSpeaking(s *Session, d Decision) Decision {
	n := s.TurnCount()
	if n == 0 {
		d.Reason = ReasonKeepSpeaking
		return d
	}
	if n >= p.cfg.SpeakingMaxTurns {
		d.PresentationStage, d.Stage, d.Reason = PresentationQA, StageDepth, ReasonSpeakingCap
		return d
	}
	last, _ := s.LastTurn()
	if containsClosingPhrase(last.Content, p.cfg.ClosingPhrases) {
		d.PresentationStage, d.Stage, d.Reason = PresentationQA, StageDepth, ReasonClosingPhrase
		return d
	}
	d.Reason = ReasonKeepSpeaking
	return d
}

// Apply runs Decide and writes the decision into s.
func (p *Policy) Apply(ctx context.Context, s *Session) error {
	d, err := p.Decide(ctx, s)
	if err != nil {
		return err
	}
	s.Complete = s.Complete || d.Complete
	if s.Stage.Before(d.Stage) {
		s.Stage = d.Stage
	}
	s.PresentationStage = d.PresentationStage

	p.logger.Debug("policy decision",
		zap.String("session_id", s.ID),
		zap.String("reason", string(d.Reason)),
		zap.Bool("complete", s.Complete),
		zap.String("stage", string(s.Stage)),
		zap.String("presentation_stage", string(s.PresentationStage)),
		zap.Int("turns", s.TurnCount()),
	)
	return nil
}

// AdvanceStage 规则化的阶段推进：turns = 条目数/2，
// turns>=1 时 intro→foundation，turns>=3 时 foundation→depth，永不回退。
func AdvanceStage(current Stage, turnCount int) Stage {
	turns := turnCount / 2
	switch {
	case current == StageIntro && turns >= 1:
		return StageFoundation
	case current == StageFoundation && turns >= 3:
		return StageDepth
	default:
		return current
	}
}

func containsClosingPhrase(content string, phrases []string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func strategyVars(s *Session) map[string]any {
	window := "Start"
	if n := len(s.History); n > 0 {
		from := n - 2
		if from < 0 {
			from = 0
		}
		window = FormatHistory(s.History[from:])
	}
	scores := "None"
	if last, ok := s.LatestScore(); ok {
		if b, err := json.Marshal(last); err == nil {
			scores = string(b)
		}
	}
	return map[string]any{
		"history":       window,
		"num_questions": s.TurnCount() / 2,
		"scores":        scores,
		"topic":         s.Topic,
		"strictness":    s.Strictness,
	}
}

// FormatHistory renders turns as "role: content" lines.
func FormatHistory(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}

func normalizeStrictness(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
