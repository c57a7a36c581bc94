// Package decide maps a value score and content features to a retention
// action.
//
// The basic pass is a pure threshold comparison; a second pass re-checks
// the verdict against content-feature flags and may escalate it one step,
// with a bounded, feature-specific confidence bump. Security-flagged
// content always escalates to auto-remember regardless of score.
package decide

import (
	"fmt"

	"github.com/fyrsmithlabs/engramd/internal/classify"
	"github.com/fyrsmithlabs/engramd/internal/score"
)

// maxConfidence caps every escalation bump.
const maxConfidence = 0.95

// Confidence increments per escalating feature.
var featureIncrements = []struct {
	name      string
	flag      func(Features) bool
	increment float64
}{
	{"security", func(f Features) bool { return f.Security }, 0.25},
	{"rare_issue", func(f Features) bool { return f.RareIssue }, 0.15},
	{"architecture", func(f Features) bool { return f.Architecture }, 0.12},
	{"high_reusability", func(f Features) bool { return f.HighReusability }, 0.1},
	{"performance", func(f Features) bool { return f.Performance }, 0.08},
}

// Engine evaluates decisions against configurable thresholds.
type Engine struct{}

// New creates a decision engine.
func New() *Engine {
	return &Engine{}
}

// Decide produces the retention verdict for scored, classified content.
// Zero-valued thresholds fall back to the documented defaults.
func (e *Engine) Decide(content string, cls classify.Result, sc score.Result, th Thresholds) Result {
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}

	total := float64(sc.Total)
	var audit []string

	// First pass: pure threshold comparison. The low threshold never
	// selects a branch; it only labels the rationale.
	var action Action
	var confidence float64
	switch {
	case total >= th.High:
		action = ActionAutoRemember
		confidence = 0.9 + (total-th.High)/200
		audit = append(audit, fmt.Sprintf("score %.0f >= high threshold %.0f: auto_remember", total, th.High))
	case total >= th.Medium:
		action = ActionAsk
		confidence = 0.7
		audit = append(audit, fmt.Sprintf("score %.0f >= medium threshold %.0f: ask_confirmation", total, th.Medium))
	default:
		action = ActionIgnore
		confidence = 0.5
		if total >= th.Low {
			audit = append(audit, fmt.Sprintf("score %.0f below medium threshold %.0f (above low): ignore", total, th.Medium))
		} else {
			audit = append(audit, fmt.Sprintf("score %.0f below low threshold %.0f: ignore", total, th.Low))
		}
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	// Second pass: feature escalations. Security overrides everything and
	// escalates straight to auto-remember; other features push the action
	// up one step at most.
	features := DetectFeatures(content)

	if features.Security {
		if action != ActionAutoRemember {
			audit = append(audit, "security feature: escalated to auto_remember")
		} else {
			audit = append(audit, "security feature: confidence boost")
		}
		action = ActionAutoRemember
		confidence = bump(confidence, 0.25)
	} else {
		// At most one step up per decision; further features only boost
		// confidence.
		escalated := false
		for _, fi := range featureIncrements {
			if fi.name == "security" || !fi.flag(features) {
				continue
			}
			switch {
			case !escalated && action == ActionIgnore:
				action = ActionAsk
				escalated = true
				confidence = bump(confidence, fi.increment)
				audit = append(audit, fmt.Sprintf("%s feature: escalated ignore -> ask_confirmation", fi.name))
			case !escalated && action == ActionAsk:
				action = ActionAutoRemember
				escalated = true
				confidence = bump(confidence, fi.increment)
				audit = append(audit, fmt.Sprintf("%s feature: escalated ask_confirmation -> auto_remember", fi.name))
			default:
				confidence = bump(confidence, fi.increment)
				audit = append(audit, fmt.Sprintf("%s feature: confidence boost", fi.name))
			}
		}
	}

	return Result{
		Action:     action,
		Confidence: confidence,
		Priority:   priorityFor(action, total),
		Tags:       generateTags(cls, features),
		Features:   features,
		AuditTrail: audit,
	}
}

// bump raises confidence by a fixed increment, never exceeding the cap.
func bump(confidence, increment float64) float64 {
	confidence += increment
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return confidence
}

// priorityFor derives the priority bucket from action and score.
func priorityFor(action Action, total float64) Priority {
	switch action {
	case ActionAutoRemember:
		if total >= 90 {
			return PriorityCritical
		}
		return PriorityHigh
	case ActionAsk:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// generateTags derives tags from the classification and detected features.
func generateTags(cls classify.Result, features Features) []string {
	var tags []string
	if cls.Type != "" {
		tags = append(tags, string(cls.Type))
	}
	if cls.ChangeType != classify.ChangeUnknown && string(cls.ChangeType) != string(cls.Type) {
		tags = append(tags, string(cls.ChangeType))
	}
	if cls.ImpactLevel != "" {
		tags = append(tags, "impact:"+string(cls.ImpactLevel))
	}
	if features.Security {
		tags = append(tags, "security")
	}
	if features.Architecture {
		tags = append(tags, "architecture")
	}
	if features.Performance {
		tags = append(tags, "performance")
	}
	if features.RareIssue {
		tags = append(tags, "rare-issue")
	}
	if features.HighReusability {
		tags = append(tags, "reusable")
	}
	return tags
}
