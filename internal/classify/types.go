package classify

import (
	"github.com/fyrsmithlabs/engramd/internal/store"
)

// ChangeType describes the kind of code change the content represents.
type ChangeType string

const (
	ChangeFeature       ChangeType = "feature"
	ChangeBugFix        ChangeType = "bug_fix"
	ChangeRefactor      ChangeType = "refactor"
	ChangeOptimization  ChangeType = "optimization"
	ChangeDocumentation ChangeType = "documentation"
	ChangeTest          ChangeType = "test"
	ChangeConfiguration ChangeType = "configuration"
	ChangeUnknown       ChangeType = ""
)

// ImpactLevel grades how far a change reaches.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// Metadata carries optional hints supplied by the caller alongside the
// raw text.
type Metadata struct {
	// ChangeKind is an externally supplied change kind (e.g. from a commit
	// hook). When set it contributes a large fixed bonus toward its mapped
	// content type.
	ChangeKind ChangeType

	// FilePath, when known, helps language detection downstream.
	FilePath string
}

// Result is the classifier output for one piece of content.
type Result struct {
	// Type is the winning content type.
	Type store.ContextType `json:"type"`

	// Confidence is the winning accumulated score, capped at 1.0.
	Confidence float64 `json:"confidence"`

	// Reasoning is a short human-readable account of why the type won.
	Reasoning string `json:"reasoning"`

	// MatchedFeatures lists the pattern names that contributed.
	MatchedFeatures []string `json:"matched_features,omitempty"`

	// ChangeType is derived by an independent keyword pass.
	ChangeType ChangeType `json:"change_type,omitempty"`

	// ImpactLevel is derived by an independent keyword pass, falling back
	// to the per-type default when nothing matches.
	ImpactLevel ImpactLevel `json:"impact_level,omitempty"`

	// RelatedIssues holds issue references extracted from the content
	// (e.g. "#42").
	RelatedIssues []string `json:"related_issues,omitempty"`
}
