package decide

// Action is the retention verdict for a piece of content.
type Action string

const (
	ActionAutoRemember Action = "auto_remember"
	ActionAsk          Action = "ask_confirmation"
	ActionIgnore       Action = "ignore"
)

// Priority buckets a decision for downstream consumers.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Thresholds configures the score cut points. Low never selects a branch;
// it only labels the rationale for near-miss scores.
type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

// DefaultThresholds returns the seed thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 80, Medium: 50, Low: 30}
}

// Features are the content flags consulted by the escalation pass.
type Features struct {
	RareIssue       bool `json:"rare_issue"`
	HighReusability bool `json:"high_reusability"`
	Architecture    bool `json:"architecture"`
	Performance     bool `json:"performance"`
	Security        bool `json:"security"`
}

// Result is the decision engine output.
type Result struct {
	Action     Action   `json:"action"`
	Confidence float64  `json:"confidence"`
	Priority   Priority `json:"priority"`
	Tags       []string `json:"tags,omitempty"`
	Features   Features `json:"features"`

	// AuditTrail records which rules fired, in order.
	AuditTrail []string `json:"audit_trail"`
}
