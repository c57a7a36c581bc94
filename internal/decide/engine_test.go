package decide

import (
	"strings"
	"testing"

	"github.com/fyrsmithlabs/engramd/internal/classify"
	"github.com/fyrsmithlabs/engramd/internal/score"
	"github.com/fyrsmithlabs/engramd/internal/store"
)

func scored(total int) score.Result {
	return score.Result{Total: total}
}

func TestDecideThresholds(t *testing.T) {
	e := New()
	th := DefaultThresholds()

	tests := []struct {
		name       string
		total      int
		wantAction Action
	}{
		{"well above high", 95, ActionAutoRemember},
		{"exactly high", 80, ActionAutoRemember},
		{"between medium and high", 65, ActionAsk},
		{"exactly medium", 50, ActionAsk},
		{"between low and medium", 40, ActionIgnore},
		{"below low", 10, ActionIgnore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Decide("plain meeting notes", classify.Result{}, scored(tt.total), th)
			if got.Action != tt.wantAction {
				t.Errorf("Decide(score=%d).Action = %s, want %s (audit: %v)",
					tt.total, got.Action, tt.wantAction, got.AuditTrail)
			}
			if len(got.AuditTrail) == 0 {
				t.Error("AuditTrail should record the fired rule")
			}
		})
	}
}

func TestDecideHighScoreConfidence(t *testing.T) {
	got := New().Decide("plain meeting notes", classify.Result{}, scored(85), DefaultThresholds())

	if got.Action != ActionAutoRemember {
		t.Fatalf("Action = %s, want auto_remember", got.Action)
	}
	if got.Confidence < 0.9 {
		t.Errorf("Confidence = %v, want >= 0.9 for a score past the high threshold", got.Confidence)
	}
	if got.Confidence > maxConfidence {
		t.Errorf("Confidence = %v, want <= %v", got.Confidence, maxConfidence)
	}
}

func TestDecideSecurityAlwaysEscalates(t *testing.T) {
	content := "rotated the leaked credentials and patched the auth bypass vulnerability"

	// Score 60 is below the high threshold; only the security rule can
	// produce auto_remember here.
	got := New().Decide(content, classify.Result{}, scored(60), DefaultThresholds())

	if !got.Features.Security {
		t.Fatal("Features.Security should be detected")
	}
	if got.Action != ActionAutoRemember {
		t.Errorf("Action = %s, want auto_remember via security escalation (audit: %v)",
			got.Action, got.AuditTrail)
	}
	if got.Confidence > maxConfidence {
		t.Errorf("Confidence = %v, want capped at %v", got.Confidence, maxConfidence)
	}

	found := false
	for _, line := range got.AuditTrail {
		if strings.Contains(line, "security") {
			found = true
		}
	}
	if !found {
		t.Errorf("AuditTrail = %v, should record the security rule", got.AuditTrail)
	}
}

func TestDecideSecurityEscalatesFromIgnore(t *testing.T) {
	got := New().Decide("fixed the sql injection in the login form", classify.Result{}, scored(20), DefaultThresholds())

	if got.Action != ActionAutoRemember {
		t.Errorf("Action = %s, want auto_remember even from the ignore branch", got.Action)
	}
}

func TestDecideFeatureEscalatesOneStep(t *testing.T) {
	// Architecture-flagged content in the ignore band steps up to ask,
	// not all the way to auto_remember.
	content := "we sketched the new service architecture and its module boundaries"
	got := New().Decide(content, classify.Result{}, scored(40), DefaultThresholds())

	if !got.Features.Architecture {
		t.Fatal("Features.Architecture should be detected")
	}
	if got.Action != ActionAsk {
		t.Errorf("Action = %s, want ask_confirmation (single-step escalation)", got.Action)
	}
	if got.Confidence <= 0.5 {
		t.Errorf("Confidence = %v, want boosted above the ignore base", got.Confidence)
	}
}

func TestDecideConfidenceNeverExceedsCap(t *testing.T) {
	// Every non-security feature at once on an already-high score.
	content := "reusable generic helper for the new architecture; 3x faster throughput; " +
		"rare heisenbug only reproduces under load"
	got := New().Decide(content, classify.Result{}, scored(99), DefaultThresholds())

	if got.Confidence > maxConfidence {
		t.Errorf("Confidence = %v, want <= %v", got.Confidence, maxConfidence)
	}
}

func TestDecideZeroThresholdsUseDefaults(t *testing.T) {
	e := New()
	withDefaults := e.Decide("notes", classify.Result{}, scored(70), DefaultThresholds())
	withZero := e.Decide("notes", classify.Result{}, scored(70), Thresholds{})

	if withZero.Action != withDefaults.Action {
		t.Errorf("zero thresholds Action = %s, want %s", withZero.Action, withDefaults.Action)
	}
}

func TestDecidePriority(t *testing.T) {
	e := New()
	th := DefaultThresholds()

	tests := []struct {
		total int
		want  Priority
	}{
		{95, PriorityCritical},
		{85, PriorityHigh},
		{60, PriorityMedium},
		{20, PriorityLow},
	}
	for _, tt := range tests {
		got := e.Decide("plain meeting notes", classify.Result{}, scored(tt.total), th)
		if got.Priority != tt.want {
			t.Errorf("Decide(score=%d).Priority = %s, want %s", tt.total, got.Priority, tt.want)
		}
	}
}

func TestDecideTags(t *testing.T) {
	cls := classify.Result{
		Type:        store.TypeSolution,
		ChangeType:  classify.ChangeBugFix,
		ImpactLevel: classify.ImpactHigh,
	}
	got := New().Decide("fixed the crash", cls, scored(85), DefaultThresholds())

	want := map[string]bool{"solution": false, "bug_fix": false, "impact:high": false}
	for _, tag := range got.Tags {
		if _, ok := want[tag]; ok {
			want[tag] = true
		}
	}
	for tag, seen := range want {
		if !seen {
			t.Errorf("Tags = %v, missing %q", got.Tags, tag)
		}
	}
}

func TestDetectFeatures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(Features) bool
	}{
		{"security", "patched a cross-site scripting vulnerability", func(f Features) bool { return f.Security }},
		{"performance", "reduced latency by 40% under load", func(f Features) bool { return f.Performance }},
		{"architecture", "redrew the service architecture diagram", func(f Features) bool { return f.Architecture }},
		{"reusability", "extracted a reusable helper library", func(f Features) bool { return f.HighReusability }},
		{"rare issue", "intermittent heisenbug under high concurrency", func(f Features) bool { return f.RareIssue }},
		{"none", "ordinary standup notes", func(f Features) bool {
			return f == Features{}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFeatures(tt.content); !tt.check(got) {
				t.Errorf("DetectFeatures(%q) = %+v", tt.content, got)
			}
		})
	}
}
