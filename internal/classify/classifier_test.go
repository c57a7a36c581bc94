package classify

import (
	"strings"
	"testing"

	"github.com/fyrsmithlabs/engramd/internal/store"
)

func TestClassify(t *testing.T) {
	c := New()

	tests := []struct {
		name       string
		content    string
		wantType   store.ContextType
		wantChange ChangeType
	}{
		{
			name:       "commit-style bug fix",
			content:    "fix: resolve null pointer in parseConfig (fixes #42)",
			wantType:   store.TypeBugFix,
			wantChange: ChangeBugFix,
		},
		{
			name:       "go stack trace",
			content:    "panic: runtime error: invalid memory address\ngoroutine 1 [running]:\nmain.main()",
			wantType:   store.TypeError,
			wantChange: ChangeUnknown,
		},
		{
			name:       "root cause writeup",
			content:    "The root cause was a stale cache entry; the workaround is to invalidate on write.",
			wantType:   store.TypeSolution,
			wantChange: ChangeUnknown,
		},
		{
			name:       "go test file",
			content:    "func TestParse(t *testing.T) {\n\tassert.Equal(t, 1, parse(\"1\"))\n}",
			wantType:   store.TypeTest,
			wantChange: ChangeTest,
		},
		{
			name:       "markdown documentation",
			content:    "# Usage\n\nRun the binary with --help to see available flags. See the README for details.",
			wantType:   store.TypeDocumentation,
			wantChange: ChangeDocumentation,
		},
		{
			name:       "conventional feature commit",
			content:    "feat: add support for custom key bindings",
			wantType:   store.TypeFeature,
			wantChange: ChangeFeature,
		},
		{
			name:       "spanish bug report",
			content:    "Se arregló el fallo en el módulo de pagos",
			wantType:   store.TypeBugFix,
			wantChange: ChangeBugFix,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.content, nil)
			if got.Type != tt.wantType {
				t.Errorf("Classify(%q).Type = %s, want %s (reasoning: %s)",
					tt.content, got.Type, tt.wantType, got.Reasoning)
			}
			if got.ChangeType != tt.wantChange {
				t.Errorf("ChangeType = %s, want %s", got.ChangeType, tt.wantChange)
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Errorf("Confidence = %v, want (0,1]", got.Confidence)
			}
		})
	}
}

func TestClassifyBugFixExample(t *testing.T) {
	got := New().Classify("fix: resolve null pointer in parseConfig (fixes #42)", nil)

	if got.Type != store.TypeBugFix {
		t.Fatalf("Type = %s, want bug_fix", got.Type)
	}
	if len(got.RelatedIssues) != 1 || got.RelatedIssues[0] != "#42" {
		t.Errorf("RelatedIssues = %v, want [#42]", got.RelatedIssues)
	}
	if len(got.MatchedFeatures) == 0 {
		t.Error("MatchedFeatures should not be empty")
	}
}

func TestClassifyUnmatchedDefaultsToConversation(t *testing.T) {
	got := New().Classify("zzz qqq xxx", nil)

	if got.Type != store.TypeConversation {
		t.Errorf("Type = %s, want conversation", got.Type)
	}
	if got.Confidence != 0.1 {
		t.Errorf("Confidence = %v, want 0.1", got.Confidence)
	}
}

func TestClassifyMetadataChangeKind(t *testing.T) {
	// Ambiguous content: the external change kind decides.
	content := "updated the module"

	got := New().Classify(content, &Metadata{ChangeKind: ChangeRefactor})
	if got.Type != store.TypeRefactor {
		t.Errorf("Type = %s, want refactor from metadata change kind", got.Type)
	}
	found := false
	for _, f := range got.MatchedFeatures {
		if f == "metadata-change-kind" {
			found = true
		}
	}
	if !found {
		t.Errorf("MatchedFeatures = %v, should record the metadata bonus", got.MatchedFeatures)
	}
}

func TestClassifyTieBreak(t *testing.T) {
	// Two types carrying the same single pattern tie on any matching
	// content; the first-registered type must win.
	table := []typePatterns{
		{Type: store.TypeSolution, Patterns: []Pattern{
			{Name: "shared", Kind: matchKeyword, Expr: "deploy", Weight: keywordWeight},
		}},
		{Type: store.TypeDocumentation, Patterns: []Pattern{
			{Name: "shared", Kind: matchKeyword, Expr: "deploy", Weight: keywordWeight},
		}},
	}
	got := NewWithTable(table).Classify("deploy finished", nil)

	if got.Type != store.TypeSolution {
		t.Errorf("Type = %s, want solution (first-registered wins ties)", got.Type)
	}
}

func TestClassifyConfidenceCapped(t *testing.T) {
	content := "fix: fixed bug, resolve and patch the crash (fixes #1)"
	got := New().Classify(content, &Metadata{ChangeKind: ChangeBugFix})

	if got.Confidence > 1.0 {
		t.Errorf("Confidence = %v, want capped at 1.0", got.Confidence)
	}
}

func TestClassifyImpact(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    ImpactLevel
	}{
		{"security keyword", "fix: patch SQL injection vulnerability", ImpactCritical},
		{"breaking keyword", "fix: breaking change in wire format", ImpactHigh},
		{"typo keyword", "fix: typo in log message", ImpactLow},
		{"error type default", "error: failed to connect", ImpactHigh},
		{"conversation default", "zzz qqq", ImpactLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New().Classify(tt.content, nil)
			if got.ImpactLevel != tt.want {
				t.Errorf("ImpactLevel = %s, want %s", got.ImpactLevel, tt.want)
			}
		})
	}
}

func TestRelatedIssuesDeduplicated(t *testing.T) {
	got := New().Classify("fix: resolves #7, relates to #9 and #7 again", nil)

	want := []string{"#7", "#9"}
	if len(got.RelatedIssues) != len(want) {
		t.Fatalf("RelatedIssues = %v, want %v", got.RelatedIssues, want)
	}
	for i := range want {
		if got.RelatedIssues[i] != want[i] {
			t.Errorf("RelatedIssues[%d] = %s, want %s", i, got.RelatedIssues[i], want[i])
		}
	}
}

func TestLooksLikeCode(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{
			name:    "go function",
			content: "func add(a, b int) int {\n\treturn a + b\n}",
			want:    true,
		},
		{
			name:    "javascript",
			content: "function add(a, b) { return a + b; };\nconst x = add(1, 2);",
			want:    true,
		},
		{
			name:    "prose",
			content: "We discussed the release plan and agreed to ship on Friday.",
			want:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeCode(tt.content); got != tt.want {
				t.Errorf("looksLikeCode(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestClassifyTruncatesLongContent(t *testing.T) {
	long := "fix: resolve the bug. " + strings.Repeat("padding ", 10*1024)
	got := New().Classify(long, nil)

	if got.Type != store.TypeBugFix {
		t.Errorf("Type = %s, want bug_fix from the retained prefix", got.Type)
	}
}

func TestNewWithTableSkipsInvalidRegex(t *testing.T) {
	table := []typePatterns{
		{Type: store.TypeCode, Patterns: []Pattern{
			{Name: "broken", Kind: matchRegex, Expr: `([unclosed`, Weight: regexWeight},
			{Name: "ok", Kind: matchKeyword, Expr: "snippet", Weight: keywordWeight},
		}},
	}
	got := NewWithTable(table).Classify("a useful snippet", nil)

	if got.Type != store.TypeCode {
		t.Errorf("Type = %s, want code via the surviving keyword pattern", got.Type)
	}
}
