package score

import (
	"math"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/engramd/internal/classify"
	"github.com/fyrsmithlabs/engramd/internal/store"
)

func TestScoreBugFixExample(t *testing.T) {
	content := "fix: resolve null pointer in parseConfig (fixes #42)"
	cls := classify.New().Classify(content, nil)
	if cls.Type != store.TypeBugFix {
		t.Fatalf("precondition: Type = %s, want bug_fix", cls.Type)
	}

	got := New().Score(content, cls, DefaultWeights())

	// Base complexity: "null pointer" keyword (8) + problem-bearing type
	// (20) + one issue reference (10) = 38, then the 1.3x bug-fix
	// multiplier.
	want := 38.0 * 1.3
	if math.Abs(got.ProblemComplexity.Score-want) > 1e-9 {
		t.Errorf("ProblemComplexity.Score = %v, want %v", got.ProblemComplexity.Score, want)
	}
	if !strings.Contains(got.ProblemComplexity.Explanation, "bug-fix multiplier") {
		t.Errorf("Explanation = %q, should mention the bug-fix multiplier", got.ProblemComplexity.Explanation)
	}
	if got.SolutionImportance.Score == 0 {
		t.Error("SolutionImportance should be non-zero for a bug fix")
	}
	if got.Total <= 0 || got.Total > 100 {
		t.Errorf("Total = %d, want within (0,100]", got.Total)
	}
}

func TestScoreZeroWeightsFallBackToDefaults(t *testing.T) {
	content := "fix: resolve null pointer in parseConfig (fixes #42)"
	cls := classify.New().Classify(content, nil)

	s := New()
	withDefaults := s.Score(content, cls, DefaultWeights())
	withZero := s.Score(content, cls, Weights{})

	if withZero.Total != withDefaults.Total {
		t.Errorf("zero weights Total = %d, want %d (defaults)", withZero.Total, withDefaults.Total)
	}
}

func TestKeywordDensityCapped(t *testing.T) {
	// Far more keyword occurrences than the cap admits.
	lower := strings.Repeat("deadlock race condition memory leak ", 10)

	if got := keywordDensity(lower, complexityKeywords); got != keywordCap {
		t.Errorf("keywordDensity = %v, want capped at %v", got, keywordCap)
	}
}

func TestDimensionsClamped(t *testing.T) {
	// Critical impact + solution type + dense keywords pushes importance
	// toward the ceiling, never past it.
	content := strings.Repeat("fix resolve workaround solution prevent mitigate patch ", 10)
	cls := classify.Result{Type: store.TypeSolution, ImpactLevel: classify.ImpactCritical}

	got := New().Score(content, cls, DefaultWeights())

	for name, d := range map[string]Dimension{
		"code_significance":   got.CodeSignificance,
		"problem_complexity":  got.ProblemComplexity,
		"solution_importance": got.SolutionImportance,
		"reusability":         got.Reusability,
	} {
		if d.Score < 0 || d.Score > 100 {
			t.Errorf("%s = %v, want within [0,100]", name, d.Score)
		}
	}
}

func TestCodeSignificanceLengthBonus(t *testing.T) {
	cls := classify.Result{Type: store.TypeCode}
	s := New()

	short := s.Score("x := 1", cls, DefaultWeights())
	medium := s.Score(strings.Repeat("line of code\n", 50), cls, DefaultWeights())
	long := s.Score(strings.Repeat("line of code\n", 200), cls, DefaultWeights())

	if medium.CodeSignificance.Score <= short.CodeSignificance.Score {
		t.Error("moderate-length content should outscore trivial content")
	}
	if long.CodeSignificance.Score <= medium.CodeSignificance.Score {
		t.Error("substantial content should outscore moderate content")
	}
}

func TestCodeSignificanceImpactBonus(t *testing.T) {
	s := New()
	base := s.Score("plain text", classify.Result{}, DefaultWeights())
	high := s.Score("plain text", classify.Result{ImpactLevel: classify.ImpactHigh}, DefaultWeights())

	if high.CodeSignificance.Score-base.CodeSignificance.Score != 20 {
		t.Errorf("high impact bonus = %v, want 20",
			high.CodeSignificance.Score-base.CodeSignificance.Score)
	}
}

func TestReusabilityStructuralBonusNeedsTwoSignals(t *testing.T) {
	s := New()

	// One signal only: an exported function, nothing else.
	one := s.Score("func Add(a, b int) int { return a + b }", classify.Result{}, DefaultWeights())
	if one.Reusability.Score != 0 {
		t.Errorf("one signal Reusability = %v, want 0 (bonus needs >= 2 signals)", one.Reusability.Score)
	}

	// Exported function + type declaration + comment: three signals.
	multi := s.Score(
		"// Add sums two ints.\nfunc Add(a, b int) int { return a + b }\n\ntype Adder struct{}",
		classify.Result{}, DefaultWeights())
	if multi.Reusability.Score < 30 {
		t.Errorf("multi-signal Reusability = %v, want >= 30", multi.Reusability.Score)
	}
}

func TestTotalIsWeightedSum(t *testing.T) {
	content := "fix: resolve deadlock in cache layer"
	cls := classify.New().Classify(content, nil)
	w := Weights{CodeSignificance: 0.4, ProblemComplexity: 0.3, SolutionImportance: 0.2, Reusability: 0.1}

	got := New().Score(content, cls, w)
	want := int(math.Round(
		got.CodeSignificance.Score*0.4 +
			got.ProblemComplexity.Score*0.3 +
			got.SolutionImportance.Score*0.2 +
			got.Reusability.Score*0.1))

	if got.Total != want {
		t.Errorf("Total = %d, want %d", got.Total, want)
	}
}
