// Package score computes the multi-dimensional value score that drives
// retention decisions.
//
// Each dimension is an independent heuristic: keyword-density bonuses
// (occurrences × fixed increment, capped), structural bonuses, and a
// process-type multiplier. Dimension scores are clamped to [0,100] before
// weighting; the total is the weighted sum rounded to an integer.
package score

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/engramd/internal/classify"
	"github.com/fyrsmithlabs/engramd/internal/store"
)

const (
	keywordIncrement = 8.0
	keywordCap       = 40.0

	// bugFixMultiplier amplifies problem complexity for bug fixes.
	bugFixMultiplier = 1.3
)

// Keyword tables per dimension. Data, not control flow.
var (
	significanceKeywords = []string{
		"algorithm", "architecture", "concurrency", "transaction", "cache",
		"security", "authentication", "encryption", "migration", "protocol",
		"algoritmo", "arquitectura", "seguridad",
	}
	complexityKeywords = []string{
		"race condition", "deadlock", "memory leak", "null pointer",
		"edge case", "intermittent", "root cause", "corruption", "regression",
		"heisenbug", "condición de carrera", "fuga de memoria",
	}
	importanceKeywords = []string{
		"fix", "resolve", "workaround", "solution", "prevent", "mitigate",
		"patch", "solución", "arreglo",
	}
	reusabilityKeywords = []string{
		"util", "helper", "generic", "wrapper", "library", "pattern",
		"interface", "reusable", "módulo", "genérico",
	}

	// reusableSignalPatterns detect known reusable shapes. A structural
	// reusability bonus needs at least two corroborating signals.
	reusableSignalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bfunc\s+[A-Z]\w*\s*\(`),            // exported function
		regexp.MustCompile(`\btype\s+\w+\s+(struct|interface)`), // type declaration
		regexp.MustCompile(`<[TKV]>|\[T\s|\bany\b|\bgeneric`),   // parameterized
		regexp.MustCompile(`(?m)^\s*(//|#|\*)\s*\w`),            // commented
		regexp.MustCompile(`(?i)\bexample\b|\bejemplo\b`),       // has examples
	}

	docstringPattern = regexp.MustCompile(`(?s)/\*\*.*?\*/|"""[^"]*"""|(?m)^\s*///`)
)

// Scorer computes value scores for classified content.
type Scorer struct{}

// New creates a scorer.
func New() *Scorer {
	return &Scorer{}
}

// Score computes the four dimensions and the weighted total. Zero-valued
// weights fall back to the documented defaults; missing classifier fields
// degrade the heuristics but never fail.
func (s *Scorer) Score(content string, cls classify.Result, w Weights) Result {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	lower := strings.ToLower(content)

	codeSig := s.codeSignificance(content, lower, cls)
	probCx := s.problemComplexity(content, lower, cls)
	solImp := s.solutionImportance(content, lower, cls)
	reuse := s.reusability(content, lower)

	total := codeSig.Score*w.CodeSignificance +
		probCx.Score*w.ProblemComplexity +
		solImp.Score*w.SolutionImportance +
		reuse.Score*w.Reusability

	return Result{
		CodeSignificance:   codeSig,
		ProblemComplexity:  probCx,
		SolutionImportance: solImp,
		Reusability:        reuse,
		Total:              int(math.Round(total)),
	}
}

func (s *Scorer) codeSignificance(content, lower string, cls classify.Result) Dimension {
	score := keywordDensity(lower, significanceKeywords)
	var notes []string
	if score > 0 {
		notes = append(notes, "significant domain keywords present")
	}

	// Length bonus: non-trivial bodies of code carry more signal.
	switch {
	case len(content) > 2000:
		score += 20
		notes = append(notes, "substantial content length")
	case len(content) > 500:
		score += 10
		notes = append(notes, "moderate content length")
	}

	if docstringPattern.MatchString(content) {
		score += 15
		notes = append(notes, "documented with docstrings")
	}

	if cls.ImpactLevel == classify.ImpactHigh || cls.ImpactLevel == classify.ImpactCritical {
		score += 20
		notes = append(notes, fmt.Sprintf("%s impact", cls.ImpactLevel))
	}

	return clampDimension(score, notes, "no code significance signals")
}

func (s *Scorer) problemComplexity(content, lower string, cls classify.Result) Dimension {
	score := keywordDensity(lower, complexityKeywords)
	var notes []string
	if score > 0 {
		notes = append(notes, "complex-problem keywords present")
	}

	if cls.Type == store.TypeError || cls.ChangeType == classify.ChangeBugFix {
		score += 20
		notes = append(notes, "problem-bearing content type")
	}
	if len(cls.RelatedIssues) > 0 {
		score += 10
		notes = append(notes, fmt.Sprintf("references %d issue(s)", len(cls.RelatedIssues)))
	}

	// Bug fixes amplify problem complexity.
	if cls.ChangeType == classify.ChangeBugFix {
		score *= bugFixMultiplier
		notes = append(notes, "bug-fix multiplier applied")
	}

	return clampDimension(score, notes, "no complexity signals")
}

func (s *Scorer) solutionImportance(content, lower string, cls classify.Result) Dimension {
	score := keywordDensity(lower, importanceKeywords)
	var notes []string
	if score > 0 {
		notes = append(notes, "solution keywords present")
	}

	if cls.Type == store.TypeSolution || cls.Type == store.TypeBugFix {
		score += 25
		notes = append(notes, "solution-bearing content type")
	}
	if cls.ImpactLevel == classify.ImpactCritical {
		score += 20
		notes = append(notes, "critical impact")
	}

	return clampDimension(score, notes, "no solution signals")
}

func (s *Scorer) reusability(content, lower string) Dimension {
	score := keywordDensity(lower, reusabilityKeywords)
	var notes []string
	if score > 0 {
		notes = append(notes, "reusability keywords present")
	}

	// Structural bonus requires at least two corroborating signals;
	// one match alone is too weak to call something reusable.
	signals := 0
	for _, p := range reusableSignalPatterns {
		if p.MatchString(content) {
			signals++
		}
	}
	if signals >= 2 {
		score += float64(signals) * 10
		notes = append(notes, fmt.Sprintf("%d reusable-pattern signals", signals))
	}

	return clampDimension(score, notes, "no reusability signals")
}

// keywordDensity sums occurrence-count increments per keyword, capped.
func keywordDensity(lower string, keywords []string) float64 {
	score := 0.0
	for _, kw := range keywords {
		if n := strings.Count(lower, kw); n > 0 {
			score += float64(n) * keywordIncrement
		}
	}
	if score > keywordCap {
		score = keywordCap
	}
	return score
}

// clampDimension bounds a score to [0,100] and joins its explanation.
func clampDimension(score float64, notes []string, emptyNote string) Dimension {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	explanation := emptyNote
	if len(notes) > 0 {
		explanation = strings.Join(notes, "; ")
	}
	return Dimension{Score: score, Explanation: explanation}
}
