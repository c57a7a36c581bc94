package classify

import (
	"regexp"

	"github.com/fyrsmithlabs/engramd/internal/store"
)

// matcherKind selects how a pattern is applied to content.
type matcherKind int

const (
	matchKeyword matcherKind = iota // case-insensitive substring
	matchRegex                      // compiled regular expression
)

// Pattern is one entry in a type's pattern set. Patterns are data, not
// control flow, so rule sets can be unit-tested and extended without
// touching the classifier.
type Pattern struct {
	// Name identifies the pattern in matched-feature lists.
	Name string
	// Kind selects keyword or regex matching.
	Kind matcherKind
	// Expr is the keyword or regex source.
	Expr string
	// Weight is the fixed increment added to the type score on match.
	Weight float64
}

// typePatterns binds one content type to its pattern set. The table is an
// ordered slice: on a score tie the first-registered type wins, and that
// ordering is part of the observable behavior.
type typePatterns struct {
	Type     store.ContextType
	Patterns []Pattern
}

const (
	keywordWeight = 0.15
	regexWeight   = 0.25

	// codeSyntaxBonus is added when the text's syntax resembles code and
	// the candidate type is a code subtype.
	codeSyntaxBonus = 0.2

	// metadataBonus is the large fixed contribution of an externally
	// supplied change kind toward its mapped type.
	metadataBonus = 0.5
)

// defaultTypePatterns is the built-in classification table. Keywords cover
// English and Spanish; regexes are language-neutral.
var defaultTypePatterns = []typePatterns{
	{
		Type: store.TypeBugFix,
		Patterns: []Pattern{
			{Name: "fix-prefix", Kind: matchRegex, Expr: `(?i)^\s*(fix|hotfix|bugfix)[:!(\s]`, Weight: regexWeight},
			{Name: "fixes-issue", Kind: matchRegex, Expr: `(?i)\b(fixes|closes|resolves)\s+#\d+`, Weight: regexWeight},
			{Name: "bug", Kind: matchKeyword, Expr: "bug", Weight: keywordWeight},
			{Name: "fixed", Kind: matchKeyword, Expr: "fixed", Weight: keywordWeight},
			{Name: "resolve", Kind: matchKeyword, Expr: "resolve", Weight: keywordWeight},
			{Name: "patch", Kind: matchKeyword, Expr: "patch", Weight: keywordWeight},
			{Name: "arreglo", Kind: matchKeyword, Expr: "arregl", Weight: keywordWeight},
			{Name: "corregido", Kind: matchKeyword, Expr: "correg", Weight: keywordWeight},
			{Name: "error-de", Kind: matchKeyword, Expr: "fallo", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeError,
		Patterns: []Pattern{
			{Name: "stack-trace", Kind: matchRegex, Expr: `(?m)^\s+at\s+\S+\(|goroutine \d+ \[|Traceback \(most recent`, Weight: regexWeight},
			{Name: "panic", Kind: matchRegex, Expr: `(?i)\bpanic:|\bsegfault\b|\bsegmentation fault\b`, Weight: regexWeight},
			{Name: "exception", Kind: matchKeyword, Expr: "exception", Weight: keywordWeight},
			{Name: "error", Kind: matchKeyword, Expr: "error", Weight: keywordWeight},
			{Name: "failed", Kind: matchKeyword, Expr: "failed", Weight: keywordWeight},
			{Name: "crash", Kind: matchKeyword, Expr: "crash", Weight: keywordWeight},
			{Name: "excepcion", Kind: matchKeyword, Expr: "excepción", Weight: keywordWeight},
			{Name: "fallido", Kind: matchKeyword, Expr: "fallido", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeSolution,
		Patterns: []Pattern{
			{Name: "solution", Kind: matchKeyword, Expr: "solution", Weight: keywordWeight},
			{Name: "solved", Kind: matchKeyword, Expr: "solved", Weight: keywordWeight},
			{Name: "workaround", Kind: matchKeyword, Expr: "workaround", Weight: keywordWeight},
			{Name: "root-cause", Kind: matchRegex, Expr: `(?i)\broot\s+cause\b|\bthe\s+problem\s+was\b`, Weight: regexWeight},
			{Name: "solucion", Kind: matchKeyword, Expr: "solución", Weight: keywordWeight},
			{Name: "resuelto", Kind: matchKeyword, Expr: "resuelto", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeTest,
		Patterns: []Pattern{
			{Name: "test-func", Kind: matchRegex, Expr: `func Test\w+\(|describe\(|it\(['"]|@Test\b|def test_`, Weight: regexWeight},
			{Name: "test", Kind: matchKeyword, Expr: "test", Weight: keywordWeight},
			{Name: "assert", Kind: matchKeyword, Expr: "assert", Weight: keywordWeight},
			{Name: "coverage", Kind: matchKeyword, Expr: "coverage", Weight: keywordWeight},
			{Name: "prueba", Kind: matchKeyword, Expr: "prueba", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeConfiguration,
		Patterns: []Pattern{
			{Name: "config-file", Kind: matchRegex, Expr: `(?i)\b(dockerfile|docker-compose|makefile|\.ya?ml|\.toml|\.ini|\.env)\b`, Weight: regexWeight},
			{Name: "config", Kind: matchKeyword, Expr: "config", Weight: keywordWeight},
			{Name: "environment", Kind: matchKeyword, Expr: "environment variable", Weight: keywordWeight},
			{Name: "setting", Kind: matchKeyword, Expr: "setting", Weight: keywordWeight},
			{Name: "configuracion", Kind: matchKeyword, Expr: "configuración", Weight: keywordWeight},
			{Name: "ajuste", Kind: matchKeyword, Expr: "ajuste", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeCommit,
		Patterns: []Pattern{
			{Name: "conventional-commit", Kind: matchRegex, Expr: `(?m)^(feat|chore|docs|style|perf|ci|build)(\(\w+\))?:`, Weight: regexWeight},
			{Name: "commit-hash", Kind: matchRegex, Expr: `\b[0-9a-f]{7,40}\b.*\b(commit|merge)\b|\b(commit|merge)\b.*\b[0-9a-f]{7,40}\b`, Weight: regexWeight},
			{Name: "merged", Kind: matchKeyword, Expr: "merged", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeDocumentation,
		Patterns: []Pattern{
			{Name: "markdown-heading", Kind: matchRegex, Expr: `(?m)^#{1,4}\s+\w`, Weight: regexWeight},
			{Name: "readme", Kind: matchKeyword, Expr: "readme", Weight: keywordWeight},
			{Name: "documentation", Kind: matchKeyword, Expr: "documentation", Weight: keywordWeight},
			{Name: "usage", Kind: matchKeyword, Expr: "usage", Weight: keywordWeight},
			{Name: "documentacion", Kind: matchKeyword, Expr: "documentación", Weight: keywordWeight},
			{Name: "ejemplo", Kind: matchKeyword, Expr: "ejemplo", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeRefactor,
		Patterns: []Pattern{
			{Name: "refactor", Kind: matchKeyword, Expr: "refactor", Weight: keywordWeight},
			{Name: "cleanup", Kind: matchKeyword, Expr: "cleanup", Weight: keywordWeight},
			{Name: "extract", Kind: matchKeyword, Expr: "extract", Weight: keywordWeight},
			{Name: "restructure", Kind: matchKeyword, Expr: "restructur", Weight: keywordWeight},
			{Name: "refactorizar", Kind: matchKeyword, Expr: "refactoriz", Weight: keywordWeight},
			{Name: "limpieza", Kind: matchKeyword, Expr: "limpieza", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeOptimization,
		Patterns: []Pattern{
			{Name: "performance", Kind: matchKeyword, Expr: "performance", Weight: keywordWeight},
			{Name: "optimize", Kind: matchKeyword, Expr: "optimiz", Weight: keywordWeight},
			{Name: "speedup", Kind: matchRegex, Expr: `(?i)\b\d+(\.\d+)?x\s+(faster|speedup)\b|\blatency\b|\bthroughput\b`, Weight: regexWeight},
			{Name: "rendimiento", Kind: matchKeyword, Expr: "rendimiento", Weight: keywordWeight},
			{Name: "mas-rapido", Kind: matchKeyword, Expr: "más rápido", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeFeature,
		Patterns: []Pattern{
			{Name: "feat-prefix", Kind: matchRegex, Expr: `(?i)^\s*feat[:(\s]`, Weight: regexWeight},
			{Name: "implement", Kind: matchKeyword, Expr: "implement", Weight: keywordWeight},
			{Name: "add-support", Kind: matchRegex, Expr: `(?i)\badd(ed|s)?\s+(support|new)\b`, Weight: regexWeight},
			{Name: "new-feature", Kind: matchKeyword, Expr: "new feature", Weight: keywordWeight},
			{Name: "implementar", Kind: matchKeyword, Expr: "implementa", Weight: keywordWeight},
			{Name: "nueva-funcionalidad", Kind: matchKeyword, Expr: "funcionalidad", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeCode,
		Patterns: []Pattern{
			{Name: "func-decl", Kind: matchRegex, Expr: `\bfunc\s+\w+\s*\(|\bdef\s+\w+\s*\(|\bclass\s+\w+|=>\s*{|\bfunction\s+\w+\(`, Weight: regexWeight},
			{Name: "import", Kind: matchRegex, Expr: `(?m)^\s*(import|from|package|using|#include)\b`, Weight: regexWeight},
			{Name: "snippet", Kind: matchKeyword, Expr: "snippet", Weight: keywordWeight},
			{Name: "codigo", Kind: matchKeyword, Expr: "código", Weight: keywordWeight},
		},
	},
	{
		Type: store.TypeConversation,
		Patterns: []Pattern{
			{Name: "dialog-turns", Kind: matchRegex, Expr: `(?mi)^(user|assistant|human|ai)\s*:`, Weight: regexWeight},
			{Name: "question", Kind: matchRegex, Expr: `\?\s*$`, Weight: keywordWeight},
			{Name: "how-do-i", Kind: matchRegex, Expr: `(?i)\b(how (do|can) (i|we)|what is the best way)\b|\bcómo (puedo|hago)\b`, Weight: regexWeight},
		},
	},
}

// changeKindToType maps an externally supplied change kind to the content
// type it boosts.
var changeKindToType = map[ChangeType]store.ContextType{
	ChangeFeature:       store.TypeFeature,
	ChangeBugFix:        store.TypeBugFix,
	ChangeRefactor:      store.TypeRefactor,
	ChangeOptimization:  store.TypeOptimization,
	ChangeDocumentation: store.TypeDocumentation,
	ChangeTest:          store.TypeTest,
	ChangeConfiguration: store.TypeConfiguration,
}

// changeTypeKeywords drives the independent change-type pass.
// First match wins.
var changeTypeKeywords = []struct {
	Change   ChangeType
	Keywords []string
}{
	{ChangeBugFix, []string{"fix", "bug", "resolve", "patch", "hotfix", "arregl", "correg"}},
	{ChangeTest, []string{"test", "assert", "coverage", "prueba"}},
	{ChangeDocumentation, []string{"readme", "document", "docs", "documentación"}},
	{ChangeConfiguration, []string{"config", "environment", "setting", "configuración"}},
	{ChangeOptimization, []string{"performance", "optimiz", "faster", "rendimiento"}},
	{ChangeRefactor, []string{"refactor", "cleanup", "restructur", "refactoriz"}},
	{ChangeFeature, []string{"feat", "implement", "add support", "new", "implementa", "funcionalidad"}},
}

// impactKeywords drives the independent impact-level pass.
// First match wins; defaultImpacts applies when nothing matches.
var impactKeywords = []struct {
	Impact   ImpactLevel
	Keywords []string
}{
	{ImpactCritical, []string{"critical", "security", "vulnerability", "data loss", "outage", "crítico", "vulnerabilidad"}},
	{ImpactHigh, []string{"breaking", "major", "migration", "architecture", "production", "importante", "arquitectura"}},
	{ImpactLow, []string{"typo", "comment", "whitespace", "minor", "cosmetic", "menor"}},
}

// defaultImpacts provides the per-type fallback impact level.
var defaultImpacts = map[store.ContextType]ImpactLevel{
	store.TypeError:         ImpactHigh,
	store.TypeBugFix:        ImpactMedium,
	store.TypeSolution:      ImpactMedium,
	store.TypeFeature:       ImpactMedium,
	store.TypeOptimization:  ImpactMedium,
	store.TypeCode:          ImpactMedium,
	store.TypeRefactor:      ImpactLow,
	store.TypeTest:          ImpactLow,
	store.TypeDocumentation: ImpactLow,
	store.TypeConfiguration: ImpactLow,
	store.TypeCommit:        ImpactLow,
	store.TypeConversation:  ImpactLow,
}

// codeSubtypes are the types eligible for the code-syntax bonus.
var codeSubtypes = map[store.ContextType]bool{
	store.TypeCode:         true,
	store.TypeBugFix:       true,
	store.TypeFeature:      true,
	store.TypeRefactor:     true,
	store.TypeOptimization: true,
	store.TypeTest:         true,
}

// issueRefPattern extracts issue references like "#42".
var issueRefPattern = regexp.MustCompile(`#\d+`)

// codeDeclPattern is one of the looksLikeCode signals.
var codeDeclPattern = regexp.MustCompile(`\b(func|def|class|function|var|const|let|return|import|package)\b`)
