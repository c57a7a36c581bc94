// Package classify maps raw session text to a content type using layered
// pattern tables.
//
// Every candidate type accumulates fixed increments for each matching
// pattern in its set; code-looking text gives code subtypes a bonus, and a
// caller-supplied change kind gives its mapped type a large one. The
// highest score wins and doubles as the (capped) confidence. Change type
// and impact level come from independent keyword passes.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/engramd/internal/store"
)

// maxContentLength bounds pattern matching input to keep regex evaluation
// cheap on pathological inputs.
const maxContentLength = 32 * 1024

// compiledPattern pairs a pattern with its compiled regex (nil for
// keyword patterns).
type compiledPattern struct {
	Pattern
	regex *regexp.Regexp
}

type compiledTypeSet struct {
	typ      store.ContextType
	patterns []compiledPattern
}

// Classifier scores content against an ordered type→pattern-set table.
//
// Ties are broken by table registration order: the first-registered type
// wins. The default table order is therefore load-bearing.
type Classifier struct {
	table []compiledTypeSet
}

// New creates a classifier with the built-in pattern table.
func New() *Classifier {
	return NewWithTable(defaultTypePatterns)
}

// NewWithTable creates a classifier from a custom ordered table. Invalid
// regex patterns are skipped.
func NewWithTable(table []typePatterns) *Classifier {
	compiled := make([]compiledTypeSet, 0, len(table))
	for _, set := range table {
		cs := compiledTypeSet{typ: set.Type, patterns: make([]compiledPattern, 0, len(set.Patterns))}
		for _, p := range set.Patterns {
			cp := compiledPattern{Pattern: p}
			if p.Kind == matchRegex {
				re, err := regexp.Compile(p.Expr)
				if err != nil {
					continue
				}
				cp.regex = re
			}
			cs.patterns = append(cs.patterns, cp)
		}
		compiled = append(compiled, cs)
	}
	return &Classifier{table: compiled}
}

// Classify scores content against every registered type and returns the
// winner. Unmatched content defaults to a low-confidence conversation
// type rather than failing.
func (c *Classifier) Classify(content string, meta *Metadata) Result {
	if len(content) > maxContentLength {
		content = content[:maxContentLength]
	}
	lower := strings.ToLower(content)
	looksCode := looksLikeCode(content)

	var metaType store.ContextType
	if meta != nil && meta.ChangeKind != ChangeUnknown {
		metaType = changeKindToType[meta.ChangeKind]
	}

	var (
		bestType     store.ContextType
		bestScore    float64
		bestFeatures []string
	)

	for _, set := range c.table {
		score := 0.0
		var features []string

		for _, p := range set.patterns {
			matched := false
			if p.regex != nil {
				matched = p.regex.MatchString(content)
			} else {
				matched = strings.Contains(lower, strings.ToLower(p.Expr))
			}
			if matched {
				score += p.Weight
				features = append(features, p.Name)
			}
		}

		if looksCode && codeSubtypes[set.typ] {
			score += codeSyntaxBonus
		}
		if metaType != "" && set.typ == metaType {
			score += metadataBonus
			features = append(features, "metadata-change-kind")
		}

		// Strictly greater keeps the first-registered type on ties.
		if score > bestScore {
			bestType = set.typ
			bestScore = score
			bestFeatures = features
		}
	}

	if bestScore == 0 {
		return Result{
			Type:        store.TypeConversation,
			Confidence:  0.1,
			Reasoning:   "no pattern matched; defaulting to conversation",
			ChangeType:  deriveChangeType(lower),
			ImpactLevel: deriveImpact(lower, store.TypeConversation),
		}
	}

	confidence := bestScore
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Result{
		Type:            bestType,
		Confidence:      confidence,
		Reasoning:       buildReasoning(bestType, bestFeatures, looksCode),
		MatchedFeatures: bestFeatures,
		ChangeType:      deriveChangeType(lower),
		ImpactLevel:     deriveImpact(lower, bestType),
		RelatedIssues:   relatedIssues(content),
	}
}

// deriveChangeType runs the independent change-kind keyword pass.
func deriveChangeType(lower string) ChangeType {
	for _, entry := range changeTypeKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Change
			}
		}
	}
	return ChangeUnknown
}

// deriveImpact runs the independent impact keyword pass, falling back to
// the winning type's default impact.
func deriveImpact(lower string, typ store.ContextType) ImpactLevel {
	for _, entry := range impactKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Impact
			}
		}
	}
	if impact, ok := defaultImpacts[typ]; ok {
		return impact
	}
	return ImpactMedium
}

// relatedIssues extracts deduplicated issue references in order of first
// appearance.
func relatedIssues(content string) []string {
	matches := issueRefPattern.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var issues []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			issues = append(issues, m)
		}
	}
	return issues
}

// looksLikeCode applies cheap syntactic heuristics: declaration keywords,
// brace/semicolon density, indented blocks.
func looksLikeCode(content string) bool {
	signals := 0

	if codeDeclPattern.MatchString(content) {
		signals++
	}
	if strings.Count(content, "{")+strings.Count(content, "}") >= 2 {
		signals++
	}
	if strings.Count(content, ";") >= 2 {
		signals++
	}

	lines := strings.Split(content, "\n")
	indented := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			indented++
		}
	}
	if len(lines) > 3 && indented*2 >= len(lines) {
		signals++
	}

	return signals >= 2
}

func buildReasoning(typ store.ContextType, features []string, looksCode bool) string {
	if looksCode && codeSubtypes[typ] {
		return fmt.Sprintf("matched %d pattern(s) for %s with code-syntax bonus: %s",
			len(features), typ, strings.Join(features, ", "))
	}
	return fmt.Sprintf("matched %d pattern(s) for %s: %s",
		len(features), typ, strings.Join(features, ", "))
}
