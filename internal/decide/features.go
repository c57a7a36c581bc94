package decide

import "strings"

// Feature keyword tables. Data, not control flow, so detection can be
// tuned and tested independently of the decision rules.
var (
	rareIssueKeywords = []string{
		"heisenbug", "intermittent", "rare", "nondeterministic", "flaky",
		"once in", "hard to reproduce", "cannot reproduce", "sporadic",
	}
	reusabilityKeywords = []string{
		"reusable", "generic", "utility", "helper", "library", "shared",
		"common pattern", "boilerplate",
	}
	architectureKeywords = []string{
		"architecture", "design decision", "adr", "system design",
		"module boundary", "separation of concerns", "arquitectura",
	}
	performanceKeywords = []string{
		"performance", "latency", "throughput", "optimization", "profiling",
		"benchmark", "rendimiento",
	}
	securityKeywords = []string{
		"security", "vulnerability", "cve-", "injection", "xss", "csrf",
		"secret", "credential", "authentication bypass", "privilege",
		"seguridad", "vulnerabilidad",
	}
)

// DetectFeatures scans content for the escalation-relevant flags.
func DetectFeatures(content string) Features {
	lower := strings.ToLower(content)
	return Features{
		RareIssue:       containsAny(lower, rareIssueKeywords),
		HighReusability: containsAny(lower, reusabilityKeywords),
		Architecture:    containsAny(lower, architectureKeywords),
		Performance:     containsAny(lower, performanceKeywords),
		Security:        containsAny(lower, securityKeywords),
	}
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
