package detection

import "strings"

// Keywords that indicate a sensitive context, by tier
var (
	highKeywords = []string{
		"salary", "compensation", "revenue", "profit", "loss", "merger", "acquisition",
		"layoff", "termination", "lawsuit", "litigation", "settlement", "diagnosis",
		"treatment", "prescription", "medical history", "health condition",
	}
	mediumKeywords = []string{
		"budget", "forecast", "strategy", "roadmap", "internal", "draft",
		"performance review", "evaluation", "disciplinary", "complaint",
	}
	lowKeywords = []string{
		"meeting", "project", "deadline", "milestone", "objective",
	}
)

// ScanKeywords returns the highest keyword tier present in text, or low when none match
func ScanKeywords(text string) Severity {
	tier, _ := KeywordTier(text)
	return tier
}

// KeywordTier is ScanKeywords that also reports whether any keyword was found at all
func KeywordTier(text string) (Severity, bool) {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, highKeywords):
		return SeverityHigh, true
	case containsAny(lower, mediumKeywords):
		return SeverityMedium, true
	case containsAny(lower, lowKeywords):
		return SeverityLow, true
	default:
		return SeverityLow, false
	}
}

// MatchedKeywords returns every keyword present in text, high tier first
func MatchedKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, list := range [][]string{highKeywords, mediumKeywords, lowKeywords} {
		for _, kw := range list {
			if strings.Contains(lower, kw) {
				found = append(found, kw)
			}
		}
	}
	return found
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
