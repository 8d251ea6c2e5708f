package detection

// MaxRiskScore is the ceiling of the risk scale
const MaxRiskScore = 100

var severityWeights = map[Severity]int{
	SeverityCritical: 30,
	SeverityHigh:     20,
	SeverityMedium:   10,
	SeverityLow:      5,
}

var keywordWeights = map[Severity]int{
	SeverityHigh:   15,
	SeverityMedium: 8,
	SeverityLow:    3,
}

// Aggregate scores matches plus keyword context and classifies the result.
// keywordSeverity is SeverityNone when no keyword was found; it then adds nothing.
// The returned severity is the highest among matches, or low when there are none.
func Aggregate(matches []Match, keywordSeverity Severity) (int, SensitivityLevel, Severity) {
	score := 0
	maxSeverity := SeverityLow

	for _, m := range matches {
		score += severityWeights[m.Severity]
		if m.Severity.Rank() > maxSeverity.Rank() {
			maxSeverity = m.Severity
		}
	}

	score += keywordWeights[keywordSeverity]
	if score > MaxRiskScore {
		score = MaxRiskScore
	}

	return score, Classify(score, maxSeverity), maxSeverity
}

// Classify maps a risk score and the highest match severity to a tier.
// Rules are checked from restricted downwards; the first that holds wins.
func Classify(score int, maxSeverity Severity) SensitivityLevel {
	switch {
	case score >= 60 || maxSeverity == SeverityCritical:
		return LevelRestricted
	case score >= 40 || maxSeverity == SeverityHigh:
		return LevelConfidential
	case score >= 20 || maxSeverity == SeverityMedium:
		return LevelInternal
	default:
		return LevelPublic
	}
}

// Remediation notes, in the order they are emitted
const (
	RecommendGeneric   = "Consider removing or masking sensitive data before proceeding."
	RecommendPII       = "Personal Identifiable Information detected. Ensure GDPR/CCPA compliance."
	RecommendPHI       = "Protected Health Information detected. Ensure HIPAA compliance."
	RecommendFinancial = "Financial data detected. Ensure PCI-DSS compliance."
	RecommendSecurity  = "Security credentials detected. Never share API keys or passwords with AI systems."
)

var categoryNotes = []struct {
	category Category
	note     string
}{
	{CategoryPII, RecommendPII},
	{CategoryPHI, RecommendPHI},
	{CategoryFinancial, RecommendFinancial},
	{CategorySecurity, RecommendSecurity},
}

// Recommendations builds advisory notes for a set of matches, one per category at most
func Recommendations(matches []Match) []string {
	recommendations := make([]string, 0)
	if len(matches) == 0 {
		return recommendations
	}

	recommendations = append(recommendations, RecommendGeneric)

	present := make(map[Category]bool)
	for _, m := range matches {
		present[m.Category] = true
	}
	for _, cn := range categoryNotes {
		if present[cn.category] {
			recommendations = append(recommendations, cn.note)
		}
	}

	return recommendations
}
