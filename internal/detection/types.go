package detection

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Severity is the fixed weight class of a detector or keyword tier
type Severity string

const (
	// SeverityNone marks the absence of any keyword hit
	SeverityNone     Severity = ""
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities low < medium < high < critical. Unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// SensitivityLevel is the classification tier of a text
type SensitivityLevel string

const (
	LevelPublic       SensitivityLevel = "public"
	LevelInternal     SensitivityLevel = "internal"
	LevelConfidential SensitivityLevel = "confidential"
	LevelRestricted   SensitivityLevel = "restricted"
)

// ErrUnknownLevel is returned when a string is not one of the four tiers
var ErrUnknownLevel = errors.New("unknown sensitivity level")

// Levels lists all tiers in ascending order
var Levels = []SensitivityLevel{LevelPublic, LevelInternal, LevelConfidential, LevelRestricted}

// Rank orders tiers public < internal < confidential < restricted. Unknown values return -1.
func (l SensitivityLevel) Rank() int {
	switch l {
	case LevelPublic:
		return 0
	case LevelInternal:
		return 1
	case LevelConfidential:
		return 2
	case LevelRestricted:
		return 3
	default:
		return -1
	}
}

// Valid reports whether l is one of the four tiers
func (l SensitivityLevel) Valid() bool {
	return l.Rank() >= 0
}

// ParseLevel converts a tier name into a SensitivityLevel
func ParseLevel(s string) (SensitivityLevel, error) {
	level := SensitivityLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return level, nil
}

// Category groups detectors for compliance messaging
type Category string

const (
	CategoryPII       Category = "PII"
	CategoryPHI       Category = "PHI"
	CategoryFinancial Category = "Financial"
	CategorySecurity  Category = "Security"
	CategoryTechnical Category = "Technical"
	CategoryCorporate Category = "Corporate"
)

// Detector is a fixed rule recognising one kind of sensitive content
type Detector struct {
	Name     string
	Type     string
	Category Category
	Severity Severity
	Pattern  *regexp.Regexp
	Mask     func(value string) string
}

// Position is a half-open byte span [Start, End) into the scanned text
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Match is a single detector hit
type Match struct {
	Type     string   `json:"type"`
	Category Category `json:"category"`
	Value    string   `json:"value"`
	Masked   string   `json:"masked"`
	Position Position `json:"position"`
	Severity Severity `json:"severity"`
}

// Result contains the outcome of scanning one text
type Result struct {
	HasSensitiveData bool             `json:"hasSensitiveData"`
	SensitivityLevel SensitivityLevel `json:"sensitivityLevel"`
	DetectedPatterns []Match          `json:"detectedPatterns"`
	MaskedText       string           `json:"maskedText"`
	RiskScore        int              `json:"riskScore"`
	Recommendations  []string         `json:"recommendations"`
	KeywordSeverity  Severity         `json:"keywordSeverity"`
}

// PatternTypes returns the detector type names of every match, in match order
func (r *Result) PatternTypes() []string {
	types := make([]string, 0, len(r.DetectedPatterns))
	for _, m := range r.DetectedPatterns {
		types = append(types, m.Type)
	}
	return types
}
